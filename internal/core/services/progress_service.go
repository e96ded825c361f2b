package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lcollard/mergepace/internal/core/domain"
)

// StreakRecalculator decouples the service from the background worker that
// rebuilds streak summaries.
type StreakRecalculator interface {
	Enqueue(userID string)
}

// ProgressService owns every mutation of a user's progress state. All
// operations on the same user are serialized through a per-user mutex, so the
// read-reconcile-write cycle behind each of them is atomic with respect to
// concurrent calls.
type ProgressService struct {
	repo   domain.ProgressRepository
	anchor domain.Anchor
	recalc StreakRecalculator
	locks  sync.Map

	// Now is swappable so tests can pin the clock.
	Now func() time.Time
}

func NewProgressService(repo domain.ProgressRepository, anchor domain.Anchor, recalc StreakRecalculator) *ProgressService {
	return &ProgressService{
		repo:   repo,
		anchor: anchor,
		recalc: recalc,
		Now:    time.Now,
	}
}

func (s *ProgressService) userLock(userID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Get returns the user's reconciled state, creating it on first access. Every
// read passes through the same reconciliation as writes: legacy history is
// migrated, inconsistencies repaired, and an expired week is rolled over
// before the state is returned.
func (s *ProgressService) Get(ctx context.Context, userID string) (*domain.ProgressState, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, changed, err := s.loadReconciled(ctx, userID)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.save(ctx, state); err != nil {
			return nil, err
		}
	}
	return state.Clone(), nil
}

// SetMerges applies a new cumulative total. Decreases are ignored: the weekly
// counter only ever moves forward through this path, so a stale client reposting
// an old total cannot erase progress. ForceSetMerges exists for corrections.
func (s *ProgressService) SetMerges(ctx context.Context, userID string, total int) (*domain.ProgressState, error) {
	return s.mutate(ctx, userID, func(state *domain.ProgressState, now time.Time) (bool, error) {
		if total <= state.CurrentMerges {
			return false, nil
		}
		return s.applyTotal(state, total, now)
	})
}

// ForceSetMerges applies a cumulative total even when it is lower than the
// live counter. Prior day snapshots stay untouched; only the current day's
// attribution absorbs the decrease, clamped at zero.
func (s *ProgressService) ForceSetMerges(ctx context.Context, userID string, total int) (*domain.ProgressState, error) {
	return s.mutate(ctx, userID, func(state *domain.ProgressState, now time.Time) (bool, error) {
		if total < 0 {
			total = 0
		}
		return s.applyTotal(state, total, now)
	})
}

// AddMerges increments the counter by a delta. Negative deltas clamp the
// counter at zero rather than going through the forced path.
func (s *ProgressService) AddMerges(ctx context.Context, userID string, delta int) (*domain.ProgressState, error) {
	return s.mutate(ctx, userID, func(state *domain.ProgressState, now time.Time) (bool, error) {
		total := state.CurrentMerges + delta
		if total < 0 {
			total = 0
		}
		if total == state.CurrentMerges {
			return false, nil
		}
		return s.applyTotal(state, total, now)
	})
}

// SetMergeRate stores the declared per-10-minute throughput.
func (s *ProgressService) SetMergeRate(ctx context.Context, userID string, rate float64) (*domain.ProgressState, error) {
	return s.mutate(ctx, userID, func(state *domain.ProgressState, now time.Time) (bool, error) {
		before := state.MergeRatePer10Min
		state.SetMergeRate(rate)
		return state.MergeRatePer10Min != before, nil
	})
}

// SetTargetGoal stores the weekly goal. Daily targets of already-written
// snapshots are not rewritten; each snapshot keeps the goal that was in force
// when it was recorded.
func (s *ProgressService) SetTargetGoal(ctx context.Context, userID string, goal int) (*domain.ProgressState, error) {
	return s.mutate(ctx, userID, func(state *domain.ProgressState, now time.Time) (bool, error) {
		before := state.TargetGoal
		state.SetTargetGoal(goal)
		return state.TargetGoal != before, nil
	})
}

// ResetWeek clears the current week: counter to zero and the week's day
// snapshots dropped. Archived weeks and other weeks' history survive.
func (s *ProgressService) ResetWeek(ctx context.Context, userID string) (*domain.ProgressState, error) {
	return s.mutate(ctx, userID, func(state *domain.ProgressState, now time.Time) (bool, error) {
		state.CurrentMerges = 0
		delete(state.DailyHistory, domain.WeekID(state.WeekStart))
		state.UpdatedAt = now.UTC()
		return true, nil
	})
}

// ResetAll deletes everything stored for the user and recreates a pristine
// state anchored to the current week.
func (s *ProgressService) ResetAll(ctx context.Context, userID string) (*domain.ProgressState, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.DeleteState(ctx, userID); err != nil && !errors.Is(err, domain.ErrStateNotFound) {
		return nil, fmt.Errorf("progress service: reset: %w", err)
	}

	state, err := domain.NewProgressState(userID, s.anchor, s.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, state); err != nil {
		return nil, err
	}
	s.enqueueRecalc(userID)
	return state.Clone(), nil
}

// ReplaceState swaps in a fully formed state, typically from an import. The
// incoming data goes through the same migration, repair, and rollover pipeline
// as a load, so a stale or partially malformed bundle lands reconciled.
func (s *ProgressService) ReplaceState(ctx context.Context, userID string, incoming *domain.ProgressState) (*domain.ProgressState, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.Now()

	state := incoming.Clone()
	state.UserID = userID
	if state.DailyHistory == nil {
		state.DailyHistory = make(domain.DailyHistory)
	}
	if state.WeekStart.IsZero() {
		state.SetBounds(s.anchor, now)
	}
	state.SetTargetGoal(state.TargetGoal)
	state.SetMergeRate(state.MergeRatePer10Min)

	// Carry the stored version forward so the optimistic lock still guards
	// the write.
	if existing, err := s.repo.LoadState(ctx, userID); err == nil {
		state.Version = existing.Version
	} else if !errors.Is(err, domain.ErrStateNotFound) {
		return nil, err
	}

	domain.MigrateLegacyHistory(state, now)
	domain.ValidateAndRepair(state, now)
	if _, err := s.rollover(ctx, state, now); err != nil {
		return nil, err
	}

	if err := s.save(ctx, state); err != nil {
		return nil, err
	}
	s.enqueueRecalc(userID)
	return state.Clone(), nil
}

// CheckConsistency runs the full reconciliation pass and persists whatever it
// fixed. The periodic sweep calls this for every known user; handlers can also
// trigger it on demand.
func (s *ProgressService) CheckConsistency(ctx context.Context, userID string) (*domain.ValidationReport, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.repo.LoadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.Now()

	migrated := domain.MigrateLegacyHistory(state, now)
	report := domain.ValidateAndRepair(state, now)
	rolled, err := s.rollover(ctx, state, now)
	if err != nil {
		return nil, err
	}

	if migrated || report.Repaired || rolled {
		if err := s.save(ctx, state); err != nil {
			return nil, err
		}
		s.enqueueRecalc(userID)
	}
	return &report, nil
}

// mutate is the shared write path: load-reconcile, apply, save, notify.
func (s *ProgressService) mutate(ctx context.Context, userID string, apply func(*domain.ProgressState, time.Time) (bool, error)) (*domain.ProgressState, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, reconciled, err := s.loadReconciled(ctx, userID)
	if err != nil {
		return nil, err
	}

	applied, err := apply(state, s.Now())
	if err != nil {
		return nil, err
	}

	if reconciled || applied {
		if err := s.save(ctx, state); err != nil {
			return nil, err
		}
	}
	if applied {
		s.enqueueRecalc(userID)
	}
	return state.Clone(), nil
}

func (s *ProgressService) applyTotal(state *domain.ProgressState, total int, now time.Time) (bool, error) {
	changed, err := domain.RecordTotal(state, total, now)
	if err != nil {
		return false, err
	}
	if state.CurrentMerges != total {
		state.CurrentMerges = total
		state.UpdatedAt = now.UTC()
		changed = true
	}
	return changed, nil
}

// loadReconciled loads or creates the state and brings it fully up to date:
// legacy migration, consistency repair, week rollover. The returned flag says
// whether any of those steps changed the state.
func (s *ProgressService) loadReconciled(ctx context.Context, userID string) (*domain.ProgressState, bool, error) {
	now := s.Now()

	state, err := s.repo.LoadState(ctx, userID)
	if errors.Is(err, domain.ErrStateNotFound) {
		state, err = domain.NewProgressState(userID, s.anchor, now)
		if err != nil {
			return nil, false, err
		}
		return state, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("progress service: load state: %w", err)
	}

	changed := domain.MigrateLegacyHistory(state, now)
	if report := domain.ValidateAndRepair(state, now); report.Repaired {
		changed = true
	}

	rolled, err := s.rollover(ctx, state, now)
	if err != nil {
		return nil, false, err
	}
	return state, changed || rolled, nil
}

// rollover archives an expired week and re-anchors the state to the week
// enclosing now. Bounds are always recomputed from the anchor rule rather than
// advanced by a fixed step, so a state that slept through several weeks lands
// on the current one in a single pass. The archive upsert is keyed by week id,
// which keeps a replayed rollover from duplicating the record.
func (s *ProgressService) rollover(ctx context.Context, state *domain.ProgressState, now time.Time) (bool, error) {
	if state.WeekStart.IsZero() {
		state.SetBounds(s.anchor, now)
		return true, nil
	}
	if !state.WeekExpired(now) {
		return false, nil
	}

	record, err := domain.NewWeeklyRecord(state, state.WeekEnd)
	if err != nil {
		return false, err
	}
	if err := s.repo.UpsertWeeklyRecord(ctx, state.UserID, record); err != nil {
		return false, fmt.Errorf("progress service: archive week %s: %w", record.WeekID, err)
	}
	log.Printf("Archived week %s for user %s: %d/%d merges", record.WeekID, state.UserID, record.FinalMerges, record.TargetGoal)

	state.CurrentMerges = 0
	state.SetBounds(s.anchor, now)
	state.UpdatedAt = now.UTC()
	return true, nil
}

func (s *ProgressService) save(ctx context.Context, state *domain.ProgressState) error {
	state.Version++
	if err := s.repo.SaveState(ctx, state); err != nil {
		state.Version--
		return fmt.Errorf("progress service: save state: %w", err)
	}
	return nil
}

func (s *ProgressService) enqueueRecalc(userID string) {
	if s.recalc != nil {
		s.recalc.Enqueue(userID)
	}
}
