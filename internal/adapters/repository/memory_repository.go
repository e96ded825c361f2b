package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/lcollard/mergepace/internal/core/domain"
)

// InMemoryProgressRepository backs tests and local development. It enforces
// the same optimistic locking contract as the Postgres implementation and
// hands out deep copies so callers cannot mutate stored state in place.
type InMemoryProgressRepository struct {
	states    map[string]*domain.ProgressState
	records   map[string]map[string]*domain.WeeklyRecord
	summaries map[string]*domain.StreakSummary
	settings  map[string]map[string]string

	// SaveCount is exposed for tests asserting write-skipping behavior.
	SaveCount int

	mu sync.RWMutex
}

func NewInMemoryProgressRepository() *InMemoryProgressRepository {
	return &InMemoryProgressRepository{
		states:    make(map[string]*domain.ProgressState),
		records:   make(map[string]map[string]*domain.WeeklyRecord),
		summaries: make(map[string]*domain.StreakSummary),
		settings:  make(map[string]map[string]string),
	}
}

func (r *InMemoryProgressRepository) LoadState(ctx context.Context, userID string) (*domain.ProgressState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[userID]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return state.Clone(), nil
}

func (r *InMemoryProgressRepository) SaveState(ctx context.Context, state *domain.ProgressState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.states[state.UserID]; ok && existing.Version != state.Version-1 {
		return domain.ErrStateConflict
	}

	r.states[state.UserID] = state.Clone()
	r.SaveCount++
	return nil
}

func (r *InMemoryProgressRepository) DeleteState(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, userID)
	delete(r.records, userID)
	delete(r.summaries, userID)
	delete(r.settings, userID)
	return nil
}

func (r *InMemoryProgressRepository) ListWeeklyRecords(ctx context.Context, userID string) ([]*domain.WeeklyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.WeeklyRecord
	for _, rec := range r.records[userID] {
		copied := *rec
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WeekStart.Before(out[j].WeekStart)
	})
	return out, nil
}

func (r *InMemoryProgressRepository) UpsertWeeklyRecord(ctx context.Context, userID string, record *domain.WeeklyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records[userID] == nil {
		r.records[userID] = make(map[string]*domain.WeeklyRecord)
	}
	if _, exists := r.records[userID][record.WeekID]; exists {
		return nil
	}

	copied := *record
	r.records[userID][record.WeekID] = &copied
	return nil
}

func (r *InMemoryProgressRepository) LoadStreakSummary(ctx context.Context, userID string) (*domain.StreakSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary, ok := r.summaries[userID]
	if !ok {
		return nil, domain.ErrSummaryNotFound
	}
	copied := *summary
	copied.StreakHistory = append([]domain.StreakRun(nil), summary.StreakHistory...)
	return &copied, nil
}

func (r *InMemoryProgressRepository) SaveStreakSummary(ctx context.Context, userID string, summary *domain.StreakSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *summary
	copied.StreakHistory = append([]domain.StreakRun(nil), summary.StreakHistory...)
	r.summaries[userID] = &copied
	return nil
}

func (r *InMemoryProgressRepository) GetSetting(ctx context.Context, userID, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.settings[userID][key]
	if !ok {
		return "", domain.ErrSettingNotFound
	}
	return value, nil
}

func (r *InMemoryProgressRepository) SetSetting(ctx context.Context, userID, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings[userID] == nil {
		r.settings[userID] = make(map[string]string)
	}
	r.settings[userID][key] = value
	return nil
}

func (r *InMemoryProgressRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// InMemoryUserRepository mirrors the Postgres user store for tests.
type InMemoryUserRepository struct {
	byID    map[string]*domain.User
	byEmail map[string]*domain.User

	mu sync.RWMutex
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return domain.ErrEmailAlreadyExists
	}

	copied := *user
	r.byID[user.ID] = &copied
	r.byEmail[user.Email] = &copied
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *InMemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}
