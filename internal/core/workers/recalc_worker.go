package workers

import (
	"context"
	"log"
	"sync"

	"github.com/lcollard/mergepace/internal/core/domain"
)

// StreakService is the slice of the streak service the worker needs.
type StreakService interface {
	Recalculate(ctx context.Context, userID string) (*domain.StreakSummary, domain.Milestone, error)
}

// RecalcWorker rebuilds streak summaries in the background. Requests coalesce
// in a dirty set rather than queueing, so a burst of updates for one user
// costs one recalculation and nothing is ever dropped.
type RecalcWorker struct {
	streaks StreakService

	mu    sync.Mutex
	dirty map[string]struct{}
	wake  chan struct{}
}

func NewRecalcWorker(streaks StreakService) *RecalcWorker {
	return &RecalcWorker{
		streaks: streaks,
		dirty:   make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue marks a user dirty. Never blocks and never loses a request: if the
// worker is mid-pass, the mark survives until the next drain.
func (w *RecalcWorker) Enqueue(userID string) {
	w.mu.Lock()
	w.dirty[userID] = struct{}{}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *RecalcWorker) Start(ctx context.Context) {
	go func() {
		log.Println("Streak recalc worker started in background...")
		for {
			select {
			case <-w.wake:
				w.drain(ctx)
			case <-ctx.Done():
				log.Println("Streak recalc worker shutting down...")
				return
			}
		}
	}()
}

func (w *RecalcWorker) drain(ctx context.Context) {
	w.mu.Lock()
	batch := w.dirty
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()

	for userID := range batch {
		if ctx.Err() != nil {
			return
		}
		_, milestone, err := w.streaks.Recalculate(ctx, userID)
		if err != nil {
			log.Printf("Recalc worker failed for user %s: %v", userID, err)
			continue
		}
		if milestone.Reached {
			log.Printf("User %s reached a %d-day streak milestone", userID, milestone.Value)
		}
	}
}
