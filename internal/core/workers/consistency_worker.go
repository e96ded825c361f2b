package workers

import (
	"context"
	"log"
	"time"

	"github.com/lcollard/mergepace/internal/core/domain"
)

// ConsistencyChecker is the slice of the progress service the sweep needs.
type ConsistencyChecker interface {
	CheckConsistency(ctx context.Context, userID string) (*domain.ValidationReport, error)
}

// UserLister enumerates users with stored state.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// DefaultSweepInterval is how often the consistency sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// ConsistencyWorker periodically re-reconciles every stored state: expired
// weeks roll over even while the user is away, and data-quality drift gets
// repaired before anyone reads it.
type ConsistencyWorker struct {
	progress ConsistencyChecker
	users    UserLister
	interval time.Duration
}

func NewConsistencyWorker(progress ConsistencyChecker, users UserLister, interval time.Duration) *ConsistencyWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &ConsistencyWorker{
		progress: progress,
		users:    users,
		interval: interval,
	}
}

func (w *ConsistencyWorker) Start(ctx context.Context) {
	go func() {
		log.Printf("Consistency worker started, sweeping every %s...", w.interval)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.Sweep(ctx)
			case <-ctx.Done():
				log.Println("Consistency worker shutting down...")
				return
			}
		}
	}()
}

// Sweep runs one pass over every known user. A failing user is logged and
// skipped; one bad state must not starve the rest of the sweep.
func (w *ConsistencyWorker) Sweep(ctx context.Context) {
	userIDs, err := w.users.ListUserIDs(ctx)
	if err != nil {
		log.Printf("Consistency worker failed to list users: %v", err)
		return
	}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		report, err := w.progress.CheckConsistency(ctx, userID)
		if err != nil {
			log.Printf("Consistency check failed for user %s: %v", userID, err)
			continue
		}
		if report.Repaired || len(report.Errors) > 0 {
			log.Printf("Consistency sweep repaired user %s: %d errors, %d warnings", userID, len(report.Errors), len(report.Warnings))
		}
	}
}
