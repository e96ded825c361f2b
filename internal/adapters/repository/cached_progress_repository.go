package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lcollard/mergepace/internal/core/domain"
)

var _ domain.ProgressRepository = (*CachedProgressRepository)(nil)

const cacheTTL = 30 * time.Minute

// CachedProgressRepository is a read-through cache over the read-heavy,
// rarely-changing parts of the store: the weekly archive and the streak
// summary. The live state is deliberately not cached; it is the subject of
// the optimistic locking protocol and always read fresh.
type CachedProgressRepository struct {
	next  domain.ProgressRepository
	cache *redis.Client
}

func NewCachedProgressRepository(next domain.ProgressRepository, cache *redis.Client) *CachedProgressRepository {
	return &CachedProgressRepository{
		next:  next,
		cache: cache,
	}
}

func (r *CachedProgressRepository) archiveKey(userID string) string {
	return fmt.Sprintf("archive:%s", userID)
}

func (r *CachedProgressRepository) streakKey(userID string) string {
	return fmt.Sprintf("streaks:%s", userID)
}

func (r *CachedProgressRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[CACHE] Failed to invalidate %v: %v", keys, err)
	}
}

func (r *CachedProgressRepository) LoadState(ctx context.Context, userID string) (*domain.ProgressState, error) {
	return r.next.LoadState(ctx, userID)
}

func (r *CachedProgressRepository) SaveState(ctx context.Context, state *domain.ProgressState) error {
	return r.next.SaveState(ctx, state)
}

func (r *CachedProgressRepository) DeleteState(ctx context.Context, userID string) error {
	if err := r.next.DeleteState(ctx, userID); err != nil {
		return err
	}
	r.invalidate(ctx, r.archiveKey(userID), r.streakKey(userID))
	return nil
}

func (r *CachedProgressRepository) ListWeeklyRecords(ctx context.Context, userID string) ([]*domain.WeeklyRecord, error) {
	key := r.archiveKey(userID)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var records []*domain.WeeklyRecord
		if err := json.Unmarshal([]byte(val), &records); err == nil {
			return records, nil
		}

		log.Printf("[CACHE] Corrupted archive for user %s, cleaning up key", userID)
		r.cache.Del(ctx, key)
	} else if err != redis.Nil {
		log.Printf("[CACHE] Redis read error: %v", err)
	}

	records, err := r.next.ListWeeklyRecords(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(records); err == nil {
		if setErr := r.cache.Set(ctx, key, data, cacheTTL).Err(); setErr != nil {
			log.Printf("[CACHE] Redis set error: %v", setErr)
		}
	}

	return records, nil
}

func (r *CachedProgressRepository) UpsertWeeklyRecord(ctx context.Context, userID string, record *domain.WeeklyRecord) error {
	if err := r.next.UpsertWeeklyRecord(ctx, userID, record); err != nil {
		return err
	}
	r.invalidate(ctx, r.archiveKey(userID))
	return nil
}

func (r *CachedProgressRepository) LoadStreakSummary(ctx context.Context, userID string) (*domain.StreakSummary, error) {
	key := r.streakKey(userID)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var summary domain.StreakSummary
		if err := json.Unmarshal([]byte(val), &summary); err == nil {
			return &summary, nil
		}

		log.Printf("[CACHE] Corrupted streak summary for user %s, cleaning up key", userID)
		r.cache.Del(ctx, key)
	} else if err != redis.Nil {
		log.Printf("[CACHE] Redis read error: %v", err)
	}

	summary, err := r.next.LoadStreakSummary(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(summary); err == nil {
		if setErr := r.cache.Set(ctx, key, data, cacheTTL).Err(); setErr != nil {
			log.Printf("[CACHE] Redis set error: %v", setErr)
		}
	}

	return summary, nil
}

func (r *CachedProgressRepository) SaveStreakSummary(ctx context.Context, userID string, summary *domain.StreakSummary) error {
	if err := r.next.SaveStreakSummary(ctx, userID, summary); err != nil {
		return err
	}
	r.invalidate(ctx, r.streakKey(userID))
	return nil
}

func (r *CachedProgressRepository) GetSetting(ctx context.Context, userID, key string) (string, error) {
	return r.next.GetSetting(ctx, userID, key)
}

func (r *CachedProgressRepository) SetSetting(ctx context.Context, userID, key, value string) error {
	return r.next.SetSetting(ctx, userID, key, value)
}

func (r *CachedProgressRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	return r.next.ListUserIDs(ctx)
}
