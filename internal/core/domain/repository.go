package domain

import (
	"context"
	"errors"
)

var (
	ErrSummaryNotFound = errors.New("streak summary not found")
	ErrSettingNotFound = errors.New("setting not found")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Settings keys the engine itself reads and writes.
const (
	SettingLastSyncCode = "lastSyncCode"
	SettingLastSyncTime = "lastSyncTime"
)

// ProgressRepository persists everything the engine owns for a user: the live
// state blob, the append-only weekly archive, the derived streak summary, and
// small key-value settings.
type ProgressRepository interface {
	// LoadState retrieves the live state blob; ErrStateNotFound for new users.
	LoadState(ctx context.Context, userID string) (*ProgressState, error)

	// SaveState upserts the state blob. Implementations must enforce
	// optimistic locking on the version field and return ErrStateConflict
	// when the stored version has moved.
	SaveState(ctx context.Context, state *ProgressState) error

	// DeleteState removes the state blob, the weekly archive, the streak
	// summary, and all settings for the user.
	DeleteState(ctx context.Context, userID string) error

	// ListWeeklyRecords returns the archive ordered by week start ascending.
	ListWeeklyRecords(ctx context.Context, userID string) ([]*WeeklyRecord, error)

	// UpsertWeeklyRecord stores an archive record idempotently, keyed by
	// (userID, weekId); replaying a boundary crossing must not duplicate it.
	UpsertWeeklyRecord(ctx context.Context, userID string, record *WeeklyRecord) error

	// LoadStreakSummary retrieves the cached summary; ErrSummaryNotFound
	// when it has never been computed.
	LoadStreakSummary(ctx context.Context, userID string) (*StreakSummary, error)

	// SaveStreakSummary replaces the cached summary.
	SaveStreakSummary(ctx context.Context, userID string, summary *StreakSummary) error

	// GetSetting / SetSetting manage per-user key-value settings.
	GetSetting(ctx context.Context, userID, key string) (string, error)
	SetSetting(ctx context.Context, userID, key, value string) error

	// ListUserIDs returns every user with a stored state; the consistency
	// sweep iterates over these.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// UserRepository persists account records for the auth layer.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
