package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lcollard/mergepace/internal/core/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresProgressRepository persists progress state across four tables:
// progress_states (one row per user, daily history as JSONB, version-guarded),
// weekly_records (append-only archive keyed by user_id+week_id),
// streak_summaries (one JSONB blob per user) and user_settings (key-value).
type PostgresProgressRepository struct {
	db *sqlx.DB
}

func NewPostgresProgressRepository(db *sqlx.DB) *PostgresProgressRepository {
	return &PostgresProgressRepository{db: db}
}

type progressStateRow struct {
	UserID        string    `db:"user_id"`
	CurrentMerges int       `db:"current_merges"`
	MergeRate     float64   `db:"merge_rate_per_10min"`
	TargetGoal    int       `db:"target_goal"`
	WeekStart     time.Time `db:"week_start"`
	WeekEnd       time.Time `db:"week_end"`
	DailyHistory  []byte    `db:"daily_history"`
	Version       int       `db:"version"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *PostgresProgressRepository) LoadState(ctx context.Context, userID string) (*domain.ProgressState, error) {
	var row progressStateRow
	query := `SELECT * FROM progress_states WHERE user_id = $1`

	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("repository: load state: %w", err)
	}

	state := &domain.ProgressState{
		UserID:            row.UserID,
		CurrentMerges:     row.CurrentMerges,
		MergeRatePer10Min: row.MergeRate,
		TargetGoal:        row.TargetGoal,
		WeekStart:         row.WeekStart,
		WeekEnd:           row.WeekEnd,
		DailyHistory:      make(domain.DailyHistory),
		Version:           row.Version,
		UpdatedAt:         row.UpdatedAt,
	}

	// Decoding through DailyHistory normalizes legacy entries in one place.
	if len(row.DailyHistory) > 0 {
		if err := json.Unmarshal(row.DailyHistory, &state.DailyHistory); err != nil {
			return nil, fmt.Errorf("repository: decode daily history for %s: %w", userID, err)
		}
	}

	return state, nil
}

func (r *PostgresProgressRepository) SaveState(ctx context.Context, state *domain.ProgressState) error {
	history, err := json.Marshal(state.DailyHistory)
	if err != nil {
		return fmt.Errorf("repository: encode daily history: %w", err)
	}

	row := progressStateRow{
		UserID:        state.UserID,
		CurrentMerges: state.CurrentMerges,
		MergeRate:     state.MergeRatePer10Min,
		TargetGoal:    state.TargetGoal,
		WeekStart:     state.WeekStart,
		WeekEnd:       state.WeekEnd,
		DailyHistory:  history,
		Version:       state.Version,
		UpdatedAt:     state.UpdatedAt,
	}

	query := `
		INSERT INTO progress_states (
			user_id, current_merges, merge_rate_per_10min, target_goal,
			week_start, week_end, daily_history, version, updated_at
		) VALUES (
			:user_id, :current_merges, :merge_rate_per_10min, :target_goal,
			:week_start, :week_end, :daily_history, :version, :updated_at
		)
		ON CONFLICT (user_id) DO UPDATE SET
			current_merges = EXCLUDED.current_merges,
			merge_rate_per_10min = EXCLUDED.merge_rate_per_10min,
			target_goal = EXCLUDED.target_goal,
			week_start = EXCLUDED.week_start,
			week_end = EXCLUDED.week_end,
			daily_history = EXCLUDED.daily_history,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE progress_states.version = EXCLUDED.version - 1`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return errors.New("referenced user does not exist")
		}
		return fmt.Errorf("repository: save state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrStateConflict
	}
	return nil
}

func (r *PostgresProgressRepository) DeleteState(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM user_settings WHERE user_id = $1`,
		`DELETE FROM streak_summaries WHERE user_id = $1`,
		`DELETE FROM weekly_records WHERE user_id = $1`,
		`DELETE FROM progress_states WHERE user_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, userID); err != nil {
			return fmt.Errorf("repository: delete state: %w", err)
		}
	}

	return tx.Commit()
}

type weeklyRecordRow struct {
	UserID        string    `db:"user_id"`
	WeekID        string    `db:"week_id"`
	WeekStart     time.Time `db:"week_start"`
	WeekEnd       time.Time `db:"week_end"`
	FinalMerges   int       `db:"final_merges"`
	TargetGoal    int       `db:"target_goal"`
	MergeRate     float64   `db:"merge_rate_per_10min"`
	Completed     bool      `db:"completed"`
	Achievement   float64   `db:"achievement_rate"`
	DailyProgress []byte    `db:"daily_progress"`
	CompletedAt   time.Time `db:"completed_at"`
}

func (r *PostgresProgressRepository) ListWeeklyRecords(ctx context.Context, userID string) ([]*domain.WeeklyRecord, error) {
	rows := []weeklyRecordRow{}
	query := `SELECT * FROM weekly_records WHERE user_id = $1 ORDER BY week_start ASC`

	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("repository: list weekly records: %w", err)
	}

	records := make([]*domain.WeeklyRecord, 0, len(rows))
	for _, row := range rows {
		record := &domain.WeeklyRecord{
			WeekID:            row.WeekID,
			WeekStart:         row.WeekStart,
			WeekEnd:           row.WeekEnd,
			FinalMerges:       row.FinalMerges,
			TargetGoal:        row.TargetGoal,
			MergeRatePer10Min: row.MergeRate,
			Completed:         row.Completed,
			AchievementRate:   row.Achievement,
			CompletedAt:       row.CompletedAt,
		}
		if len(row.DailyProgress) > 0 {
			if err := json.Unmarshal(row.DailyProgress, &record.DailyProgress); err != nil {
				return nil, fmt.Errorf("repository: decode daily progress for week %s: %w", row.WeekID, err)
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *PostgresProgressRepository) UpsertWeeklyRecord(ctx context.Context, userID string, record *domain.WeeklyRecord) error {
	daily, err := json.Marshal(record.DailyProgress)
	if err != nil {
		return fmt.Errorf("repository: encode daily progress: %w", err)
	}

	row := weeklyRecordRow{
		UserID:        userID,
		WeekID:        record.WeekID,
		WeekStart:     record.WeekStart,
		WeekEnd:       record.WeekEnd,
		FinalMerges:   record.FinalMerges,
		TargetGoal:    record.TargetGoal,
		MergeRate:     record.MergeRatePer10Min,
		Completed:     record.Completed,
		Achievement:   record.AchievementRate,
		DailyProgress: daily,
		CompletedAt:   record.CompletedAt,
	}

	// DO NOTHING keeps the first archived version: a replayed rollover for an
	// already archived week must not rewrite it.
	query := `
		INSERT INTO weekly_records (
			user_id, week_id, week_start, week_end, final_merges, target_goal,
			merge_rate_per_10min, completed, achievement_rate, daily_progress, completed_at
		) VALUES (
			:user_id, :week_id, :week_start, :week_end, :final_merges, :target_goal,
			:merge_rate_per_10min, :completed, :achievement_rate, :daily_progress, :completed_at
		)
		ON CONFLICT (user_id, week_id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("repository: upsert weekly record: %w", err)
	}
	return nil
}

func (r *PostgresProgressRepository) LoadStreakSummary(ctx context.Context, userID string) (*domain.StreakSummary, error) {
	var payload []byte
	query := `SELECT payload FROM streak_summaries WHERE user_id = $1`

	if err := r.db.GetContext(ctx, &payload, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSummaryNotFound
		}
		return nil, fmt.Errorf("repository: load streak summary: %w", err)
	}

	var summary domain.StreakSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("repository: decode streak summary: %w", err)
	}
	return &summary, nil
}

func (r *PostgresProgressRepository) SaveStreakSummary(ctx context.Context, userID string, summary *domain.StreakSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("repository: encode streak summary: %w", err)
	}

	query := `
		INSERT INTO streak_summaries (user_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, payload); err != nil {
		return fmt.Errorf("repository: save streak summary: %w", err)
	}
	return nil
}

func (r *PostgresProgressRepository) GetSetting(ctx context.Context, userID, key string) (string, error) {
	var value string
	query := `SELECT value FROM user_settings WHERE user_id = $1 AND key = $2`

	if err := r.db.GetContext(ctx, &value, query, userID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrSettingNotFound
		}
		return "", fmt.Errorf("repository: get setting %s: %w", key, err)
	}
	return value, nil
}

func (r *PostgresProgressRepository) SetSetting(ctx context.Context, userID, key, value string) error {
	query := `
		INSERT INTO user_settings (user_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, key, value); err != nil {
		return fmt.Errorf("repository: set setting %s: %w", key, err)
	}
	return nil
}

func (r *PostgresProgressRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	query := `SELECT user_id FROM progress_states ORDER BY user_id ASC`

	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("repository: list user ids: %w", err)
	}
	return ids, nil
}
