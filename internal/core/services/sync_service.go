package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lcollard/mergepace/internal/core/domain"
)

var (
	ErrSyncCodeNotFound = errors.New("sync code not found or expired")
	ErrInvalidSyncCode  = errors.New("invalid sync code format")
)

const (
	syncCodeLength   = 6
	syncCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// SyncCodeTTL is how long an uploaded bundle stays retrievable.
	SyncCodeTTL = 30 * 24 * time.Hour
)

// CodeStore holds uploaded bundles under their short codes, with expiry.
type CodeStore interface {
	Save(ctx context.Context, code string, payload []byte, ttl time.Duration) error
	Load(ctx context.Context, code string) ([]byte, error)
	Delete(ctx context.Context, code string) error
}

// SyncService moves a user's complete data set across devices, either as a
// file-shaped bundle or through short-lived sync codes.
type SyncService struct {
	repo     domain.ProgressRepository
	codes    CodeStore
	progress *ProgressService
	streaks  *StreakService

	Now func() time.Time
}

func NewSyncService(repo domain.ProgressRepository, codes CodeStore, progress *ProgressService, streaks *StreakService) *SyncService {
	return &SyncService{
		repo:     repo,
		codes:    codes,
		progress: progress,
		streaks:  streaks,
		Now:      time.Now,
	}
}

// Export assembles the portable bundle: reconciled live state, the full weekly
// archive, and the streak summary.
func (s *SyncService) Export(ctx context.Context, userID string) (*domain.ExportBundle, error) {
	state, err := s.progress.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListWeeklyRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sync service: list archive: %w", err)
	}
	summary, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.ExportBundle{
		CurrentProgress: state,
		WeeklyHistory:   records,
		StreakSummary:   summary,
		ExportedAt:      s.Now().UTC(),
		Version:         domain.ExportVersion,
	}, nil
}

// Import replaces the user's data with the bundle's contents. The live state
// goes through the full reconciliation pipeline, archive records merge in
// idempotently, and the streak summary is recomputed rather than trusted.
func (s *SyncService) Import(ctx context.Context, userID string, bundle *domain.ExportBundle) (*domain.ProgressState, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	state, err := s.progress.ReplaceState(ctx, userID, bundle.CurrentProgress)
	if err != nil {
		return nil, err
	}

	for _, record := range bundle.WeeklyHistory {
		if record == nil || record.WeekID == "" {
			continue
		}
		if err := s.repo.UpsertWeeklyRecord(ctx, userID, record); err != nil {
			return nil, fmt.Errorf("sync service: import week %s: %w", record.WeekID, err)
		}
	}

	if _, _, err := s.streaks.Recalculate(ctx, userID); err != nil {
		return nil, err
	}
	return state, nil
}

// Upload stores the user's bundle under a fresh short code.
func (s *SyncService) Upload(ctx context.Context, userID string) (string, time.Time, error) {
	bundle, err := s.Export(ctx, userID)
	if err != nil {
		return "", time.Time{}, err
	}

	raw, err := json.Marshal(bundle)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sync service: encode bundle: %w", err)
	}
	payload := []byte(base64.StdEncoding.EncodeToString(raw))

	code, err := generateSyncCode()
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.codes.Save(ctx, code, payload, SyncCodeTTL); err != nil {
		return "", time.Time{}, fmt.Errorf("sync service: store code: %w", err)
	}

	now := s.Now()
	if err := s.repo.SetSetting(ctx, userID, domain.SettingLastSyncCode, code); err != nil {
		return "", time.Time{}, fmt.Errorf("sync service: record code: %w", err)
	}
	if err := s.repo.SetSetting(ctx, userID, domain.SettingLastSyncTime, now.UTC().Format(time.RFC3339)); err != nil {
		return "", time.Time{}, fmt.Errorf("sync service: record sync time: %w", err)
	}

	return code, now.Add(SyncCodeTTL), nil
}

// Download retrieves the bundle behind a code and imports it for the user.
func (s *SyncService) Download(ctx context.Context, userID, code string) (*domain.ProgressState, error) {
	code = normalizeSyncCode(code)
	if len(code) != syncCodeLength {
		return nil, ErrInvalidSyncCode
	}

	payload, err := s.codes.Load(ctx, code)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		return nil, fmt.Errorf("sync service: decode payload: %w", err)
	}

	var bundle domain.ExportBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("sync service: decode bundle: %w", err)
	}

	state, err := s.Import(ctx, userID, &bundle)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if err := s.repo.SetSetting(ctx, userID, domain.SettingLastSyncCode, code); err != nil {
		return nil, fmt.Errorf("sync service: record code: %w", err)
	}
	if err := s.repo.SetSetting(ctx, userID, domain.SettingLastSyncTime, now.UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("sync service: record sync time: %w", err)
	}
	return state, nil
}

// SyncStatus reports the last code the user touched and when.
type SyncStatus struct {
	HasSync  bool       `json:"hasSync"`
	LastCode string     `json:"lastCode,omitempty"`
	LastTime *time.Time `json:"lastTime,omitempty"`
}

func (s *SyncService) Status(ctx context.Context, userID string) (*SyncStatus, error) {
	code, err := s.repo.GetSetting(ctx, userID, domain.SettingLastSyncCode)
	if errors.Is(err, domain.ErrSettingNotFound) || code == "" {
		return &SyncStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync service: load status: %w", err)
	}

	status := &SyncStatus{HasSync: true, LastCode: code}
	if raw, err := s.repo.GetSetting(ctx, userID, domain.SettingLastSyncTime); err == nil {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			status.LastTime = &t
		}
	}
	return status, nil
}

// Clear revokes the user's last sync code and forgets the sync metadata.
func (s *SyncService) Clear(ctx context.Context, userID string) error {
	code, err := s.repo.GetSetting(ctx, userID, domain.SettingLastSyncCode)
	if errors.Is(err, domain.ErrSettingNotFound) || code == "" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync service: load code: %w", err)
	}

	if err := s.codes.Delete(ctx, code); err != nil && !errors.Is(err, ErrSyncCodeNotFound) {
		return fmt.Errorf("sync service: revoke code: %w", err)
	}
	if err := s.repo.SetSetting(ctx, userID, domain.SettingLastSyncCode, ""); err != nil {
		return fmt.Errorf("sync service: clear code: %w", err)
	}
	return s.repo.SetSetting(ctx, userID, domain.SettingLastSyncTime, "")
}

func generateSyncCode() (string, error) {
	buf := make([]byte, syncCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("sync service: generate code: %w", err)
	}
	for i, b := range buf {
		buf[i] = syncCodeAlphabet[int(b)%len(syncCodeAlphabet)]
	}
	return string(buf), nil
}

func normalizeSyncCode(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
			out = append(out, c)
		case c == ' ' || c == '-':
			// Separators users tend to type are ignored.
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
