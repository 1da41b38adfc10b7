package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

type sessionPreferenceRepository interface {
	Get(ctx context.Context, sessionKey string) (*models.SessionPreference, error)
	Save(ctx context.Context, sessionKey string, pref models.SessionPreference, ttl time.Duration) error
}

// SessionConfig tunes how persisted selections are restored.
type SessionConfig struct {
	StaleDateWindow time.Duration
	PreferenceTTL   time.Duration
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// RestoredSelection is the starting point of a freshly opened workspace.
type RestoredSelection struct {
	TeacherID int64
	Date      time.Time
	// DateRestored is false when the date fell back to today.
	DateRestored bool
}

// SessionService persists and restores the operator's last selection.
type SessionService struct {
	repo   sessionPreferenceRepository
	cfg    SessionConfig
	logger *zap.Logger
}

// NewSessionService constructs a SessionService. repo may be nil, in which
// case nothing is persisted.
func NewSessionService(repo sessionPreferenceRepository, cfg SessionConfig, logger *zap.Logger) *SessionService {
	if cfg.StaleDateWindow <= 0 {
		cfg.StaleDateWindow = 7 * 24 * time.Hour
	}
	if cfg.PreferenceTTL <= 0 {
		cfg.PreferenceTTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, cfg: cfg, logger: logger}
}

// Today returns the current calendar date.
func (s *SessionService) Today() time.Time {
	return models.CalendarDate(s.cfg.Now())
}

// Restore loads the persisted selection. A stored date further than the
// stale window from today, in either direction, is replaced by today.
func (s *SessionService) Restore(ctx context.Context, sessionKey string) RestoredSelection {
	today := s.Today()
	restored := RestoredSelection{Date: today}
	if s.repo == nil {
		return restored
	}

	pref, err := s.repo.Get(ctx, sessionKey)
	if err != nil {
		s.logger.Warn("session preference load failed", zap.String("session", sessionKey), zap.Error(err))
		return restored
	}
	if pref == nil {
		return restored
	}

	restored.TeacherID = pref.TeacherID
	if pref.Date == "" {
		return restored
	}
	date, err := models.ParseDate(pref.Date)
	if err != nil {
		return restored
	}
	if s.isStale(date, today) {
		s.logger.Debug("persisted date discarded", zap.String("session", sessionKey), zap.String("date", pref.Date))
		return restored
	}
	restored.Date = date
	restored.DateRestored = true
	return restored
}

func (s *SessionService) isStale(date, today time.Time) bool {
	diff := today.Sub(date)
	if diff < 0 {
		diff = -diff
	}
	return diff > s.cfg.StaleDateWindow
}

// Save persists the selection. Failures are logged; losing a preference must
// never fail the operator's action.
func (s *SessionService) Save(ctx context.Context, sessionKey string, teacherID int64, date time.Time) {
	if s.repo == nil {
		return
	}
	pref := models.SessionPreference{
		TeacherID: teacherID,
		Date:      models.FormatDate(date),
		SavedAt:   s.cfg.Now().UTC(),
	}
	if err := s.repo.Save(ctx, sessionKey, pref, s.cfg.PreferenceTTL); err != nil {
		s.logger.Warn("session preference save failed", zap.String("session", sessionKey), zap.Error(err))
	}
}
