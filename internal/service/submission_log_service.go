package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/jobs"
)

// SubmissionLogJobType tags queue jobs carrying a submission log entry.
const SubmissionLogJobType = "submission_log"

const (
	defaultSubmissionLogLimit = 100
	maxSubmissionLogLimit     = 500
)

type submissionLogRepository interface {
	Create(ctx context.Context, entry *models.SubmissionLog) error
	List(ctx context.Context, filter models.SubmissionLogFilter) ([]models.SubmissionLog, error)
}

type submissionLogQueue interface {
	TryEnqueue(job jobs.Job) error
}

type queryMetrics interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// SubmissionAttempt is the context of one batch of writes.
type SubmissionAttempt struct {
	SessionKey        string
	Date              string
	OriginalTeacherID int64
	Outcomes          []models.CellOutcome
}

// SubmissionLogService records substitution write attempts so operators can
// see which cells diverged from the ERP after a partial failure.
type SubmissionLogService struct {
	repo    submissionLogRepository
	queue   submissionLogQueue
	metrics queryMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSubmissionLogService wires the log. A nil repo disables it; a nil queue
// makes Record write synchronously. metrics may be nil.
func NewSubmissionLogService(repo submissionLogRepository, queue submissionLogQueue, metrics queryMetrics, logger *zap.Logger) *SubmissionLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionLogService{repo: repo, queue: queue, metrics: metrics, logger: logger, now: time.Now}
}

// SetQueue attaches the queue once it has been built around Handle.
func (s *SubmissionLogService) SetQueue(queue submissionLogQueue) {
	if s == nil {
		return
	}
	s.queue = queue
}

// Enabled reports whether entries are stored anywhere.
func (s *SubmissionLogService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Record stores one entry per outcome. It never fails the caller.
func (s *SubmissionLogService) Record(ctx context.Context, attempt SubmissionAttempt) {
	if !s.Enabled() {
		return
	}
	date, err := models.ParseDate(attempt.Date)
	if err != nil {
		s.logger.Warn("submission log skipped", zap.String("date", attempt.Date), zap.Error(err))
		return
	}
	for _, outcome := range attempt.Outcomes {
		entry := s.entry(attempt, date, outcome)
		if s.queue == nil {
			if err := s.create(ctx, entry); err != nil {
				s.logger.Warn("submission log write failed", zap.String("cell", entry.CellKey), zap.Error(err))
			}
			continue
		}
		if err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: SubmissionLogJobType, Payload: entry}); err != nil {
			s.logger.Warn("submission log dropped", zap.String("cell", entry.CellKey), zap.Error(err))
		}
	}
}

func (s *SubmissionLogService) entry(attempt SubmissionAttempt, date time.Time, outcome models.CellOutcome) *models.SubmissionLog {
	entry := &models.SubmissionLog{
		ID:                uuid.NewString(),
		SessionKey:        attempt.SessionKey,
		Date:              date,
		CellKey:           outcome.Key.String(),
		Operation:         outcome.Operation,
		Outcome:           outcome.Outcome,
		OriginalTeacherID: attempt.OriginalTeacherID,
		Message:           outcome.Message,
		CreatedAt:         s.now().UTC(),
	}
	if a := outcome.Assignment; a != nil {
		if a.Persisted() {
			id := a.ID
			entry.AssignmentID = &id
		}
		if a.TeacherID > 0 && outcome.Operation == models.OperationUpsert {
			teacherID := a.TeacherID
			entry.SubstituteTeacherID = &teacherID
		}
	}
	return entry
}

// Handle is the queue handler persisting one entry.
func (s *SubmissionLogService) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.SubmissionLog)
	if !ok || entry == nil {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	if err := s.create(ctx, entry); err != nil {
		return fmt.Errorf("persist submission log: %w", err)
	}
	return nil
}

func (s *SubmissionLogService) create(ctx context.Context, entry *models.SubmissionLog) error {
	start := time.Now()
	err := s.repo.Create(ctx, entry)
	s.observe("submission_log_create", start)
	return err
}

func (s *SubmissionLogService) observe(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// List returns the recorded attempts for a date, newest first.
func (s *SubmissionLogService) List(ctx context.Context, filter models.SubmissionLogFilter) ([]models.SubmissionLog, error) {
	if !s.Enabled() {
		return []models.SubmissionLog{}, nil
	}
	if filter.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultSubmissionLogLimit
	}
	if filter.Limit > maxSubmissionLogLimit {
		filter.Limit = maxSubmissionLogLimit
	}
	start := time.Now()
	logs, err := s.repo.List(ctx, filter)
	s.observe("submission_log_list", start)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submission log")
	}
	return logs, nil
}
