package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// SubmissionLogRepository persists substitution write attempts.
type SubmissionLogRepository struct {
	db *sqlx.DB
}

// NewSubmissionLogRepository constructs the repository.
func NewSubmissionLogRepository(db *sqlx.DB) *SubmissionLogRepository {
	return &SubmissionLogRepository{db: db}
}

// Create stores one attempt.
func (r *SubmissionLogRepository) Create(ctx context.Context, entry *models.SubmissionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO substitution_submission_logs
	(id, session_key, substitution_date, cell_key, operation, outcome, assignment_id, original_teacher_id, substitute_teacher_id, message, created_at)
	VALUES (:id, :session_key, :substitution_date, :cell_key, :operation, :outcome, :assignment_id, :original_teacher_id, :substitute_teacher_id, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create submission log: %w", err)
	}
	return nil
}

// List returns attempts for a date, newest first.
func (r *SubmissionLogRepository) List(ctx context.Context, filter models.SubmissionLogFilter) ([]models.SubmissionLog, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, session_key, substitution_date, cell_key, operation, outcome, assignment_id,
       original_teacher_id, substitute_teacher_id, message, created_at FROM substitution_submission_logs`)
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 2)

	if !filter.Date.IsZero() {
		args = append(args, filter.Date.Format(models.DateLayout))
		conditions = append(conditions, fmt.Sprintf("substitution_date = $%d", len(args)))
	}
	if filter.OriginalTeacherID > 0 {
		args = append(args, filter.OriginalTeacherID)
		conditions = append(conditions, fmt.Sprintf("original_teacher_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		builder.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	var logs []models.SubmissionLog
	if err := r.db.SelectContext(ctx, &logs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submission logs: %w", err)
	}
	if logs == nil {
		logs = []models.SubmissionLog{}
	}
	return logs, nil
}
