package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

var submissionLogColumns = []string{
	"id", "session_key", "substitution_date", "cell_key", "operation", "outcome", "assignment_id",
	"original_teacher_id", "substitute_teacher_id", "message", "created_at",
}

func newSubmissionLogRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubmissionLogRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newSubmissionLogRepoMock(t)
	defer cleanup()

	repo := NewSubmissionLogRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO substitution_submission_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignmentID := int64(41)
	entry := &models.SubmissionLog{
		SessionKey:        "user:7",
		Date:              time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		CellKey:           "monday_1",
		Operation:         models.OperationUpsert,
		Outcome:           models.OutcomeSucceeded,
		AssignmentID:      &assignmentID,
		OriginalTeacherID: 3,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionLogRepositoryCreateWrapsError(t *testing.T) {
	db, mock, cleanup := newSubmissionLogRepoMock(t)
	defer cleanup()

	repo := NewSubmissionLogRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO substitution_submission_logs")).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &models.SubmissionLog{CellKey: "monday_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create submission log")
}

func TestSubmissionLogRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newSubmissionLogRepoMock(t)
	defer cleanup()

	repo := NewSubmissionLogRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(submissionLogColumns).
		AddRow("log-2", "user:7", now, "monday_2", "DELETE", "FAILED", 12, 3, nil, "boom", now).
		AddRow("log-1", "user:7", now, "monday_1", "UPSERT", "SUCCEEDED", 11, 3, 9, "", now.Add(-time.Minute))
	mock.ExpectQuery(`(?s)SELECT (.+) FROM substitution_submission_logs WHERE substitution_date = \$1 AND original_teacher_id = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("2024-06-03", int64(3), 50).
		WillReturnRows(rows)

	logs, err := repo.List(context.Background(), models.SubmissionLogFilter{
		Date:              time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		OriginalTeacherID: 3,
		Limit:             50,
	})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "log-2", logs[0].ID)
	assert.Nil(t, logs[0].SubstituteTeacherID)
	require.NotNil(t, logs[1].SubstituteTeacherID)
	assert.Equal(t, int64(9), *logs[1].SubstituteTeacherID)
	assert.Equal(t, models.OutcomeSucceeded, logs[1].Outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionLogRepositoryListEmpty(t *testing.T) {
	db, mock, cleanup := newSubmissionLogRepoMock(t)
	defer cleanup()

	repo := NewSubmissionLogRepository(db)
	mock.ExpectQuery(`(?s)SELECT (.+) FROM substitution_submission_logs ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(submissionLogColumns))

	logs, err := repo.List(context.Background(), models.SubmissionLogFilter{})
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)
	require.NoError(t, mock.ExpectationsWereMet())
}
