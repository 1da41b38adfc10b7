package models

import "time"

// SubmissionLog records one write attempt against the ERP.
type SubmissionLog struct {
	ID                  string    `db:"id" json:"id"`
	SessionKey          string    `db:"session_key" json:"session_key"`
	Date                time.Time `db:"substitution_date" json:"date"`
	CellKey             string    `db:"cell_key" json:"cell_key"`
	Operation           Operation `db:"operation" json:"operation"`
	Outcome             Outcome   `db:"outcome" json:"outcome"`
	AssignmentID        *int64    `db:"assignment_id" json:"assignment_id,omitempty"`
	OriginalTeacherID   int64     `db:"original_teacher_id" json:"original_teacher_id"`
	SubstituteTeacherID *int64    `db:"substitute_teacher_id" json:"substitute_teacher_id,omitempty"`
	Message             string    `db:"message" json:"message"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// SubmissionLogFilter narrows the log listing.
type SubmissionLogFilter struct {
	Date              time.Time
	OriginalTeacherID int64
	Limit             int
}
