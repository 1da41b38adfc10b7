package models

import "time"

// SessionPreference is the operator's last selection, persisted between
// visits. Date is an ISO date; both fields may be empty.
type SessionPreference struct {
	TeacherID int64     `json:"teacher_id,omitempty"`
	Date      string    `json:"date,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// Session identifies the operator behind a request and carries the bearer
// token forwarded to the ERP.
type Session struct {
	Key   string
	Token string
}
