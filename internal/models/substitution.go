package models

import (
	"fmt"
	"strconv"
	"strings"
)

// CellKey identifies a grid cell; its string form is "{day}_{periodId}".
type CellKey struct {
	Day      Day
	PeriodID int64
}

// String renders the key, e.g. "monday_1".
func (k CellKey) String() string {
	return fmt.Sprintf("%s_%d", k.Day, k.PeriodID)
}

// Less orders keys by day of week, then period id.
func (k CellKey) Less(other CellKey) bool {
	if k.Day != other.Day {
		return k.Day.Offset() < other.Day.Offset()
	}
	return k.PeriodID < other.PeriodID
}

// ParseCellKey reads a "{day}_{periodId}" key. The day part goes through
// ParseDay so "Mon_3" is accepted as monday_3.
func ParseCellKey(raw string) (CellKey, error) {
	idx := strings.LastIndex(raw, "_")
	if idx <= 0 || idx == len(raw)-1 {
		return CellKey{}, fmt.Errorf("cell key %q: want {day}_{periodId}", raw)
	}
	day, ok := ParseDay(raw[:idx])
	if !ok {
		return CellKey{}, fmt.Errorf("cell key %q: unknown day", raw)
	}
	periodID, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil || periodID <= 0 {
		return CellKey{}, fmt.Errorf("cell key %q: invalid period id", raw)
	}
	return CellKey{Day: day, PeriodID: periodID}, nil
}

// MarshalText lets CellKey be used as a JSON object key.
func (k CellKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "{day}_{periodId}" form.
func (k *CellKey) UnmarshalText(text []byte) error {
	parsed, err := ParseCellKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SubstitutionAssignment is a substitute teacher covering one class period
// on one date. ID is zero until the ERP has persisted the record.
type SubstitutionAssignment struct {
	ID                int64  `json:"id,omitempty"`
	Date              string `json:"date"`
	Day               Day    `json:"day"`
	PeriodID          int64  `json:"period_id"`
	ClassID           int64  `json:"class_id,omitempty"`
	SubjectID         int64  `json:"subject_id,omitempty"`
	OriginalTeacherID int64  `json:"original_teacher_id"`
	TeacherID         int64  `json:"teacher_id"`
	TeacherName       string `json:"teacher_name,omitempty"`
	Published         bool   `json:"published"`
}

// Key returns the grid cell the assignment belongs to.
func (a SubstitutionAssignment) Key() CellKey {
	return CellKey{Day: a.Day, PeriodID: a.PeriodID}
}

// Persisted reports whether the ERP has assigned an id.
func (a SubstitutionAssignment) Persisted() bool {
	return a.ID > 0
}

// CellState is the reconciliation state of one cell.
type CellState string

const (
	CellEmpty         CellState = "EMPTY"
	CellPendingCreate CellState = "PENDING_CREATE"
	CellPendingUpdate CellState = "PENDING_UPDATE"
	CellConfirmed     CellState = "CONFIRMED"
	CellPendingDelete CellState = "PENDING_DELETE"
)

// CellSnapshot exposes the state of a cell together with both sides of the
// reconciliation.
type CellSnapshot struct {
	Key      CellKey                 `json:"key"`
	State    CellState               `json:"state"`
	Pending  *SubstitutionAssignment `json:"pending,omitempty"`
	Baseline *SubstitutionAssignment `json:"baseline,omitempty"`
}

// Operation names a reconciliation write.
type Operation string

const (
	OperationUpsert Operation = "UPSERT"
	OperationDelete Operation = "DELETE"
)

// Outcome is the per-key result of a write.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	// OutcomeAlreadyGone marks a delete the ERP answered with not-found.
	OutcomeAlreadyGone Outcome = "ALREADY_GONE"
	// OutcomeRejected marks an upsert blocked by local validation.
	OutcomeRejected Outcome = "REJECTED"
)

// CellOutcome reports what happened to one key during a submission.
type CellOutcome struct {
	Key        CellKey                 `json:"key"`
	Operation  Operation               `json:"operation"`
	Outcome    Outcome                 `json:"outcome"`
	Assignment *SubstitutionAssignment `json:"assignment,omitempty"`
	Code       string                  `json:"code,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

// Ok reports whether the intended end state was reached.
func (o CellOutcome) Ok() bool {
	return o.Outcome == OutcomeSucceeded || o.Outcome == OutcomeAlreadyGone
}

// BulkSubmitResult summarises a submit-all pass.
type BulkSubmitResult struct {
	Date      string        `json:"date"`
	Outcomes  []CellOutcome `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}
