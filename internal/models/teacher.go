package models

// Teacher is the roster entry used by the teacher selector. UserID is the
// identity referenced by timetables and substitutions.
type Teacher struct {
	UserID     int64  `json:"user_id"`
	EmployeeID string `json:"employee_id,omitempty"`
	Name       string `json:"name"`
}

// TeacherWorkload is the upstream workload summary for a teacher.
type TeacherWorkload struct {
	TeacherID int64       `json:"teacher_id"`
	Weekly    int         `json:"weekly"`
	Daily     map[Day]int `json:"daily"`
}

// AvailabilityCandidate is a free teacher enriched with workload figures.
// It is recomputed for every cell selection.
type AvailabilityCandidate struct {
	TeacherID      int64  `json:"teacher_id"`
	Name           string `json:"name"`
	WeeklyWorkload int    `json:"weekly_workload"`
	DayWorkload    int    `json:"day_workload"`
	WorkloadKnown  bool   `json:"workload_known"`
}

// AvailabilityStatus distinguishes an empty answer from no answer.
type AvailabilityStatus string

const (
	AvailabilityResolved AvailabilityStatus = "resolved"
	AvailabilityUnknown  AvailabilityStatus = "unknown"
)

// AvailabilityResult is the ranked candidate list for one (date, period).
type AvailabilityResult struct {
	Date       string                  `json:"date"`
	Day        Day                     `json:"day"`
	PeriodID   int64                   `json:"period_id"`
	Status     AvailabilityStatus      `json:"status"`
	Candidates []AvailabilityCandidate `json:"candidates"`
}
