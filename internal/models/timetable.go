package models

// Period is one of the fixed daily time slots shared by all teachers.
type Period struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TimetableRecord is a timetable row as delivered by the ERP, after field
// names have been mapped but before the day and period are validated.
type TimetableRecord struct {
	Day         string `json:"day"`
	PeriodID    int64  `json:"period_id"`
	ClassID     int64  `json:"class_id"`
	ClassName   string `json:"class_name"`
	SubjectID   int64  `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	TeacherID   int64  `json:"teacher_id"`
}

// TimetableEntry is a scheduled class occurrence placed on the grid.
// ClassID and SubjectID are zero when the source row did not carry them.
type TimetableEntry struct {
	Day         Day    `json:"day"`
	PeriodID    int64  `json:"period_id"`
	ClassID     int64  `json:"class_id,omitempty"`
	ClassName   string `json:"class_name,omitempty"`
	SubjectID   int64  `json:"subject_id,omitempty"`
	SubjectName string `json:"subject_name,omitempty"`
	TeacherID   int64  `json:"teacher_id"`
}

// Grid maps day -> period id -> entries. Several entries may share a cell.
type Grid map[Day]map[int64][]TimetableEntry

// Cell returns the entries at (day, periodID); nil when the cell is unknown.
func (g Grid) Cell(day Day, periodID int64) []TimetableEntry {
	periods, ok := g[day]
	if !ok {
		return nil
	}
	return periods[periodID]
}

// Has reports whether (day, periodID) is a cell of the grid.
func (g Grid) Has(day Day, periodID int64) bool {
	periods, ok := g[day]
	if !ok {
		return false
	}
	_, ok = periods[periodID]
	return ok
}

// DropReason explains why a timetable record did not make it onto the grid.
type DropReason string

const (
	DropUnknownDay    DropReason = "unknown_day"
	DropUnknownPeriod DropReason = "unknown_period"
)

// DroppedRecord keeps a rejected timetable record for reporting.
type DroppedRecord struct {
	Record TimetableRecord `json:"record"`
	Reason DropReason      `json:"reason"`
}

// Holiday is a date on which no classes are counted and no substitutions made.
type Holiday struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// HolidaySet indexes holidays by ISO date.
type HolidaySet map[string]Holiday

// NewHolidaySet indexes the given holidays, skipping ones without a date.
func NewHolidaySet(holidays []Holiday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		if h.Date == "" {
			continue
		}
		set[h.Date] = h
	}
	return set
}

// On returns the holiday on date, if any.
func (s HolidaySet) On(date string) (Holiday, bool) {
	h, ok := s[date]
	return h, ok
}

// Workload counts scheduled classes for the displayed week.
type Workload struct {
	Rows    map[Day]int   `json:"rows"`
	Columns map[int64]int `json:"columns"`
	Overall int           `json:"overall"`
}
