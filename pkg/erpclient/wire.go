package erpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// flexInt accepts JSON numbers, numeric strings and null.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// Non-numeric identifiers are treated as absent.
			*f = 0
			return nil
		}
		*f = flexInt(math.Trunc(n))
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flexInt: %w", err)
	}
	*f = flexInt(math.Trunc(n))
	return nil
}

// flexString accepts JSON strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(string(data))
	return nil
}

// flexBool accepts booleans, 0/1 and "true"/"false".
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(strings.ToLower(string(bytes.TrimSpace(data))), `"`) {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// flexRef is either a bare id or a nested {"id": ..., "name": ...} object.
type flexRef struct {
	ID   flexInt
	Name flexString
}

func (r *flexRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID       flexInt    `json:"id"`
			UserID   flexInt    `json:"userId"`
			Name     flexString `json:"name"`
			FullName flexString `json:"fullName"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		r.ID = firstInt(obj.ID, obj.UserID)
		r.Name = firstString(obj.Name, obj.FullName)
		return nil
	}
	return r.ID.UnmarshalJSON(data)
}

func firstInt(values ...flexInt) flexInt {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstString(values ...flexString) flexString {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type rawTeacher struct {
	UserID          flexInt    `json:"userId"`
	UserIDSnake     flexInt    `json:"user_id"`
	ID              flexInt    `json:"id"`
	User            *flexRef   `json:"user"`
	EmployeeID      flexString `json:"employeeId"`
	EmployeeIDSnake flexString `json:"employee_id"`
	Name            flexString `json:"name"`
	FullName        flexString `json:"fullName"`
	FullNameSnake   flexString `json:"full_name"`
	FirstName       flexString `json:"firstName"`
	FirstNameSnake  flexString `json:"first_name"`
	LastName        flexString `json:"lastName"`
	LastNameSnake   flexString `json:"last_name"`
}

func (r rawTeacher) toModel() (models.Teacher, bool) {
	var nested flexRef
	if r.User != nil {
		nested = *r.User
	}
	id := firstInt(r.UserID, r.UserIDSnake, nested.ID, r.ID)
	if id <= 0 {
		return models.Teacher{}, false
	}
	name := firstString(r.Name, r.FullName, r.FullNameSnake, nested.Name)
	if name == "" {
		parts := []string{string(firstString(r.FirstName, r.FirstNameSnake)), string(firstString(r.LastName, r.LastNameSnake))}
		name = flexString(strings.TrimSpace(strings.Join(parts, " ")))
	}
	return models.Teacher{
		UserID:     int64(id),
		EmployeeID: string(firstString(r.EmployeeID, r.EmployeeIDSnake)),
		Name:       string(name),
	}, true
}

func adaptTeachers(raw []rawTeacher) []models.Teacher {
	teachers := make([]models.Teacher, 0, len(raw))
	for _, r := range raw {
		if t, ok := r.toModel(); ok {
			teachers = append(teachers, t)
		}
	}
	return teachers
}

type rawPeriod struct {
	ID            flexInt    `json:"id"`
	PeriodID      flexInt    `json:"periodId"`
	PeriodIDSnake flexInt    `json:"period_id"`
	Name          flexString `json:"name"`
	PeriodName    flexString `json:"periodName"`
	Label         flexString `json:"label"`
}

func adaptPeriods(raw []rawPeriod) []models.Period {
	periods := make([]models.Period, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for _, r := range raw {
		id := int64(firstInt(r.ID, r.PeriodID, r.PeriodIDSnake))
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		name := string(firstString(r.Name, r.PeriodName, r.Label))
		if name == "" {
			name = fmt.Sprintf("Period %d", id)
		}
		periods = append(periods, models.Period{ID: id, Name: name})
	}
	return periods
}

type rawHoliday struct {
	Date             flexString `json:"date"`
	HolidayDate      flexString `json:"holidayDate"`
	HolidayDateSnake flexString `json:"holiday_date"`
	Description      flexString `json:"description"`
	Name             flexString `json:"name"`
	Title            flexString `json:"title"`
}

func adaptHolidays(raw []rawHoliday) []models.Holiday {
	holidays := make([]models.Holiday, 0, len(raw))
	for _, r := range raw {
		date, err := models.ParseDate(string(firstString(r.Date, r.HolidayDate, r.HolidayDateSnake)))
		if err != nil {
			continue
		}
		holidays = append(holidays, models.Holiday{
			Date:        models.FormatDate(date),
			Description: string(firstString(r.Description, r.Name, r.Title)),
		})
	}
	return holidays
}

type rawTimetableEntry struct {
	Day              flexString `json:"day"`
	DayOfWeek        flexString `json:"dayOfWeek"`
	DayOfWeekSnake   flexString `json:"day_of_week"`
	PeriodID         flexInt    `json:"periodId"`
	PeriodIDSnake    flexInt    `json:"period_id"`
	Period           flexRef    `json:"period"`
	ClassID          flexInt    `json:"classId"`
	ClassIDSnake     flexInt    `json:"class_id"`
	Class            flexRef    `json:"class"`
	ClassName        flexString `json:"className"`
	ClassNameSnake   flexString `json:"class_name"`
	SubjectID        flexInt    `json:"subjectId"`
	SubjectIDSnake   flexInt    `json:"subject_id"`
	Subject          flexRef    `json:"subject"`
	SubjectName      flexString `json:"subjectName"`
	SubjectNameSnake flexString `json:"subject_name"`
	TeacherID        flexInt    `json:"teacherId"`
	TeacherIDSnake   flexInt    `json:"teacher_id"`
	Teacher          flexRef    `json:"teacher"`
}

// adaptTimetable maps field names only. Day and period validity are decided
// by the grid builder, which reports what it drops.
func adaptTimetable(raw []rawTimetableEntry, teacherID int64) []models.TimetableRecord {
	records := make([]models.TimetableRecord, 0, len(raw))
	for _, r := range raw {
		owner := int64(firstInt(r.TeacherID, r.TeacherIDSnake, r.Teacher.ID))
		if owner == 0 {
			owner = teacherID
		}
		records = append(records, models.TimetableRecord{
			Day:         string(firstString(r.Day, r.DayOfWeek, r.DayOfWeekSnake)),
			PeriodID:    int64(firstInt(r.PeriodID, r.PeriodIDSnake, r.Period.ID)),
			ClassID:     int64(firstInt(r.ClassID, r.ClassIDSnake, r.Class.ID)),
			ClassName:   string(firstString(r.ClassName, r.ClassNameSnake, r.Class.Name)),
			SubjectID:   int64(firstInt(r.SubjectID, r.SubjectIDSnake, r.Subject.ID)),
			SubjectName: string(firstString(r.SubjectName, r.SubjectNameSnake, r.Subject.Name)),
			TeacherID:   owner,
		})
	}
	return records
}

type rawSubstitution struct {
	ID                     flexInt    `json:"id"`
	Date                   flexString `json:"date"`
	Day                    flexString `json:"day"`
	PeriodID               flexInt    `json:"periodId"`
	PeriodIDSnake          flexInt    `json:"period_id"`
	Period                 flexRef    `json:"period"`
	ClassID                flexInt    `json:"classId"`
	ClassIDSnake           flexInt    `json:"class_id"`
	Class                  flexRef    `json:"class"`
	SubjectID              flexInt    `json:"subjectId"`
	SubjectIDSnake         flexInt    `json:"subject_id"`
	Subject                flexRef    `json:"subject"`
	OriginalTeacherID      flexInt    `json:"original_teacherId"`
	OriginalTeacherIDCamel flexInt    `json:"originalTeacherId"`
	OriginalTeacherIDSnake flexInt    `json:"original_teacher_id"`
	OriginalTeacher        flexRef    `json:"originalTeacher"`
	TeacherID              flexInt    `json:"teacherId"`
	TeacherIDSnake         flexInt    `json:"teacher_id"`
	Teacher                flexRef    `json:"teacher"`
	TeacherName            flexString `json:"teacherName"`
	TeacherNameSnake       flexString `json:"teacher_name"`
	Published              flexBool   `json:"published"`
	IsPublished            flexBool   `json:"is_published"`
}

// toModel returns false when the record cannot be placed on a cell.
func (r rawSubstitution) toModel(fallbackDate string) (models.SubstitutionAssignment, bool) {
	date := string(r.Date)
	if date == "" {
		date = fallbackDate
	}
	parsed, err := models.ParseDate(date)
	if err != nil {
		return models.SubstitutionAssignment{}, false
	}
	day, ok := models.ParseDay(string(r.Day))
	if !ok {
		day, ok = models.DayOf(parsed)
	}
	periodID := int64(firstInt(r.PeriodID, r.PeriodIDSnake, r.Period.ID))
	if !ok || periodID <= 0 {
		return models.SubstitutionAssignment{}, false
	}
	return models.SubstitutionAssignment{
		ID:                int64(r.ID),
		Date:              models.FormatDate(parsed),
		Day:               day,
		PeriodID:          periodID,
		ClassID:           int64(firstInt(r.ClassID, r.ClassIDSnake, r.Class.ID)),
		SubjectID:         int64(firstInt(r.SubjectID, r.SubjectIDSnake, r.Subject.ID)),
		OriginalTeacherID: int64(firstInt(r.OriginalTeacherID, r.OriginalTeacherIDCamel, r.OriginalTeacherIDSnake, r.OriginalTeacher.ID)),
		TeacherID:         int64(firstInt(r.TeacherID, r.TeacherIDSnake, r.Teacher.ID)),
		TeacherName:       string(firstString(r.TeacherName, r.TeacherNameSnake, r.Teacher.Name)),
		Published:         bool(r.Published || r.IsPublished),
	}, true
}

// merge overlays the ERP's answer on the assignment that was sent, so that
// sparse responses (often just {"id": 12}) still yield a complete record.
func (r rawSubstitution) merge(sent models.SubstitutionAssignment) models.SubstitutionAssignment {
	merged := sent
	if parsed, ok := r.toModel(sent.Date); ok {
		if parsed.Key() == sent.Key() {
			merged = parsed
		}
	}
	if r.ID != 0 {
		merged.ID = int64(r.ID)
	}
	if merged.ClassID == 0 {
		merged.ClassID = sent.ClassID
	}
	if merged.SubjectID == 0 {
		merged.SubjectID = sent.SubjectID
	}
	if merged.OriginalTeacherID == 0 {
		merged.OriginalTeacherID = sent.OriginalTeacherID
	}
	if merged.TeacherID == 0 {
		merged.TeacherID = sent.TeacherID
	}
	if merged.TeacherName == "" {
		merged.TeacherName = sent.TeacherName
	}
	return merged
}

func adaptSubstitutions(raw []rawSubstitution, date string) []models.SubstitutionAssignment {
	out := make([]models.SubstitutionAssignment, 0, len(raw))
	for _, r := range raw {
		if a, ok := r.toModel(date); ok {
			out = append(out, a)
		}
	}
	return out
}

type rawWorkload struct {
	Weekly      flexInt            `json:"weeklyWorkload"`
	WeeklySnake flexInt            `json:"weekly_workload"`
	Total       flexInt            `json:"total"`
	Daily       map[string]flexInt `json:"dailyWorkload"`
	DailySnake  map[string]flexInt `json:"daily_workload"`
}

func (r rawWorkload) toModel(teacherID int64) models.TeacherWorkload {
	daily := r.Daily
	if len(daily) == 0 {
		daily = r.DailySnake
	}
	w := models.TeacherWorkload{
		TeacherID: teacherID,
		Weekly:    int(firstInt(r.Weekly, r.WeeklySnake, r.Total)),
		Daily:     make(map[models.Day]int, len(models.Days)),
	}
	for key, count := range daily {
		if day, ok := models.ParseDay(key); ok {
			w.Daily[day] += int(count)
		}
	}
	return w
}

// upsertPayload is the create-or-update body the ERP expects.
type upsertPayload struct {
	ID                int64  `json:"id,omitempty"`
	Date              string `json:"date"`
	Day               string `json:"day"`
	PeriodID          int64  `json:"periodId"`
	ClassID           int64  `json:"classId"`
	SubjectID         int64  `json:"subjectId"`
	OriginalTeacherID int64  `json:"original_teacherId"`
	TeacherID         int64  `json:"teacherId"`
	Published         bool   `json:"published"`
}

func newUpsertPayload(a models.SubstitutionAssignment) upsertPayload {
	return upsertPayload{
		ID:                a.ID,
		Date:              a.Date,
		Day:               a.Day.Title(),
		PeriodID:          a.PeriodID,
		ClassID:           a.ClassID,
		SubjectID:         a.SubjectID,
		OriginalTeacherID: a.OriginalTeacherID,
		TeacherID:         a.TeacherID,
		Published:         a.Published,
	}
}
