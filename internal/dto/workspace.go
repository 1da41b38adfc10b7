package dto

import "github.com/noah-isme/sma-substitution-api/internal/models"

// SelectTeacherRequest switches the teacher whose timetable is shown.
type SelectTeacherRequest struct {
	TeacherID int64 `json:"teacher_id" validate:"required,gt=0"`
}

// SelectDateRequest switches the active substitution date.
type SelectDateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// SelectCellRequest selects a grid cell. Day accepts any form ParseDay does.
type SelectCellRequest struct {
	Day      string `json:"day" validate:"required"`
	PeriodID int64  `json:"period_id" validate:"required,gt=0"`
}

// AssignSubstituteRequest picks the substitute for a cell.
type AssignSubstituteRequest struct {
	TeacherID int64 `json:"teacher_id" validate:"required,gt=0"`
	Published *bool `json:"published,omitempty"`
}

// SubmissionLogQuery filters the submission log listing.
type SubmissionLogQuery struct {
	Date  string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=500"`
}

// WeekView describes the displayed Monday-to-Saturday week.
type WeekView struct {
	Monday string                `json:"monday"`
	Dates  map[models.Day]string `json:"dates"`
}

// SelectionView is the selected grid cell.
type SelectionView struct {
	Key      string     `json:"key"`
	Day      models.Day `json:"day"`
	PeriodID int64      `json:"period_id"`
	Date     string     `json:"date"`
}

// WorkspaceSnapshot is everything the console renders for one operator.
type WorkspaceSnapshot struct {
	TeacherID int64                  `json:"teacher_id,omitempty"`
	Teacher   *models.Teacher        `json:"teacher,omitempty"`
	Date      string                 `json:"date"`
	Day       models.Day             `json:"day,omitempty"`
	Week      WeekView               `json:"week"`
	Teachers  []models.Teacher       `json:"teachers"`
	Periods   []models.Period        `json:"periods"`
	Holidays  []models.Holiday       `json:"holidays"`
	Grid      models.Grid            `json:"grid"`
	Workload  models.Workload        `json:"workload"`
	Cells     []models.CellSnapshot  `json:"cells"`
	Selection *SelectionView         `json:"selection,omitempty"`
	Dropped   []models.DroppedRecord `json:"dropped_records"`
	Converged bool                   `json:"converged"`
}

// SubmitResponse reports a single-cell submission.
type SubmitResponse struct {
	Outcome   models.CellOutcome `json:"outcome"`
	Workspace *WorkspaceSnapshot `json:"workspace"`
}

// BulkSubmitResponse reports a submit-all pass.
type BulkSubmitResponse struct {
	Result    models.BulkSubmitResult `json:"result"`
	Workspace *WorkspaceSnapshot      `json:"workspace"`
}
