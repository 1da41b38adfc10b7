package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

type workspaceManager interface {
	Open(ctx context.Context, session models.Session, refresh bool) (*dto.WorkspaceSnapshot, error)
	SelectTeacher(ctx context.Context, session models.Session, req dto.SelectTeacherRequest) (*dto.WorkspaceSnapshot, error)
	SelectDate(ctx context.Context, session models.Session, req dto.SelectDateRequest) (*dto.WorkspaceSnapshot, error)
	SelectCell(ctx context.Context, session models.Session, req dto.SelectCellRequest) (*dto.WorkspaceSnapshot, error)
	Availability(ctx context.Context, session models.Session) (*models.AvailabilityResult, error)
	AssignSubstitute(ctx context.Context, session models.Session, key string, req dto.AssignSubstituteRequest) (*dto.WorkspaceSnapshot, error)
	RemoveSubstitute(ctx context.Context, session models.Session, key string) (*dto.WorkspaceSnapshot, []string, error)
	SubmitSelected(ctx context.Context, session models.Session) (*dto.SubmitResponse, error)
	SubmitAll(ctx context.Context, session models.Session) (*dto.BulkSubmitResponse, error)
	Submissions(ctx context.Context, session models.Session, query dto.SubmissionLogQuery) ([]models.SubmissionLog, error)
}

// WorkspaceHandler exposes the substitution console of the calling operator.
type WorkspaceHandler struct {
	service workspaceManager
}

// NewWorkspaceHandler constructs the handler.
func NewWorkspaceHandler(svc *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{service: svc}
}

// Get godoc
// @Summary Open the substitution workspace
// @Description Restores the last teacher and date on first use. refresh=true reloads everything from the ERP and drops unsubmitted edits.
// @Tags Workspace
// @Produce json
// @Param refresh query bool false "Reload from the ERP"
// @Success 200 {object} response.Envelope
// @Router /workspace [get]
func (h *WorkspaceHandler) Get(c *gin.Context) {
	snapshot, err := h.service.Open(c.Request.Context(), sessionFromContext(c), queryBool(c, "refresh"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// SelectTeacher godoc
// @Summary Select the teacher to cover
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.SelectTeacherRequest true "Teacher selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workspace/teacher [put]
func (h *WorkspaceHandler) SelectTeacher(c *gin.Context) {
	var req dto.SelectTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	snapshot, err := h.service.SelectTeacher(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// SelectDate godoc
// @Summary Select the substitution date
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.SelectDateRequest true "Date selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /workspace/date [put]
func (h *WorkspaceHandler) SelectDate(c *gin.Context) {
	var req dto.SelectDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid date payload"))
		return
	}
	snapshot, err := h.service.SelectDate(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// SelectCell godoc
// @Summary Select a grid cell
// @Description Moves the active date to the selected weekday within the displayed week.
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.SelectCellRequest true "Cell selection"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /workspace/selection [post]
func (h *WorkspaceHandler) SelectCell(c *gin.Context) {
	var req dto.SelectCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return
	}
	snapshot, err := h.service.SelectCell(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// Availability godoc
// @Summary Rank free teachers for the selected cell
// @Description status=unknown means availability could not be determined, not that nobody is free.
// @Tags Workspace
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /workspace/availability [get]
func (h *WorkspaceHandler) Availability(c *gin.Context) {
	result, err := h.service.Availability(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// AssignSubstitute godoc
// @Summary Pick the substitute for a cell
// @Tags Workspace
// @Accept json
// @Produce json
// @Param key path string true "Cell key, e.g. monday_1"
// @Param payload body dto.AssignSubstituteRequest true "Substitute"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /workspace/cells/{key} [put]
func (h *WorkspaceHandler) AssignSubstitute(c *gin.Context) {
	var req dto.AssignSubstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitute payload"))
		return
	}
	snapshot, err := h.service.AssignSubstitute(c.Request.Context(), sessionFromContext(c), c.Param("key"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// RemoveSubstitute godoc
// @Summary Remove the substitute of a cell
// @Description Persisted substitutions are deleted in the ERP immediately. A substitution the ERP no longer knows is reported in meta.notices.
// @Tags Workspace
// @Produce json
// @Param key path string true "Cell key, e.g. monday_1"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /workspace/cells/{key} [delete]
func (h *WorkspaceHandler) RemoveSubstitute(c *gin.Context) {
	snapshot, notices, err := h.service.RemoveSubstitute(c.Request.Context(), sessionFromContext(c), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot, response.WithNotices(notices))
}

// Submit godoc
// @Summary Submit the selected cell
// @Tags Workspace
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /workspace/submit [post]
func (h *WorkspaceHandler) Submit(c *gin.Context) {
	result, err := h.service.SubmitSelected(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// SubmitAll godoc
// @Summary Submit every pending change for the active date
// @Description Each cell is written independently; per-cell outcomes are returned even when some fail.
// @Tags Workspace
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspace/submit-all [post]
func (h *WorkspaceHandler) SubmitAll(c *gin.Context) {
	result, err := h.service.SubmitAll(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"succeeded": result.Result.Succeeded,
		"failed":    result.Result.Failed,
	}
	response.OK(c, result, meta)
}

// Submissions godoc
// @Summary List logged substitution writes
// @Tags Workspace
// @Produce json
// @Param date query string false "ISO date, defaults to the active date"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /workspace/submissions [get]
func (h *WorkspaceHandler) Submissions(c *gin.Context) {
	var query dto.SubmissionLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	logs, err := h.service.Submissions(c.Request.Context(), sessionFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, logs, map[string]interface{}{"total": len(logs)})
}
