package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/middleware"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

type workspaceManagerMock struct {
	session     models.Session
	refresh     bool
	teacherReq  dto.SelectTeacherRequest
	cellReq     dto.SelectCellRequest
	assignKey   string
	assignReq   dto.AssignSubstituteRequest
	removeKey   string
	notices     []string
	submitErr   error
	bulk        *dto.BulkSubmitResponse
	logs        []models.SubmissionLog
	logQuery    dto.SubmissionLogQuery
	availResult *models.AvailabilityResult
}

func (m *workspaceManagerMock) Open(ctx context.Context, session models.Session, refresh bool) (*dto.WorkspaceSnapshot, error) {
	m.session = session
	m.refresh = refresh
	return &dto.WorkspaceSnapshot{Date: "2024-06-03"}, nil
}

func (m *workspaceManagerMock) SelectTeacher(ctx context.Context, session models.Session, req dto.SelectTeacherRequest) (*dto.WorkspaceSnapshot, error) {
	m.teacherReq = req
	return &dto.WorkspaceSnapshot{TeacherID: req.TeacherID}, nil
}

func (m *workspaceManagerMock) SelectDate(ctx context.Context, session models.Session, req dto.SelectDateRequest) (*dto.WorkspaceSnapshot, error) {
	return &dto.WorkspaceSnapshot{Date: req.Date}, nil
}

func (m *workspaceManagerMock) SelectCell(ctx context.Context, session models.Session, req dto.SelectCellRequest) (*dto.WorkspaceSnapshot, error) {
	m.cellReq = req
	return nil, appErrors.Clone(appErrors.ErrHolidaySelected, "2024-06-05 is a holiday")
}

func (m *workspaceManagerMock) Availability(ctx context.Context, session models.Session) (*models.AvailabilityResult, error) {
	return m.availResult, nil
}

func (m *workspaceManagerMock) AssignSubstitute(ctx context.Context, session models.Session, key string, req dto.AssignSubstituteRequest) (*dto.WorkspaceSnapshot, error) {
	m.assignKey = key
	m.assignReq = req
	return &dto.WorkspaceSnapshot{}, nil
}

func (m *workspaceManagerMock) RemoveSubstitute(ctx context.Context, session models.Session, key string) (*dto.WorkspaceSnapshot, []string, error) {
	m.removeKey = key
	return &dto.WorkspaceSnapshot{}, m.notices, nil
}

func (m *workspaceManagerMock) SubmitSelected(ctx context.Context, session models.Session) (*dto.SubmitResponse, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &dto.SubmitResponse{}, nil
}

func (m *workspaceManagerMock) SubmitAll(ctx context.Context, session models.Session) (*dto.BulkSubmitResponse, error) {
	return m.bulk, nil
}

func (m *workspaceManagerMock) Submissions(ctx context.Context, session models.Session, query dto.SubmissionLogQuery) ([]models.SubmissionLog, error) {
	m.logQuery = query
	return m.logs, nil
}

func newWorkspaceTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWorkspaceHandlerGetPassesSessionAndRefresh(t *testing.T) {
	mockSvc := &workspaceManagerMock{}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodGet, "/workspace?refresh=true", nil)
	c.Set(middleware.ContextSessionKey, models.Session{Key: "user:7", Token: "tok"})

	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.refresh)
	assert.Equal(t, "user:7", mockSvc.session.Key)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "2024-06-03", body["data"].(map[string]interface{})["date"])
}

func TestWorkspaceHandlerSelectTeacherBindsPayload(t *testing.T) {
	mockSvc := &workspaceManagerMock{}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodPut, "/workspace/teacher", []byte(`{"teacher_id":12}`))

	handler.SelectTeacher(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(12), mockSvc.teacherReq.TeacherID)
}

func TestWorkspaceHandlerSelectTeacherRejectsMalformedJSON(t *testing.T) {
	handler := &WorkspaceHandler{service: &workspaceManagerMock{}}
	c, w := newWorkspaceTestContext(http.MethodPut, "/workspace/teacher", []byte(`{"teacher_id":`))

	handler.SelectTeacher(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkspaceHandlerSelectCellSurfacesHoliday(t *testing.T) {
	mockSvc := &workspaceManagerMock{}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodPost, "/workspace/selection", []byte(`{"day":"Wed","period_id":2}`))

	handler.SelectCell(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Wed", mockSvc.cellReq.Day)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "HOLIDAY_SELECTED", body["error"].(map[string]interface{})["code"])
}

func TestWorkspaceHandlerAssignUsesPathKey(t *testing.T) {
	mockSvc := &workspaceManagerMock{}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodPut, "/workspace/cells/monday_1", []byte(`{"teacher_id":9,"published":true}`))
	c.Params = gin.Params{{Key: "key", Value: "monday_1"}}

	handler.AssignSubstitute(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "monday_1", mockSvc.assignKey)
	assert.Equal(t, int64(9), mockSvc.assignReq.TeacherID)
	require.NotNil(t, mockSvc.assignReq.Published)
	assert.True(t, *mockSvc.assignReq.Published)
}

func TestWorkspaceHandlerRemoveReportsNotices(t *testing.T) {
	mockSvc := &workspaceManagerMock{notices: []string{"The substitution had already been removed."}}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodDelete, "/workspace/cells/monday_1", nil)
	c.Params = gin.Params{{Key: "key", Value: "monday_1"}}

	handler.RemoveSubstitute(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "monday_1", mockSvc.removeKey)
	body := decodeEnvelope(t, w)
	meta := body["meta"].(map[string]interface{})
	assert.Len(t, meta["notices"], 1)
}

func TestWorkspaceHandlerSubmitMapsValidationError(t *testing.T) {
	mockSvc := &workspaceManagerMock{submitErr: appErrors.Clone(appErrors.ErrInvalidSelection, "Invalid selection: no class is scheduled in this period")}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodPost, "/workspace/submit", nil)

	handler.Submit(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeEnvelope(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_SELECTION", errBody["code"])
	assert.Contains(t, errBody["message"], "Invalid selection")
}

func TestWorkspaceHandlerSubmitAllReportsCounts(t *testing.T) {
	mockSvc := &workspaceManagerMock{bulk: &dto.BulkSubmitResponse{
		Result: models.BulkSubmitResult{Date: "2024-06-03", Succeeded: 2, Failed: 1},
	}}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodPost, "/workspace/submit-all", nil)

	handler.SubmitAll(c)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	meta := body["meta"].(map[string]interface{})
	assert.EqualValues(t, 2, meta["succeeded"])
	assert.EqualValues(t, 1, meta["failed"])
}

func TestWorkspaceHandlerSubmissionsBindsQuery(t *testing.T) {
	mockSvc := &workspaceManagerMock{logs: []models.SubmissionLog{{ID: "log-1"}}}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodGet, "/workspace/submissions?date=2024-06-03&limit=20", nil)

	handler.Submissions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-06-03", mockSvc.logQuery.Date)
	assert.Equal(t, 20, mockSvc.logQuery.Limit)
}

func TestWorkspaceHandlerAvailabilityUnknownStatus(t *testing.T) {
	mockSvc := &workspaceManagerMock{availResult: &models.AvailabilityResult{
		Date:       "2024-06-03",
		Day:        models.Monday,
		PeriodID:   1,
		Status:     models.AvailabilityUnknown,
		Candidates: []models.AvailabilityCandidate{},
	}}
	handler := &WorkspaceHandler{service: mockSvc}
	c, w := newWorkspaceTestContext(http.MethodGet, "/workspace/availability", nil)

	handler.Availability(c)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "unknown", data["status"])
	assert.Empty(t, data["candidates"])
}
