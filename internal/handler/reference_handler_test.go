package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

type referenceReaderStub struct {
	teachers []models.Teacher
	err      error
}

func (s *referenceReaderStub) Teachers(ctx context.Context) ([]models.Teacher, error) {
	return s.teachers, s.err
}

func (s *referenceReaderStub) Periods(ctx context.Context) ([]models.Period, error) {
	return []models.Period{{ID: 1, Name: "Period 1"}}, s.err
}

func (s *referenceReaderStub) Holidays(ctx context.Context) ([]models.Holiday, error) {
	return []models.Holiday{}, s.err
}

func TestReferenceHandlerTeachers(t *testing.T) {
	handler := &ReferenceHandler{service: &referenceReaderStub{teachers: []models.Teacher{{UserID: 3, Name: "Ana"}}}}
	c, w := newWorkspaceTestContext(http.MethodGet, "/reference/teachers", nil)

	handler.Teachers(c)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	assert.EqualValues(t, 1, body["meta"].(map[string]interface{})["total"])
}

func TestReferenceHandlerUpstreamFailure(t *testing.T) {
	upstreamErr := appErrors.Wrap(errors.New("dial tcp: refused"), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load periods")
	handler := &ReferenceHandler{service: &referenceReaderStub{err: upstreamErr}}
	c, w := newWorkspaceTestContext(http.MethodGet, "/reference/periods", nil)

	handler.Periods(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "UPSTREAM_ERROR", body["error"].(map[string]interface{})["code"])
}
