package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

type referenceReader interface {
	Teachers(ctx context.Context) ([]models.Teacher, error)
	Periods(ctx context.Context) ([]models.Period, error)
	Holidays(ctx context.Context) ([]models.Holiday, error)
}

// ReferenceHandler exposes the teacher, period and holiday lists.
type ReferenceHandler struct {
	service referenceReader
}

// NewReferenceHandler constructs the handler.
func NewReferenceHandler(svc *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{service: svc}
}

// Teachers godoc
// @Summary List teachers
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reference/teachers [get]
func (h *ReferenceHandler) Teachers(c *gin.Context) {
	teachers, err := h.service.Teachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, teachers, map[string]interface{}{"total": len(teachers)})
}

// Periods godoc
// @Summary List daily periods
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reference/periods [get]
func (h *ReferenceHandler) Periods(c *gin.Context) {
	periods, err := h.service.Periods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, periods, map[string]interface{}{"total": len(periods)})
}

// Holidays godoc
// @Summary List holidays
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reference/holidays [get]
func (h *ReferenceHandler) Holidays(c *gin.Context) {
	holidays, err := h.service.Holidays(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, holidays, map[string]interface{}{"total": len(holidays)})
}
