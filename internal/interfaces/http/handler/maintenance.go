package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/chantier/backend/internal/infrastructure/scheduler"
	"github.com/chantier/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// OverdueSweepRunner is the part of the overdue sweeper exposed over HTTP
type OverdueSweepRunner interface {
	TriggerManualRun(ctx context.Context) error
	Status() scheduler.SweeperStatus
}

// MaintenanceHandler exposes operational endpoints for administrators
type MaintenanceHandler struct {
	BaseHandler
	sweeper OverdueSweepRunner
}

// NewMaintenanceHandler creates a new MaintenanceHandler. sweeper may be nil.
func NewMaintenanceHandler(sweeper OverdueSweepRunner) *MaintenanceHandler {
	return &MaintenanceHandler{sweeper: sweeper}
}

// OverdueSweepStatus godoc
// @Summary      Overdue sweep status
// @Description  Report the schedule and the last and next run of the overdue sweep. Admin only.
// @Tags         maintenance
// @Produce      json
// @Success      200 {object} dto.Response{data=scheduler.SweeperStatus}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /maintenance/overdue-sweep [get]
func (h *MaintenanceHandler) OverdueSweepStatus(c *gin.Context) {
	if h.sweeper == nil {
		h.ErrorWithCode(c, dto.ErrCodeServiceUnavailable, "Overdue sweep is not configured")
		return
	}
	h.Success(c, h.sweeper.Status())
}

// TriggerOverdueSweep godoc
// @Summary      Run overdue sweep
// @Description  Start a mark_overdue pass now; it runs in the background. Admin only.
// @Tags         maintenance
// @Produce      json
// @Success      202 {object} dto.Response{data=scheduler.SweeperStatus}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /maintenance/overdue-sweep [post]
func (h *MaintenanceHandler) TriggerOverdueSweep(c *gin.Context) {
	if h.sweeper == nil {
		h.ErrorWithCode(c, dto.ErrCodeServiceUnavailable, "Overdue sweep is not configured")
		return
	}
	err := h.sweeper.TriggerManualRun(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		h.ErrorWithCode(c, dto.ErrCodeConflict, "An overdue sweep is already running")
		return
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.ErrorWithCode(c, dto.ErrCodeServiceUnavailable, "Overdue sweep is disabled")
		return
	case err != nil:
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(h.sweeper.Status()))
}
