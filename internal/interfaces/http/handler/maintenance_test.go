package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chantier/backend/internal/infrastructure/scheduler"
	"github.com/chantier/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	err      error
	status   scheduler.SweeperStatus
	triggers int
}

func (f *fakeSweeper) TriggerManualRun(context.Context) error {
	f.triggers++
	return f.err
}

func (f *fakeSweeper) Status() scheduler.SweeperStatus { return f.status }

func serveMaintenance(t *testing.T, h *MaintenanceHandler, method string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	r := gin.New()
	r.GET("/maintenance/overdue-sweep", h.OverdueSweepStatus)
	r.POST("/maintenance/overdue-sweep", h.TriggerOverdueSweep)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, "/maintenance/overdue-sweep", nil))

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestMaintenanceHandler_OverdueSweep(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		sw := &fakeSweeper{status: scheduler.SweeperStatus{Enabled: true, IsRunning: true, CronHour: 2, LastMarked: 5}}
		w, resp := serveMaintenance(t, NewMaintenanceHandler(sw), http.MethodGet)

		assert.Equal(t, http.StatusOK, w.Code)
		var body scheduler.SweeperStatus
		data(t, resp, &body)
		assert.Equal(t, 5, body.LastMarked)
		assert.True(t, body.IsRunning)
	})

	t.Run("trigger accepted", func(t *testing.T) {
		sw := &fakeSweeper{status: scheduler.SweeperStatus{Enabled: true, IsRunning: true}}
		w, _ := serveMaintenance(t, NewMaintenanceHandler(sw), http.MethodPost)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, sw.triggers)
	})

	t.Run("run already in progress", func(t *testing.T) {
		sw := &fakeSweeper{err: scheduler.ErrRunInProgress}
		w, resp := serveMaintenance(t, NewMaintenanceHandler(sw), http.MethodPost)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeConflict, errCode(resp))
	})

	t.Run("sweeper disabled", func(t *testing.T) {
		sw := &fakeSweeper{err: scheduler.ErrSchedulerNotRunning}
		w, resp := serveMaintenance(t, NewMaintenanceHandler(sw), http.MethodPost)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, dto.ErrCodeServiceUnavailable, errCode(resp))
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("not configured", func(t *testing.T) {
		w, _ := serveMaintenance(t, NewMaintenanceHandler(nil), http.MethodGet)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
