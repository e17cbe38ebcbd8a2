package project

import (
	"context"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SnapshotInvalidationHandler evicts a project's cached snapshot whenever
// one of its expenses or payments changes.
type SnapshotInvalidationHandler struct {
	cache  SnapshotCache
	logger *zap.Logger
}

// NewSnapshotInvalidationHandler creates a new SnapshotInvalidationHandler
func NewSnapshotInvalidationHandler(cache SnapshotCache, logger *zap.Logger) *SnapshotInvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotInvalidationHandler{cache: cache, logger: logger}
}

// EventTypes returns the ledger write events
func (h *SnapshotInvalidationHandler) EventTypes() []string {
	return []string{
		project.EventTypeExpenseRecorded,
		project.EventTypePaymentRecorded,
		project.EventTypePaymentStatusChanged,
	}
}

// Handle evicts the affected project's snapshot
func (h *SnapshotInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	scoped, ok := event.(project.ProjectScoped)
	if !ok {
		return nil
	}
	if err := h.cache.Invalidate(ctx, scoped.GetProjectID()); err != nil {
		h.logger.Warn("failed to invalidate project snapshot",
			zap.String("project_id", scoped.GetProjectID().String()),
			zap.Error(err))
		return err
	}
	h.logger.Debug("project snapshot invalidated",
		zap.String("project_id", scoped.GetProjectID().String()),
		zap.String("event", event.EventType()))
	return nil
}
