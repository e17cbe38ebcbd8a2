package event

import (
	"context"
	"fmt"

	"github.com/chantier/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes every ledger event as one structured log line with
// its JSON payload. It subscribes to all events.
type AuditLogHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewAuditLogHandler creates an audit handler using a serializer with the
// ledger events registered.
func NewAuditLogHandler(serializer *EventSerializer, logger *zap.Logger) *AuditLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogHandler{serializer: serializer, logger: logger.Named("audit")}
}

// EventTypes returns nil: the audit log receives all events
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

// Handle logs the event
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	envelope, err := h.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	h.logger.Info("ledger event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("envelope", envelope),
	)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
