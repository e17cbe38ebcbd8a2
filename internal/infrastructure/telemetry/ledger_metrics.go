package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys for ledger counters
var (
	AttrInvoiceType = attribute.Key("invoice_type")
	AttrEvent       = attribute.Key("event")
	AttrStatus      = attribute.Key("status")
)

// LedgerMetrics counts invoice lifecycle activity. It satisfies the
// invoicing service metrics port.
type LedgerMetrics struct {
	created     metric.Int64Counter
	transitions metric.Int64Counter
	contention  metric.Int64Counter
}

// NewLedgerMetrics registers the ledger counters on the meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	created, err := meter.Int64Counter("ledger.invoices.created",
		metric.WithDescription("Invoices created as drafts"),
		metric.WithUnit("{invoice}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoices created counter: %w", err)
	}
	transitions, err := meter.Int64Counter("ledger.invoices.transitions",
		metric.WithDescription("Applied invoice status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transitions counter: %w", err)
	}
	contention, err := meter.Int64Counter("ledger.numbering.contention",
		metric.WithDescription("Number allocations that timed out waiting on the sequence lock"),
		metric.WithUnit("{allocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create numbering contention counter: %w", err)
	}
	return &LedgerMetrics{
		created:     created,
		transitions: transitions,
		contention:  contention,
	}, nil
}

// InvoiceCreated counts a new draft
func (m *LedgerMetrics) InvoiceCreated(ctx context.Context, invoiceType string) {
	m.created.Add(ctx, 1, metric.WithAttributes(AttrInvoiceType.String(invoiceType)))
}

// InvoiceTransitioned counts an applied lifecycle event
func (m *LedgerMetrics) InvoiceTransitioned(ctx context.Context, event, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		AttrEvent.String(event),
		AttrStatus.String(to),
	))
}

// NumberingContention counts a timed-out number allocation
func (m *LedgerMetrics) NumberingContention(ctx context.Context, invoiceType string) {
	m.contention.Add(ctx, 1, metric.WithAttributes(AttrInvoiceType.String(invoiceType)))
}
