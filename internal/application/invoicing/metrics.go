package invoicing

import "context"

// LedgerMetrics records business counters for the invoice ledger
type LedgerMetrics interface {
	InvoiceCreated(ctx context.Context, invoiceType string)
	InvoiceTransitioned(ctx context.Context, event, to string)
	NumberingContention(ctx context.Context, invoiceType string)
}

type noopMetrics struct{}

func (noopMetrics) InvoiceCreated(context.Context, string)              {}
func (noopMetrics) InvoiceTransitioned(context.Context, string, string) {}
func (noopMetrics) NumberingContention(context.Context, string)         {}
