package invoicing

import (
	"context"
	"time"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	Type      Type
	Status    Status
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
	// DueBefore keeps invoices whose due date is strictly earlier
	DueBefore *time.Time
}

// InvoiceRepository persists invoices and their items
type InvoiceRepository interface {
	// FindByID loads the invoice with its items ordered by order_index
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// Create inserts a numbered draft with its items in one transaction
	Create(ctx context.Context, inv *Invoice) error

	// SaveWithLock writes details, items and totals in one transaction guarded
	// by the loaded version. A stale version yields CONCURRENCY_CONFLICT.
	// On success inv.Version is incremented.
	SaveWithLock(ctx context.Context, inv *Invoice) error

	// UpdateStatus persists a transition only if the row still has the
	// expected status and version. Zero affected rows yields INVALID_TRANSITION.
	// On success inv.Version is incremented.
	UpdateStatus(ctx context.Context, inv *Invoice, expected Status, expectedVersion int) error

	// UpdateDocumentURL sets generated_document_url without touching the version
	UpdateDocumentURL(ctx context.Context, id uuid.UUID, url string) error
}

// TemplateFilter narrows template listings
type TemplateFilter struct {
	shared.Filter
	Type       Type
	ActiveOnly bool
}

// TemplateRepository persists invoice templates
type TemplateRepository interface {
	TemplateReader
	FindAll(ctx context.Context, filter TemplateFilter) ([]Template, int64, error)

	// Save inserts or updates a template. When t.IsDefault is set the other
	// defaults of the same type are cleared in the same transaction.
	Save(ctx context.Context, t *Template) error

	// SetDefault locks the target row, validates it through MarkDefault,
	// clears the previous default of its type and sets the target, atomically.
	SetDefault(ctx context.Context, id uuid.UUID) (*Template, error)
}
