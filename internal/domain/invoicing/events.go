package invoicing

import (
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeInvoice  = "Invoice"
	AggregateTypeTemplate = "InvoiceTemplate"
)

// Event type constants
const (
	EventTypeInvoiceCreated         = "InvoiceCreated"
	EventTypeInvoiceItemsUpdated    = "InvoiceItemsUpdated"
	EventTypeInvoiceStatusChanged   = "InvoiceStatusChanged"
	EventTypeTemplateDefaultChanged = "InvoiceTemplateDefaultChanged"
)

// InvoiceCreatedEvent is raised once a draft has its number
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceType   Type            `json:"invoice_type"`
	ClientID      uuid.UUID       `json:"client_id"`
	ProjectID     *uuid.UUID      `json:"project_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		InvoiceType:     inv.Type,
		ClientID:        inv.ClientID,
		ProjectID:       inv.ProjectID,
		TotalAmount:     inv.TotalAmount.Amount(),
	}
}

// InvoiceItemsUpdatedEvent is raised when the item list of a draft is replaced
type InvoiceItemsUpdatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	ItemCount   int             `json:"item_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewInvoiceItemsUpdatedEvent creates a new InvoiceItemsUpdatedEvent
func NewInvoiceItemsUpdatedEvent(inv *Invoice) *InvoiceItemsUpdatedEvent {
	return &InvoiceItemsUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceItemsUpdated, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		ItemCount:       len(inv.Items),
		Subtotal:        inv.Subtotal.Amount(),
		TaxAmount:       inv.TaxAmount.Amount(),
		TotalAmount:     inv.TotalAmount.Amount(),
	}
}

// InvoiceStatusChangedEvent is raised on every successful transition
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	InvoiceNumber string     `json:"invoice_number"`
	ProjectID     *uuid.UUID `json:"project_id,omitempty"`
	From          Status     `json:"from"`
	To            Status     `json:"to"`
	Trigger       Event      `json:"trigger"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from Status, trigger Event) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ProjectID:       inv.ProjectID,
		From:            from,
		To:              inv.Status,
		Trigger:         trigger,
	}
}

// TemplateDefaultChangedEvent is raised when a template becomes its type's default
type TemplateDefaultChangedEvent struct {
	shared.BaseDomainEvent
	TemplateID  uuid.UUID `json:"template_id"`
	InvoiceType Type      `json:"invoice_type"`
}

// NewTemplateDefaultChangedEvent creates a new TemplateDefaultChangedEvent
func NewTemplateDefaultChangedEvent(t *Template) *TemplateDefaultChangedEvent {
	return &TemplateDefaultChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTemplateDefaultChanged, AggregateTypeTemplate, t.ID),
		TemplateID:      t.ID,
		InvoiceType:     t.Type,
	}
}
