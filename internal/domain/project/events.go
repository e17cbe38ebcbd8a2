package project

import (
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeExpense = "Expense"
	AggregateTypePayment = "Payment"
)

// Event type constants
const (
	EventTypeExpenseRecorded      = "ExpenseRecorded"
	EventTypePaymentRecorded      = "PaymentRecorded"
	EventTypePaymentStatusChanged = "PaymentStatusChanged"
)

// ProjectScoped is implemented by events that change a project's ledger
type ProjectScoped interface {
	shared.DomainEvent
	GetProjectID() uuid.UUID
}

// ExpenseRecordedEvent is raised when an expense is stored
type ExpenseRecordedEvent struct {
	shared.BaseDomainEvent
	ExpenseID uuid.UUID       `json:"expense_id"`
	ProjectID uuid.UUID       `json:"project_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewExpenseRecordedEvent creates a new ExpenseRecordedEvent
func NewExpenseRecordedEvent(e *Expense) *ExpenseRecordedEvent {
	return &ExpenseRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpenseRecorded, AggregateTypeExpense, e.ID),
		ExpenseID:       e.ID,
		ProjectID:       e.ProjectID,
		Amount:          e.Amount.Amount(),
	}
}

// GetProjectID returns the affected project
func (e *ExpenseRecordedEvent) GetProjectID() uuid.UUID { return e.ProjectID }

// PaymentRecordedEvent is raised when a payment is stored
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	ProjectID uuid.UUID       `json:"project_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		ProjectID:       p.ProjectID,
		Amount:          p.Amount.Amount(),
		Status:          p.Status,
	}
}

// GetProjectID returns the affected project
func (e *PaymentRecordedEvent) GetProjectID() uuid.UUID { return e.ProjectID }

// PaymentStatusChangedEvent is raised when a payment changes status
type PaymentStatusChangedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID     `json:"payment_id"`
	ProjectID uuid.UUID     `json:"project_id"`
	From      PaymentStatus `json:"from"`
	To        PaymentStatus `json:"to"`
}

// NewPaymentStatusChangedEvent creates a new PaymentStatusChangedEvent
func NewPaymentStatusChangedEvent(p *Payment, from PaymentStatus) *PaymentStatusChangedEvent {
	return &PaymentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentStatusChanged, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		ProjectID:       p.ProjectID,
		From:            from,
		To:              p.Status,
	}
}

// GetProjectID returns the affected project
func (e *PaymentStatusChangedEvent) GetProjectID() uuid.UUID { return e.ProjectID }
