package project

import (
	"fmt"
	"time"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentStatus uses the portal's stored French labels
type PaymentStatus string

const (
	PaymentStatusPaid      PaymentStatus = "payé"
	PaymentStatusPartial   PaymentStatus = "partiel"
	PaymentStatusPending   PaymentStatus = "en_attente"
	PaymentStatusCancelled PaymentStatus = "annulé"
)

// IsValid checks if the status is known
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusPartial, PaymentStatusPending, PaymentStatusCancelled:
		return true
	}
	return false
}

// CountsAsReceived reports whether the amount contributes to payments_total.
// A partial payment contributes its recorded amount as-is.
func (s PaymentStatus) CountsAsReceived() bool {
	return s == PaymentStatusPaid || s == PaymentStatusPartial
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// Payment is money received from the client for a project
type Payment struct {
	shared.BaseAggregateRoot
	ProjectID uuid.UUID
	Amount    valueobject.Money
	Status    PaymentStatus
	Date      time.Time
	Reference string
}

// NewPayment records a payment
func NewPayment(projectID uuid.UUID, amount valueobject.Money, status PaymentStatus, date time.Time, reference string) (*Payment, error) {
	if projectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Project ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if status == "" {
		status = PaymentStatusPending
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown payment status %q", status))
	}
	if date.IsZero() {
		date = time.Now()
	}
	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProjectID:         projectID,
		Amount:            amount.Round(),
		Status:            status,
		Date:              date,
		Reference:         reference,
	}, nil
}

// ChangeStatus moves the payment to a new status. A cancelled payment stays cancelled.
func (p *Payment) ChangeStatus(status PaymentStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown payment status %q", status))
	}
	if p.Status == PaymentStatusCancelled && status != PaymentStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "A cancelled payment cannot be reopened")
	}
	if p.Status == status {
		return nil
	}
	from := p.Status
	p.Status = status
	p.Touch()
	p.AddDomainEvent(NewPaymentStatusChangedEvent(p, from))
	return nil
}
