package project

import (
	"time"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Expense is money spent on a project. Every recorded expense counts toward
// the spent amount.
type Expense struct {
	shared.BaseEntity
	ProjectID   uuid.UUID
	Amount      valueobject.Money
	Date        time.Time
	Description string
}

// NewExpense records an expense
func NewExpense(projectID uuid.UUID, amount valueobject.Money, date time.Time, description string) (*Expense, error) {
	if projectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Project ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Expense amount must be positive")
	}
	if date.IsZero() {
		date = time.Now()
	}
	return &Expense{
		BaseEntity:  shared.NewBaseEntity(),
		ProjectID:   projectID,
		Amount:      amount.Round(),
		Date:        date,
		Description: description,
	}, nil
}
