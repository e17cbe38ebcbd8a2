package project

import (
	"context"

	"github.com/google/uuid"
)

// ProjectRepository persists projects
type ProjectRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Project, error)
	Save(ctx context.Context, p *Project) error
}

// ExpenseRepository persists expenses
type ExpenseRepository interface {
	Create(ctx context.Context, e *Expense) error
	// CreateBatch inserts all expenses in one transaction or none of them
	CreateBatch(ctx context.Context, expenses []*Expense) error
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Create(ctx context.Context, p *Payment) error
	// SaveWithLock updates the status guarded by the loaded version
	SaveWithLock(ctx context.Context, p *Payment) error
}

// LedgerReader aggregates a project's expenses and payments with SUM queries
type LedgerReader interface {
	Totals(ctx context.Context, projectID uuid.UUID) (LedgerTotals, error)
}
