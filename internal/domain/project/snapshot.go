package project

import (
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProgressScale is the precision of budget_progress
const ProgressScale int32 = 4

// LedgerTotals are the raw sums a repository aggregates for one project
type LedgerTotals struct {
	Spent            valueobject.Money
	PaymentsByStatus map[PaymentStatus]valueobject.Money
}

// FinancialSnapshot is the derived financial position of a project.
// RemainingAdmin and RemainingClient are distinct views and may be negative.
type FinancialSnapshot struct {
	ProjectID       uuid.UUID          `json:"project_id"`
	EstimatedBudget *valueobject.Money `json:"estimated_budget"`
	SpentAmount     valueobject.Money  `json:"spent_amount"`
	PaymentsTotal   valueobject.Money  `json:"payments_total"`
	RemainingAdmin  valueobject.Money  `json:"remaining_admin"`
	RemainingClient valueobject.Money  `json:"remaining_client"`
	BudgetProgress  decimal.Decimal    `json:"budget_progress"`
}

// ComputeSnapshot derives the snapshot. An unset budget counts as zero.
func ComputeSnapshot(projectID uuid.UUID, budget *valueobject.Money, totals LedgerTotals) FinancialSnapshot {
	payments := valueobject.Zero()
	for status, amount := range totals.PaymentsByStatus {
		if status.CountsAsReceived() {
			payments = payments.Add(amount)
		}
	}

	b := valueobject.Zero()
	if budget != nil {
		b = *budget
	}

	progress := decimal.Zero
	if !b.IsZero() {
		progress = totals.Spent.Amount().DivRound(b.Amount(), ProgressScale)
	}

	return FinancialSnapshot{
		ProjectID:       projectID,
		EstimatedBudget: budget,
		SpentAmount:     totals.Spent,
		PaymentsTotal:   payments,
		RemainingAdmin:  b.Sub(totals.Spent),
		RemainingClient: b.Sub(payments),
		BudgetProgress:  progress,
	}
}
