package project

import (
	"testing"
	"time"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) valueobject.Money { return valueobject.MustMoney(s) }

func moneyPtr(s string) *valueobject.Money {
	m := valueobject.MustMoney(s)
	return &m
}

func TestComputeSnapshot_ScenarioD(t *testing.T) {
	id := uuid.New()
	snap := ComputeSnapshot(id, moneyPtr("10000"), LedgerTotals{
		Spent: money("3000"),
		PaymentsByStatus: map[PaymentStatus]valueobject.Money{
			PaymentStatusPartial: money("1200"),
		},
	})

	assert.Equal(t, id, snap.ProjectID)
	assert.Equal(t, "3000.00", snap.SpentAmount.String())
	assert.Equal(t, "1200.00", snap.PaymentsTotal.String())
	assert.Equal(t, "7000.00", snap.RemainingAdmin.String())
	assert.Equal(t, "8800.00", snap.RemainingClient.String())
	assert.True(t, snap.BudgetProgress.Equal(decimal.RequireFromString("0.3")))
}

func TestComputeSnapshot_PaymentStatusPolicy(t *testing.T) {
	snap := ComputeSnapshot(uuid.New(), moneyPtr("1000"), LedgerTotals{
		Spent: valueobject.Zero(),
		PaymentsByStatus: map[PaymentStatus]valueobject.Money{
			PaymentStatusPaid:      money("100"),
			PaymentStatusPartial:   money("50.50"),
			PaymentStatusPending:   money("400"),
			PaymentStatusCancelled: money("999"),
		},
	})
	assert.Equal(t, "150.50", snap.PaymentsTotal.String())
	assert.Equal(t, "849.50", snap.RemainingClient.String())
}

func TestComputeSnapshot_Budgets(t *testing.T) {
	tests := []struct {
		name         string
		budget       *valueobject.Money
		spent        string
		paid         string
		wantProgress string
		wantAdmin    string
		wantClient   string
	}{
		{"unset budget", nil, "500", "0", "0", "-500.00", "0.00"},
		{"zero budget", moneyPtr("0"), "500", "0", "0", "-500.00", "0.00"},
		{"rounded progress", moneyPtr("3"), "1", "0", "0.3333", "2.00", "3.00"},
		{"overspent", moneyPtr("100"), "150", "0", "1.5", "-50.00", "100.00"},
		{"overpaid client", moneyPtr("100"), "0", "130", "0", "100.00", "-30.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := ComputeSnapshot(uuid.New(), tt.budget, LedgerTotals{
				Spent:            money(tt.spent),
				PaymentsByStatus: map[PaymentStatus]valueobject.Money{PaymentStatusPaid: money(tt.paid)},
			})
			assert.True(t, snap.BudgetProgress.Equal(decimal.RequireFromString(tt.wantProgress)), snap.BudgetProgress.String())
			assert.Equal(t, tt.wantAdmin, snap.RemainingAdmin.String())
			assert.Equal(t, tt.wantClient, snap.RemainingClient.String())
		})
	}
}

func TestNewProject(t *testing.T) {
	_, err := NewProject("", uuid.New(), nil)
	assert.Error(t, err)

	_, err = NewProject("Villa", uuid.New(), moneyPtr("-1"))
	assert.Equal(t, "INVALID_AMOUNT", shared.CodeOf(err))

	p, err := NewProject(" Villa Les Pins ", uuid.New(), moneyPtr("250000"))
	require.NoError(t, err)
	assert.Equal(t, "Villa Les Pins", p.Name)
	assert.Equal(t, "250000.00", p.EstimatedBudget.String())
}

func TestNewExpense(t *testing.T) {
	_, err := NewExpense(uuid.New(), money("0"), time.Now(), "")
	assert.Equal(t, "INVALID_AMOUNT", shared.CodeOf(err))

	e, err := NewExpense(uuid.New(), money("12.345"), time.Time{}, "Ciment")
	require.NoError(t, err)
	assert.Equal(t, "12.35", e.Amount.String())
	assert.False(t, e.Date.IsZero())
}

func TestPayment_ChangeStatus(t *testing.T) {
	p, err := NewPayment(uuid.New(), money("1200"), "", time.Now(), "VIR-001")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, p.Status)

	require.NoError(t, p.ChangeStatus(PaymentStatusPartial))
	require.Len(t, p.GetDomainEvents(), 1)
	ev := p.GetDomainEvents()[0].(*PaymentStatusChangedEvent)
	assert.Equal(t, PaymentStatusPending, ev.From)
	assert.Equal(t, PaymentStatusPartial, ev.To)
	assert.Equal(t, p.ProjectID, ev.GetProjectID())

	// same status is a no-op
	require.NoError(t, p.ChangeStatus(PaymentStatusPartial))
	assert.Len(t, p.GetDomainEvents(), 1)

	assert.Equal(t, "INVALID_INPUT", shared.CodeOf(p.ChangeStatus("refunded")))

	require.NoError(t, p.ChangeStatus(PaymentStatusCancelled))
	assert.Equal(t, "INVALID_STATE", shared.CodeOf(p.ChangeStatus(PaymentStatusPaid)))
}

func TestNewPayment_InvalidStatus(t *testing.T) {
	_, err := NewPayment(uuid.New(), money("10"), "paid", time.Now(), "")
	assert.Equal(t, "INVALID_INPUT", shared.CodeOf(err))
}
