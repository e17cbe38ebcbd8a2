package invoicing

import (
	"fmt"
	"time"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuantityScale is the number of fractional digits a quantity may carry
const QuantityScale int32 = 4

// LineItemInput is the caller-supplied part of a line item
type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   valueobject.Money
	Unit        string
	TaxRate     *valueobject.Rate // overrides the invoice rate when set
	OrderIndex  *int              // position in the input list when unset
}

// LineItem is one priced line of an invoice.
// LineTotal is quantity * unit price and never includes tax.
type LineItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   valueobject.Money
	Unit        string
	TaxRate     *valueobject.Rate
	LineTotal   valueobject.Money
	OrderIndex  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLineItem validates the input and computes the line total
func NewLineItem(in LineItemInput) (*LineItem, error) {
	if !in.Quantity.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidQuantity,
			fmt.Sprintf("Quantity must be greater than zero, got %s", in.Quantity.String()))
	}
	if in.UnitPrice.IsNegative() {
		return nil, shared.NewDomainError(CodeInvalidPrice,
			fmt.Sprintf("Unit price cannot be negative, got %s", in.UnitPrice.String()))
	}
	// the stored line must reproduce its own total after a reload
	if !in.Quantity.Equal(in.Quantity.Truncate(QuantityScale)) {
		return nil, shared.NewDomainError(CodeInvalidQuantity,
			fmt.Sprintf("Quantity %s has more than %d decimals", in.Quantity.String(), QuantityScale))
	}
	if !in.UnitPrice.FitsScale() {
		return nil, shared.NewDomainError(CodeInvalidPrice,
			fmt.Sprintf("Unit price %s has more than %d decimals", in.UnitPrice.Amount().String(), valueobject.MoneyScale))
	}

	now := time.Now()
	item := &LineItem{
		ID:          uuid.New(),
		Description: in.Description,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Unit:        in.Unit,
		TaxRate:     in.TaxRate,
		LineTotal:   in.UnitPrice.MulDecimal(in.Quantity).Round(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.OrderIndex != nil {
		item.OrderIndex = *in.OrderIndex
	}
	return item, nil
}

// EffectiveRate returns the line override, falling back to the invoice rate
func (i *LineItem) EffectiveRate(invoiceRate valueobject.Rate) valueobject.Rate {
	if i.TaxRate != nil {
		return *i.TaxRate
	}
	return invoiceRate
}

// Tax returns round_half_up(line_total * effective rate)
func (i *LineItem) Tax(invoiceRate valueobject.Rate) valueobject.Money {
	return i.EffectiveRate(invoiceRate).Apply(i.LineTotal)
}
