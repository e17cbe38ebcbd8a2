package invoicing

import (
	"slices"

	"github.com/chantier/backend/internal/domain/shared/valueobject"
)

// Totals holds the derived amounts of an invoice
type Totals struct {
	Subtotal    valueobject.Money
	TaxAmount   valueobject.Money
	TotalAmount valueobject.Money
}

// ComputeTotals sums line totals and per-line taxes.
// Tax is rounded per line before summing so mixed rates do not distort the result.
func ComputeTotals(items []LineItem, invoiceRate valueobject.Rate) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrEmptyInvoice
	}

	subtotal := valueobject.Zero()
	tax := valueobject.Zero()
	for i := range items {
		subtotal = subtotal.Add(items[i].LineTotal)
		tax = tax.Add(items[i].Tax(invoiceRate))
	}

	return Totals{
		Subtotal:    subtotal,
		TaxAmount:   tax,
		TotalAmount: subtotal.Add(tax),
	}, nil
}

// BuildLineItems validates every input and returns the items in display order.
// Inputs without an explicit order index take their list position; equal
// indexes keep insertion order.
func BuildLineItems(inputs []LineItemInput) ([]LineItem, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInvoice
	}

	items := make([]LineItem, 0, len(inputs))
	for pos, in := range inputs {
		if in.OrderIndex == nil {
			idx := pos
			in.OrderIndex = &idx
		}
		item, err := NewLineItem(in)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	slices.SortStableFunc(items, func(a, b LineItem) int {
		return a.OrderIndex - b.OrderIndex
	})
	return items, nil
}
