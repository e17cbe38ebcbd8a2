package invoicing

import (
	"errors"
	"testing"
	"time"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rate(s string) *valueobject.Rate {
	r := valueobject.MustRate(s)
	return &r
}

func item(qty, price string, override *valueobject.Rate) LineItemInput {
	return LineItemInput{
		Description: "Travaux",
		Quantity:    decimal.RequireFromString(qty),
		UnitPrice:   valueobject.MustMoney(price),
		TaxRate:     override,
	}
}

func newDraft(t *testing.T, items ...LineItemInput) *Invoice {
	t.Helper()
	inv, err := NewDraftInvoice(DraftParams{
		Type:     TypeQuote,
		ClientID: uuid.New(),
		TaxRate:  valueobject.MustRate("0.2"),
		Items:    items,
	})
	require.NoError(t, err)
	return inv
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected a domain error, got %v", err)
	assert.Equal(t, code, de.Code)
}

func TestNewLineItem(t *testing.T) {
	tests := []struct {
		name     string
		qty      string
		price    string
		wantCode string
		want     string
	}{
		{"simple", "2", "100.00", "", "200.00"},
		{"fractional quantity", "1.5", "33.33", "", "50.00"},
		{"rounds half up", "0.125", "3.00", "", "0.38"},
		{"four decimal quantity", "0.3333", "10.00", "", "3.33"},
		{"quantity finer than storage", "0.12345", "10", CodeInvalidQuantity, ""},
		{"price finer than storage", "3", "0.125", CodeInvalidPrice, ""},
		{"trailing zeros are fine", "1.50000", "2.500", "", "3.75"},
		{"free line", "1", "0", "", "0.00"},
		{"zero quantity", "0", "10", CodeInvalidQuantity, ""},
		{"negative quantity", "-1", "10", CodeInvalidQuantity, ""},
		{"negative price", "1", "-0.01", CodeInvalidPrice, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			li, err := NewLineItem(item(tt.qty, tt.price, nil))
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, li.LineTotal.String())
		})
	}
}

func TestLineItem_EffectiveRate(t *testing.T) {
	invoiceRate := valueobject.MustRate("0.2")

	li, err := NewLineItem(item("1", "10", nil))
	require.NoError(t, err)
	assert.True(t, li.EffectiveRate(invoiceRate).Equals(invoiceRate))

	li, err = NewLineItem(item("1", "10", rate("0.055")))
	require.NoError(t, err)
	assert.Equal(t, "0.0550", li.EffectiveRate(invoiceRate).String())
}

func TestComputeTotals(t *testing.T) {
	t.Run("empty invoice", func(t *testing.T) {
		_, err := ComputeTotals(nil, valueobject.MustRate("0.2"))
		assert.ErrorIs(t, err, ErrEmptyInvoice)
	})

	t.Run("per line rounding", func(t *testing.T) {
		// three lines of 0.03 at 20%: per-line tax 0.01 each, flat would give 0.02
		items, err := BuildLineItems([]LineItemInput{
			item("1", "0.03", nil), item("1", "0.03", nil), item("1", "0.03", nil),
		})
		require.NoError(t, err)
		totals, err := ComputeTotals(items, valueobject.MustRate("0.2"))
		require.NoError(t, err)
		assert.Equal(t, "0.09", totals.Subtotal.String())
		assert.Equal(t, "0.03", totals.TaxAmount.String())
		assert.Equal(t, "0.12", totals.TotalAmount.String())
	})

	t.Run("total equals subtotal plus tax", func(t *testing.T) {
		items, err := BuildLineItems([]LineItemInput{
			item("3", "19.99", nil),
			item("0.5", "7.77", rate("0.1")),
			item("12", "1.01", rate("0")),
			item("1", "1234.56", rate("0.055")),
		})
		require.NoError(t, err)
		totals, err := ComputeTotals(items, valueobject.MustRate("0.2"))
		require.NoError(t, err)
		assert.True(t, totals.TotalAmount.Equals(totals.Subtotal.Add(totals.TaxAmount)))
	})
}

func TestBuildLineItems_Order(t *testing.T) {
	two, zero := 2, 0
	a := item("1", "1", nil)
	a.Description = "a"
	a.OrderIndex = &two
	b := item("1", "1", nil)
	b.Description = "b"
	b.OrderIndex = &zero
	c := item("1", "1", nil)
	c.Description = "c"
	c.OrderIndex = &zero

	items, err := BuildLineItems([]LineItemInput{a, b, c})
	require.NoError(t, err)
	got := []string{items[0].Description, items[1].Description, items[2].Description}
	assert.Equal(t, []string{"b", "c", "a"}, got)
}

func TestInvoice_ScenarioAB(t *testing.T) {
	// A: one line 2 x 100.00 at the invoice rate of 20%
	inv := newDraft(t, item("2", "100.00", nil))
	assert.Equal(t, StatusDraft, inv.Status)
	assert.Equal(t, "200.00", inv.Subtotal.String())
	assert.Equal(t, "40.00", inv.TaxAmount.String())
	assert.Equal(t, "240.00", inv.TotalAmount.String())

	// B: add an untaxed line 1 x 50.00
	err := inv.ReplaceItems([]LineItemInput{
		item("2", "100.00", nil),
		item("1", "50.00", rate("0")),
	})
	require.NoError(t, err)
	assert.Equal(t, "250.00", inv.Subtotal.String())
	assert.Equal(t, "40.00", inv.TaxAmount.String())
	assert.Equal(t, "290.00", inv.TotalAmount.String())
	assert.Len(t, inv.Items, 2)
	for _, it := range inv.Items {
		assert.Equal(t, inv.ID, it.InvoiceID)
	}
}

func TestNewDraftInvoice_ValidatesBeforeNumbering(t *testing.T) {
	_, err := NewDraftInvoice(DraftParams{Type: TypeBill, ClientID: uuid.New(), TaxRate: valueobject.ZeroRate()})
	assert.ErrorIs(t, err, ErrEmptyInvoice)

	_, err = NewDraftInvoice(DraftParams{
		Type: TypeBill, ClientID: uuid.New(),
		Items: []LineItemInput{item("0", "10", nil)},
	})
	assertCode(t, err, CodeInvalidQuantity)

	_, err = NewDraftInvoice(DraftParams{Type: "credit", ClientID: uuid.New(), Items: []LineItemInput{item("1", "1", nil)}})
	assertCode(t, err, "INVALID_INPUT")
}

func TestInvoice_AssignNumber(t *testing.T) {
	inv := newDraft(t, item("1", "10", nil))
	assert.Empty(t, inv.GetDomainEvents())

	require.NoError(t, inv.AssignNumber("DEV-2026-00001"))
	assert.Equal(t, "DEV-2026-00001", inv.InvoiceNumber)
	require.Len(t, inv.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeInvoiceCreated, inv.GetDomainEvents()[0].EventType())

	assertCode(t, inv.AssignNumber("DEV-2026-00002"), "INVALID_STATE")
	assert.Equal(t, "DEV-2026-00001", inv.InvoiceNumber)
}

func TestInvoice_ScenarioC(t *testing.T) {
	inv := newDraft(t, item("1", "10", nil))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, inv.Apply(EventSend, t0))
	require.NoError(t, inv.Apply(EventValidate, t0.Add(time.Hour)))
	require.NoError(t, inv.Apply(EventRecordPayment, t0.Add(2*time.Hour)))

	assert.Equal(t, StatusPaid, inv.Status)
	require.NotNil(t, inv.SentAt)
	require.NotNil(t, inv.ValidatedAt)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, t0, *inv.SentAt)
	assert.Equal(t, t0.Add(time.Hour), *inv.ValidatedAt)
	assert.Equal(t, t0.Add(2*time.Hour), *inv.PaidAt)

	// terminal: nothing moves and timestamps stay put
	for _, e := range AllEvents {
		assertCode(t, inv.Apply(e, t0.Add(3*time.Hour)), CodeInvalidTransition)
	}
	assert.Equal(t, t0, *inv.SentAt)

	direct := newDraft(t, item("1", "10", nil))
	err := direct.Apply(EventRecordPayment, t0)
	assertCode(t, err, CodeInvalidTransition)
	assert.Contains(t, err.Error(), "draft --record_payment--> ?")
	assert.Nil(t, direct.PaidAt)
}

func TestInvoice_LockedOutsideDraft(t *testing.T) {
	inv := newDraft(t, item("1", "10", nil))
	require.NoError(t, inv.Apply(EventSend, time.Now()))

	err := inv.ReplaceItems([]LineItemInput{item("5", "10", nil)})
	assert.ErrorIs(t, err, ErrInvoiceLocked)
	assert.Equal(t, "10.00", inv.Subtotal.String())

	r := valueobject.MustRate("0.1")
	assert.ErrorIs(t, inv.UpdateDetails(DetailsUpdate{TaxRate: &r}), ErrInvoiceLocked)
}

func TestInvoice_UpdateDetailsRecomputes(t *testing.T) {
	inv := newDraft(t, item("1", "100", nil))
	r := valueobject.MustRate("0.1")
	notes := "Acompte 30%"

	require.NoError(t, inv.UpdateDetails(DetailsUpdate{TaxRate: &r, Notes: &notes}))
	assert.Equal(t, "10.00", inv.TaxAmount.String())
	assert.Equal(t, "110.00", inv.TotalAmount.String())
	assert.Equal(t, notes, inv.Notes)
}

func TestInvoice_Overdue(t *testing.T) {
	due := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	inv := newDraft(t, item("1", "10", nil))
	inv.DueDate = &due
	require.NoError(t, inv.Apply(EventSend, due.AddDate(0, 0, -10)))
	require.NoError(t, inv.Apply(EventValidate, due.AddDate(0, 0, -9)))

	before := due.AddDate(0, 0, -1)
	after := due.AddDate(0, 0, 1)

	assert.Equal(t, StatusValidated, inv.DisplayStatus(before))
	assert.Equal(t, StatusOverdue, inv.DisplayStatus(after))

	assertCode(t, inv.Apply(EventMarkOverdue, before), CodeInvalidTransition)
	assert.Equal(t, StatusValidated, inv.Status)

	require.NoError(t, inv.Apply(EventMarkOverdue, after))
	assert.Equal(t, StatusOverdue, inv.Status)

	assertCode(t, inv.Apply(EventRecordPayment, after), CodeInvalidTransition)
	require.NoError(t, inv.Apply(EventCancel, after))
	assert.Equal(t, StatusCancelled, inv.Status)
}

func TestInvoice_MarkOverdueWithoutDueDate(t *testing.T) {
	inv := newDraft(t, item("1", "10", nil))
	require.NoError(t, inv.Apply(EventSend, time.Now()))
	require.NoError(t, inv.Apply(EventValidate, time.Now()))
	assertCode(t, inv.Apply(EventMarkOverdue, time.Now().AddDate(1, 0, 0)), CodeInvalidTransition)
	assert.Equal(t, StatusValidated, inv.DisplayStatus(time.Now().AddDate(1, 0, 0)))
}

func TestInvoice_DueDayIsStillOnTime(t *testing.T) {
	cases := []struct {
		name string
		due  time.Time
	}{
		{"reloaded from a date column", time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)},
		{"set with a time of day", time.Date(2026, 4, 30, 15, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := newDraft(t, item("1", "10", nil))
			inv.DueDate = &tc.due
			inv.Status = StatusValidated

			dueDayMorning := time.Date(2026, 4, 30, 0, 0, 1, 0, time.UTC)
			dueDayEvening := time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC)
			nextDay := time.Date(2026, 5, 1, 0, 0, 1, 0, time.UTC)

			assert.Equal(t, StatusValidated, inv.DisplayStatus(dueDayMorning))
			assert.Equal(t, StatusValidated, inv.DisplayStatus(dueDayEvening))
			assertCode(t, inv.Apply(EventMarkOverdue, dueDayEvening), CodeInvalidTransition)

			assert.Equal(t, StatusOverdue, inv.DisplayStatus(nextDay))
			require.NoError(t, inv.Apply(EventMarkOverdue, nextDay))
		})
	}
}

func TestNewDraftInvoice_DatesAreCalendarDays(t *testing.T) {
	issue := time.Date(2026, 3, 2, 17, 45, 0, 0, time.UTC)
	due := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	inv, err := NewDraftInvoice(DraftParams{
		Type:      TypeBill,
		ClientID:  uuid.New(),
		TaxRate:   valueobject.MustRate("0.2"),
		Items:     []LineItemInput{item("1", "10", nil)},
		IssueDate: issue,
		DueDate:   &due,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), inv.IssueDate)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *inv.DueDate)

	sameDay := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, inv.UpdateDetails(DetailsUpdate{DueDate: &sameDay}))
	assert.Equal(t, inv.IssueDate, *inv.DueDate)
}
