package invoicing

import (
	"fmt"
	"time"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Type distinguishes quotes (devis) from bills (factures)
type Type string

const (
	TypeQuote Type = "quote"
	TypeBill  Type = "bill"
)

// IsValid checks if the type is known
func (t Type) IsValid() bool {
	return t == TypeQuote || t == TypeBill
}

// String returns the string representation of Type
func (t Type) String() string {
	return string(t)
}

// DraftParams carries everything needed to open a draft
type DraftParams struct {
	Type       Type
	ClientID   uuid.UUID
	ProjectID  *uuid.UUID
	TemplateID *uuid.UUID
	TaxRate    valueobject.Rate
	Items      []LineItemInput
	IssueDate  time.Time
	DueDate    *time.Time
	Notes      string
	Terms      string
	Reference  string
}

// Invoice is the ledger aggregate root.
// Subtotal, TaxAmount and TotalAmount are only written by recalculate.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber        string
	Type                 Type
	ClientID             uuid.UUID
	ProjectID            *uuid.UUID
	TemplateID           *uuid.UUID
	IssueDate            time.Time
	DueDate              *time.Time
	Status               Status
	Subtotal             valueobject.Money
	TaxRate              valueobject.Rate
	TaxAmount            valueobject.Money
	TotalAmount          valueobject.Money
	Notes                string
	Terms                string
	Reference            string
	GeneratedDocumentURL string
	SentAt               *time.Time
	ValidatedAt          *time.Time
	PaidAt               *time.Time
	Items                []LineItem
}

// NewDraftInvoice validates the draft and computes its totals.
// The invoice has no number until AssignNumber is called, so a failing
// validation never consumes a sequence value.
func NewDraftInvoice(p DraftParams) (*Invoice, error) {
	if !p.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown invoice type %q", p.Type))
	}
	if p.ClientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Client ID cannot be empty")
	}
	issueDate := p.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	issueDate = CalendarDay(issueDate)
	dueDate := calendarDayPtr(p.DueDate)
	if dueDate != nil && dueDate.Before(issueDate) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Due date cannot be before issue date")
	}

	items, err := BuildLineItems(p.Items)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              p.Type,
		ClientID:          p.ClientID,
		ProjectID:         p.ProjectID,
		TemplateID:        p.TemplateID,
		IssueDate:         issueDate,
		DueDate:           dueDate,
		Status:            StatusDraft,
		TaxRate:           p.TaxRate,
		Notes:             p.Notes,
		Terms:             p.Terms,
		Reference:         p.Reference,
	}
	inv.attachItems(items)
	if err := inv.recalculate(); err != nil {
		return nil, err
	}
	return inv, nil
}

// AssignNumber sets the immutable invoice number and records creation
func (inv *Invoice) AssignNumber(number string) error {
	if number == "" {
		return shared.NewDomainError("INVALID_INPUT", "Invoice number cannot be empty")
	}
	if inv.InvoiceNumber != "" {
		return shared.NewDomainError("INVALID_STATE", "Invoice number is already assigned")
	}
	inv.InvoiceNumber = number
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return nil
}

// ReplaceItems swaps the full item list and recomputes totals. Draft only.
func (inv *Invoice) ReplaceItems(inputs []LineItemInput) error {
	if err := inv.ensureEditable(); err != nil {
		return err
	}
	items, err := BuildLineItems(inputs)
	if err != nil {
		return err
	}
	inv.attachItems(items)
	if err := inv.recalculate(); err != nil {
		return err
	}
	inv.Touch()
	inv.AddDomainEvent(NewInvoiceItemsUpdatedEvent(inv))
	return nil
}

// DetailsUpdate lists editable draft fields. Nil means unchanged.
type DetailsUpdate struct {
	TaxRate   *valueobject.Rate
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
	DueDate   *time.Time
	Notes     *string
	Terms     *string
	Reference *string
}

// UpdateDetails edits financial and descriptive fields. Draft only.
func (inv *Invoice) UpdateDetails(u DetailsUpdate) error {
	if err := inv.ensureEditable(); err != nil {
		return err
	}
	if u.ClientID != nil {
		if *u.ClientID == uuid.Nil {
			return shared.NewDomainError("INVALID_INPUT", "Client ID cannot be empty")
		}
		inv.ClientID = *u.ClientID
	}
	if u.ProjectID != nil {
		inv.ProjectID = u.ProjectID
	}
	if u.DueDate != nil {
		due := calendarDayPtr(u.DueDate)
		if due.Before(CalendarDay(inv.IssueDate)) {
			return shared.NewDomainError("INVALID_INPUT", "Due date cannot be before issue date")
		}
		inv.DueDate = due
	}
	if u.Notes != nil {
		inv.Notes = *u.Notes
	}
	if u.Terms != nil {
		inv.Terms = *u.Terms
	}
	if u.Reference != nil {
		inv.Reference = *u.Reference
	}
	if u.TaxRate != nil {
		inv.TaxRate = *u.TaxRate
		if err := inv.recalculate(); err != nil {
			return err
		}
	}
	inv.Touch()
	return nil
}

// Apply runs one status machine step at the given time
func (inv *Invoice) Apply(event Event, now time.Time) error {
	from := inv.Status
	to, err := NextStatus(from, event)
	if err != nil {
		return err
	}

	switch event {
	case EventSend:
		inv.SentAt = &now
	case EventValidate:
		inv.ValidatedAt = &now
	case EventRecordPayment:
		inv.PaidAt = &now
	case EventMarkOverdue:
		if !inv.pastDue(now) {
			return shared.NewDomainError(CodeInvalidTransition,
				fmt.Sprintf("Invalid transition %s --%s--> %s: invoice is not past its due date", from, event, to))
		}
	}

	inv.Status = to
	inv.UpdatedAt = now
	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, event))
	return nil
}

// DisplayStatus reports overdue for a validated invoice past its due date
// without requiring the mark_overdue event to have been persisted.
func (inv *Invoice) DisplayStatus(now time.Time) Status {
	if inv.Status == StatusValidated && inv.pastDue(now) {
		return StatusOverdue
	}
	return inv.Status
}

// IsEditable reports whether financial fields may change
func (inv *Invoice) IsEditable() bool {
	return inv.Status == StatusDraft
}

// SetGeneratedDocumentURL records where the rendered document lives
func (inv *Invoice) SetGeneratedDocumentURL(url string) {
	inv.GeneratedDocumentURL = url
	inv.Touch()
}

// Totals returns the derived amounts
func (inv *Invoice) Totals() Totals {
	return Totals{Subtotal: inv.Subtotal, TaxAmount: inv.TaxAmount, TotalAmount: inv.TotalAmount}
}

// pastDue is true from the day after the due date; the due day itself
// is still on time
func (inv *Invoice) pastDue(now time.Time) bool {
	return inv.DueDate != nil && CalendarDay(now).After(CalendarDay(*inv.DueDate))
}

// CalendarDay keeps the calendar date of t as midnight UTC. Issue and due
// dates are whole days, stored in DATE columns.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func calendarDayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := CalendarDay(*t)
	return &d
}

func (inv *Invoice) ensureEditable() error {
	if !inv.IsEditable() {
		return newLockedError(inv.Status)
	}
	return nil
}

func (inv *Invoice) attachItems(items []LineItem) {
	for i := range items {
		items[i].InvoiceID = inv.ID
	}
	inv.Items = items
}

func (inv *Invoice) recalculate() error {
	totals, err := ComputeTotals(inv.Items, inv.TaxRate)
	if err != nil {
		return err
	}
	inv.Subtotal = totals.Subtotal
	inv.TaxAmount = totals.TaxAmount
	inv.TotalAmount = totals.TotalAmount
	return nil
}
