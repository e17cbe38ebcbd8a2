package invoicing

import (
	"fmt"

	"github.com/chantier/backend/internal/domain/shared"
)

// Ledger error codes
const (
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidPrice        = "INVALID_PRICE"
	CodeEmptyInvoice        = "EMPTY_INVOICE"
	CodeInvoiceLocked       = "INVOICE_LOCKED"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeTemplateMismatch    = "TEMPLATE_MISMATCH"
	CodeNoDefaultTemplate   = "NO_DEFAULT_TEMPLATE"
	CodeNumberingContention = "NUMBERING_CONTENTION"
	CodeDefaultTemplateBusy = "DEFAULT_TEMPLATE_LOCKED"
)

// Sentinels for errors.Is matching. Detailed errors carry the same code.
var (
	ErrInvalidQuantity     = shared.NewDomainError(CodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidPrice        = shared.NewDomainError(CodeInvalidPrice, "Unit price cannot be negative")
	ErrEmptyInvoice        = shared.NewDomainError(CodeEmptyInvoice, "An invoice needs at least one line item")
	ErrInvoiceLocked       = shared.NewDomainError(CodeInvoiceLocked, "Invoice can only be edited in draft")
	ErrInvalidTransition   = shared.NewDomainError(CodeInvalidTransition, "Invalid invoice status transition")
	ErrTemplateMismatch    = shared.NewDomainError(CodeTemplateMismatch, "Template does not match the invoice")
	ErrNoDefaultTemplate   = shared.NewDomainError(CodeNoDefaultTemplate, "No default template for invoice type")
	ErrNumberingContention = shared.NewDomainError(CodeNumberingContention, "Invoice number could not be claimed, retry")
	ErrDefaultTemplateBusy = shared.NewDomainError(CodeDefaultTemplateBusy, "The default template cannot be deactivated")
)

func newTransitionError(from Status, event Event) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("Invalid transition %s --%s--> ?", from, event))
}

func newLockedError(status Status) *shared.DomainError {
	return shared.NewDomainError(CodeInvoiceLocked,
		fmt.Sprintf("Invoice is %s and can no longer be edited", status))
}
