package event

import (
	"errors"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared"
)

// ledgerEvents lists every event the ledger publishes
var ledgerEvents = map[string]shared.DomainEvent{
	invoicing.EventTypeInvoiceCreated:         &invoicing.InvoiceCreatedEvent{},
	invoicing.EventTypeInvoiceItemsUpdated:    &invoicing.InvoiceItemsUpdatedEvent{},
	invoicing.EventTypeInvoiceStatusChanged:   &invoicing.InvoiceStatusChangedEvent{},
	invoicing.EventTypeTemplateDefaultChanged: &invoicing.TemplateDefaultChangedEvent{},
	project.EventTypeExpenseRecorded:          &project.ExpenseRecordedEvent{},
	project.EventTypePaymentRecorded:          &project.PaymentRecordedEvent{},
	project.EventTypePaymentStatusChanged:     &project.PaymentStatusChangedEvent{},
}

// RegisterLedgerEvents registers every invoicing and project event type
// so the audit log can encode what it records.
func RegisterLedgerEvents(serializer *EventSerializer) error {
	var errs []error
	for name, instance := range ledgerEvents {
		errs = append(errs, serializer.Register(name, instance))
	}
	return errors.Join(errs...)
}
