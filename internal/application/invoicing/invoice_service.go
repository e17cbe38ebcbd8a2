package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceService handles invoice business operations
type InvoiceService struct {
	invoiceRepo    invoicing.InvoiceRepository
	templates      invoicing.TemplateReader
	numbering      *invoicing.NumberingService
	eventPublisher shared.EventPublisher
	metrics        LedgerMetrics
	paymentDays    int
	logger         *zap.Logger
	now            func() time.Time
}

// InvoiceServiceOption configures an InvoiceService
type InvoiceServiceOption func(*InvoiceService)

// WithEventPublisher sets the publisher for invoice domain events
func WithEventPublisher(p shared.EventPublisher) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.eventPublisher = p
	}
}

// WithMetrics sets the business metrics recorder
func WithMetrics(m LedgerMetrics) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDefaultPaymentDays sets the due date offset for bills created without one.
// Zero leaves the due date empty.
func WithDefaultPaymentDays(days int) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if days > 0 {
			s.paymentDays = days
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.now = now
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo invoicing.InvoiceRepository,
	templates invoicing.TemplateReader,
	sequence invoicing.NumberSequence,
	logger *zap.Logger,
	opts ...InvoiceServiceOption,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InvoiceService{
		invoiceRepo: invoiceRepo,
		templates:   templates,
		metrics:     noopMetrics{},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.numbering = invoicing.NewNumberingService(sequence, s.now)
	return s
}

// CreateDraft opens a numbered draft. Template binding, item validation and
// totals all run before a number is claimed.
func (s *InvoiceService) CreateDraft(ctx context.Context, req CreateInvoiceRequest) (_ *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create_draft",
		telemetry.SpanAttrInvoiceType, req.Type)
	defer telemetry.EndSpan(span, &err)

	invoiceType := invoicing.Type(req.Type)

	taxRate, err := toRate(req.TaxRate)
	if err != nil {
		return nil, err
	}
	items, err := toDomainItems(req.Items)
	if err != nil {
		return nil, err
	}

	tpl, err := invoicing.ResolveTemplate(ctx, s.templates, invoiceType, req.TemplateID)
	if err != nil {
		return nil, err
	}

	issueDate := s.now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}

	dueDate := req.DueDate
	if dueDate == nil && invoiceType == invoicing.TypeBill && s.paymentDays > 0 {
		d := issueDate.AddDate(0, 0, s.paymentDays)
		dueDate = &d
	}

	inv, err := invoicing.NewDraftInvoice(invoicing.DraftParams{
		Type:       invoiceType,
		ClientID:   req.ClientID,
		ProjectID:  req.ProjectID,
		TemplateID: &tpl.ID,
		TaxRate:    taxRate,
		Items:      items,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Notes:      req.Notes,
		Terms:      req.Terms,
		Reference:  req.Reference,
	})
	if err != nil {
		return nil, err
	}

	number, err := s.numbering.Next(ctx, invoiceType)
	if err != nil {
		if errors.Is(err, invoicing.ErrNumberingContention) {
			s.metrics.NumberingContention(ctx, req.Type)
			s.logger.Warn("invoice numbering contention", zap.String("type", req.Type))
		}
		return nil, err
	}
	if err := inv.AssignNumber(number); err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceNumber, number)

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		// the claimed number is burned; gaps are acceptable
		s.logger.Error("failed to save invoice draft",
			zap.String("invoice_number", number),
			zap.Error(err))
		return nil, err
	}

	s.metrics.InvoiceCreated(ctx, req.Type)
	s.logger.Info("invoice draft created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total_amount", inv.TotalAmount.String()))

	s.publish(ctx, inv)
	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// GetByID retrieves an invoice by ID
func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// List retrieves invoices with filtering and pagination
func (s *InvoiceService) List(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	invoices, total, err := s.invoiceRepo.FindAll(ctx, filter.toDomain())
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = ToInvoiceResponse(&invoices[i], now)
	}
	return out, total, nil
}

// UpdateItems replaces the items of a draft and rewrites its totals
func (s *InvoiceService) UpdateItems(ctx context.Context, id uuid.UUID, req UpdateInvoiceItemsRequest) (*InvoiceResponse, error) {
	items, err := toDomainItems(req.Items)
	if err != nil {
		return nil, err
	}

	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := inv.ReplaceItems(items); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice items updated",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int("items", len(inv.Items)),
		zap.String("total_amount", inv.TotalAmount.String()))

	s.publish(ctx, inv)
	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// UpdateDetails edits draft fields other than items
func (s *InvoiceService) UpdateDetails(ctx context.Context, id uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	update := invoicing.DetailsUpdate{
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		DueDate:   req.DueDate,
		Notes:     req.Notes,
		Terms:     req.Terms,
		Reference: req.Reference,
	}
	if req.TaxRate != nil {
		r, err := toRate(*req.TaxRate)
		if err != nil {
			return nil, err
		}
		update.TaxRate = &r
	}

	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := inv.UpdateDetails(update); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}

	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// Transition fires a status machine event. The write is conditional on the
// status and version that were read, so of two racing callers only one wins.
func (s *InvoiceService) Transition(ctx context.Context, id uuid.UUID, req TransitionRequest) (_ *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "transition",
		telemetry.SpanAttrInvoiceID, id.String(),
		telemetry.SpanAttrInvoiceEvent, req.Event)
	defer telemetry.EndSpan(span, &err)

	event := invoicing.Event(req.Event)
	if !event.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown invoice event")
	}

	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	expected := inv.Status
	expectedVersion := inv.Version
	if err := inv.Apply(event, s.now()); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.UpdateStatus(ctx, inv, expected, expectedVersion); err != nil {
		return nil, err
	}

	s.metrics.InvoiceTransitioned(ctx, event.String(), inv.Status.String())
	s.logger.Info("invoice status changed",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("event", event.String()),
		zap.String("from", expected.String()),
		zap.String("to", inv.Status.String()))

	s.publish(ctx, inv)
	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// overdueBatchSize bounds one pass of MarkOverdueInvoices
const overdueBatchSize = 100

// MarkOverdueInvoices applies mark_overdue to every validated invoice whose
// due date has passed. Each invoice goes through the same conditional write
// as Transition, so a concurrent payment wins over the sweep. It returns the
// number of invoices moved to overdue.
func (s *InvoiceService) MarkOverdueInvoices(ctx context.Context) (_ int, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "mark_overdue_sweep")
	defer telemetry.EndSpan(span, &err)

	now := s.now()
	today := invoicing.CalendarDay(now)
	marked := 0
	for {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		batch, _, err := s.invoiceRepo.FindAll(ctx, invoicing.InvoiceFilter{
			Filter:    shared.Filter{Page: 1, PageSize: overdueBatchSize, OrderBy: "due_date", OrderDir: "asc"},
			Status:    invoicing.StatusValidated,
			DueBefore: &today,
		})
		if err != nil {
			return marked, err
		}
		if len(batch) == 0 {
			return marked, nil
		}

		progressed := 0
		for i := range batch {
			inv := &batch[i]
			expectedVersion := inv.Version
			if err := inv.Apply(invoicing.EventMarkOverdue, now); err != nil {
				continue
			}
			if err := s.invoiceRepo.UpdateStatus(ctx, inv, invoicing.StatusValidated, expectedVersion); err != nil {
				s.logger.Warn("overdue sweep skipped invoice",
					zap.String("invoice_id", inv.ID.String()),
					zap.Error(err))
				continue
			}
			s.metrics.InvoiceTransitioned(ctx, invoicing.EventMarkOverdue.String(), inv.Status.String())
			s.publish(ctx, inv)
			progressed++
		}
		marked += progressed
		if progressed == 0 || len(batch) < overdueBatchSize {
			return marked, nil
		}
	}
}

// publish dispatches pending events after a successful write. Handler
// failures never undo the write.
func (s *InvoiceService) publish(ctx context.Context, agg shared.EventSource) {
	events := agg.PullDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish invoice events", zap.Error(err))
	}
}
