package invoicing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Content types of generated documents
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// TemplateRenderer executes template content against document data.
// Empty content falls back to the built-in invoice layout.
type TemplateRenderer interface {
	RenderString(ctx context.Context, name, content string, data any) (string, error)
}

// PDFConverter turns a complete HTML page into a PDF
type PDFConverter interface {
	ConvertHTML(ctx context.Context, html string) ([]byte, error)
}

// DocumentStore keeps generated documents
type DocumentStore interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// DocumentData is what invoice templates see
type DocumentData struct {
	Number      string
	Type        string
	IssueDate   time.Time
	DueDate     *time.Time
	Status      string
	Currency    string
	ClientID    uuid.UUID
	ProjectID   *uuid.UUID
	Reference   string
	Notes       string
	Terms       string
	Items       []DocumentLine
	Subtotal    string
	TaxRate     string
	TaxAmount   string
	TotalAmount string
}

// DocumentLine is one rendered invoice line
type DocumentLine struct {
	Description string
	Quantity    string
	Unit        string
	UnitPrice   string
	TaxRate     string
	LineTotal   string
}

// DocumentService renders invoices with their bound template and stores the result
type DocumentService struct {
	invoiceRepo  invoicing.InvoiceRepository
	templates    invoicing.TemplateReader
	renderer     TemplateRenderer
	pdf          PDFConverter
	store        DocumentStore
	currency     string
	urlExpiresIn time.Duration
	logger       *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	invoiceRepo invoicing.InvoiceRepository,
	templates invoicing.TemplateReader,
	renderer TemplateRenderer,
	pdf PDFConverter,
	store DocumentStore,
	currency string,
	urlExpiresIn time.Duration,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "EUR"
	}
	return &DocumentService{
		invoiceRepo:  invoiceRepo,
		templates:    templates,
		renderer:     renderer,
		pdf:          pdf,
		store:        store,
		currency:     currency,
		urlExpiresIn: urlExpiresIn,
		logger:       logger,
	}
}

// Generate renders the invoice with its template's file type, stores the
// document and records its key on the invoice.
func (s *DocumentService) Generate(ctx context.Context, invoiceID uuid.UUID) (_ *DocumentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "generate",
		telemetry.SpanAttrInvoiceID, invoiceID.String())
	defer telemetry.EndSpan(span, &err)

	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	tpl, err := invoicing.ResolveTemplate(ctx, s.templates, inv.Type, inv.TemplateID)
	if err != nil {
		return nil, err
	}

	html, err := s.renderer.RenderString(ctx, tpl.ID.String(), tpl.Content, s.documentData(inv))
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice template: %w", err)
	}

	data := []byte(html)
	contentType := ContentTypeHTML
	ext := "html"
	if tpl.FileType == invoicing.FileTypePDF {
		if s.pdf == nil {
			return nil, shared.NewDomainError("INVALID_STATE", "PDF rendering is not configured")
		}
		data, err = s.pdf.ConvertHTML(ctx, html)
		if err != nil {
			return nil, fmt.Errorf("failed to render invoice PDF: %w", err)
		}
		contentType = ContentTypePDF
		ext = "pdf"
	}

	key := fmt.Sprintf("invoices/%s/%d/%s.%s", inv.Type, inv.IssueDate.Year(), inv.InvoiceNumber, ext)
	if err := s.store.Upload(ctx, key, data, contentType); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.UpdateDocumentURL(ctx, inv.ID, key); err != nil {
		return nil, err
	}
	inv.SetGeneratedDocumentURL(key)

	s.logger.Info("invoice document generated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("storage_key", key),
		zap.Int("size", len(data)))

	return s.presign(ctx, inv.ID, key, contentType)
}

// Get returns a fresh download link for the invoice's stored document
func (s *DocumentService) Get(ctx context.Context, invoiceID uuid.UUID) (*DocumentResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.GeneratedDocumentURL == "" {
		return nil, shared.NewDomainError("NOT_FOUND", "No document has been generated for this invoice")
	}
	contentType := ContentTypeHTML
	if strings.HasSuffix(inv.GeneratedDocumentURL, ".pdf") {
		contentType = ContentTypePDF
	}
	return s.presign(ctx, inv.ID, inv.GeneratedDocumentURL, contentType)
}

func (s *DocumentService) presign(ctx context.Context, invoiceID uuid.UUID, key, contentType string) (*DocumentResponse, error) {
	url, expiresAt, err := s.store.GenerateDownloadURL(ctx, key, s.urlExpiresIn)
	if err != nil {
		return nil, err
	}
	return &DocumentResponse{
		InvoiceID:   invoiceID,
		StorageKey:  key,
		ContentType: contentType,
		DownloadURL: url,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *DocumentService) documentData(inv *invoicing.Invoice) *DocumentData {
	lines := make([]DocumentLine, len(inv.Items))
	for i, it := range inv.Items {
		lines[i] = DocumentLine{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice.String(),
			TaxRate:     it.EffectiveRate(inv.TaxRate).String(),
			LineTotal:   it.LineTotal.String(),
		}
	}
	return &DocumentData{
		Number:      inv.InvoiceNumber,
		Type:        inv.Type.String(),
		IssueDate:   inv.IssueDate,
		DueDate:     inv.DueDate,
		Status:      inv.Status.String(),
		Currency:    s.currency,
		ClientID:    inv.ClientID,
		ProjectID:   inv.ProjectID,
		Reference:   inv.Reference,
		Notes:       inv.Notes,
		Terms:       inv.Terms,
		Items:       lines,
		Subtotal:    inv.Subtotal.String(),
		TaxRate:     inv.TaxRate.String(),
		TaxAmount:   inv.TaxAmount.String(),
		TotalAmount: inv.TotalAmount.String(),
	}
}
