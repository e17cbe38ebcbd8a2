package invoicing

import (
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Invoice DTOs ====================

// LineItemInput represents one line in a create or update request.
// TaxRate is a fraction (0.2 for 20%) and overrides the invoice rate when set.
type LineItemInput struct {
	Description string           `json:"description" binding:"max=1000" example:"Pose carrelage salle de bain"`
	Quantity    decimal.Decimal  `json:"quantity" example:"12.5"`
	UnitPrice   decimal.Decimal  `json:"unit_price" example:"45.00"`
	Unit        string           `json:"unit" binding:"max=20" example:"m2"`
	TaxRate     *decimal.Decimal `json:"tax_rate" example:"0.1"`
	OrderIndex  *int             `json:"order_index"`
}

// CreateInvoiceRequest represents a request to open an invoice draft
type CreateInvoiceRequest struct {
	Type       string          `json:"type" binding:"required,oneof=quote bill" example:"quote"`
	ClientID   uuid.UUID       `json:"client_id" binding:"required"`
	ProjectID  *uuid.UUID      `json:"project_id"`
	TemplateID *uuid.UUID      `json:"template_id"`
	TaxRate    decimal.Decimal `json:"tax_rate" example:"0.2"`
	IssueDate  *time.Time      `json:"issue_date"`
	DueDate    *time.Time      `json:"due_date"`
	Notes      string          `json:"notes" binding:"max=4000"`
	Terms      string          `json:"terms" binding:"max=4000"`
	Reference  string          `json:"reference" binding:"max=100"`
	Items      []LineItemInput `json:"items" binding:"dive"`
}

// UpdateInvoiceItemsRequest replaces the full item list of a draft
type UpdateInvoiceItemsRequest struct {
	Items []LineItemInput `json:"items" binding:"dive"`
}

// UpdateInvoiceRequest edits draft fields. Omitted fields are unchanged.
type UpdateInvoiceRequest struct {
	TaxRate   *decimal.Decimal `json:"tax_rate"`
	ClientID  *uuid.UUID       `json:"client_id"`
	ProjectID *uuid.UUID       `json:"project_id"`
	DueDate   *time.Time       `json:"due_date"`
	Notes     *string          `json:"notes" binding:"omitempty,max=4000"`
	Terms     *string          `json:"terms" binding:"omitempty,max=4000"`
	Reference *string          `json:"reference" binding:"omitempty,max=100"`
}

// TransitionRequest fires a status machine event
type TransitionRequest struct {
	Event string `json:"event" binding:"required,oneof=send validate reject record_payment mark_overdue cancel" example:"send"`
}

// InvoiceListFilter represents filter options for invoice listings
type InvoiceListFilter struct {
	Type      string     `form:"type" binding:"omitempty,oneof=quote bill"`
	Status    string     `form:"status" binding:"omitempty,oneof=draft sent validated paid overdue rejected cancelled"`
	ClientID  *uuid.UUID `form:"client_id"`
	ProjectID *uuid.UUID `form:"project_id"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by" binding:"omitempty,oneof=created_at issue_date due_date invoice_number total_amount"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search    string     `form:"search" binding:"omitempty,max=100"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	ID          uuid.UUID         `json:"id"`
	Description string            `json:"description"`
	Quantity    decimal.Decimal   `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
	Unit        string            `json:"unit,omitempty"`
	TaxRate     *valueobject.Rate `json:"tax_rate,omitempty"`
	LineTotal   valueobject.Money `json:"line_total"`
	OrderIndex  int               `json:"order_index"`
}

// InvoiceResponse represents an invoice in API responses.
// DisplayStatus reports overdue for validated invoices past their due date.
type InvoiceResponse struct {
	ID                   uuid.UUID          `json:"id"`
	InvoiceNumber        string             `json:"invoice_number"`
	Type                 string             `json:"type"`
	ClientID             uuid.UUID          `json:"client_id"`
	ProjectID            *uuid.UUID         `json:"project_id,omitempty"`
	TemplateID           *uuid.UUID         `json:"template_id,omitempty"`
	IssueDate            time.Time          `json:"issue_date"`
	DueDate              *time.Time         `json:"due_date,omitempty"`
	Status               string             `json:"status"`
	DisplayStatus        string             `json:"display_status"`
	AllowedEvents        []string           `json:"allowed_events"`
	Subtotal             valueobject.Money  `json:"subtotal"`
	TaxRate              valueobject.Rate   `json:"tax_rate"`
	TaxAmount            valueobject.Money  `json:"tax_amount"`
	TotalAmount          valueobject.Money  `json:"total_amount"`
	Notes                string             `json:"notes,omitempty"`
	Terms                string             `json:"terms,omitempty"`
	Reference            string             `json:"reference,omitempty"`
	GeneratedDocumentURL string             `json:"generated_document_url,omitempty"`
	SentAt               *time.Time         `json:"sent_at,omitempty"`
	ValidatedAt          *time.Time         `json:"validated_at,omitempty"`
	PaidAt               *time.Time         `json:"paid_at,omitempty"`
	Items                []LineItemResponse `json:"items"`
	Version              int                `json:"version"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// ToInvoiceResponse converts the aggregate to its API shape at the given time
func ToInvoiceResponse(inv *invoicing.Invoice, now time.Time) InvoiceResponse {
	items := make([]LineItemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = LineItemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Unit:        it.Unit,
			TaxRate:     it.TaxRate,
			LineTotal:   it.LineTotal,
			OrderIndex:  it.OrderIndex,
		}
	}

	allowed := invoicing.AllowedEvents(inv.Status)
	events := make([]string, len(allowed))
	for i, e := range allowed {
		events[i] = e.String()
	}

	return InvoiceResponse{
		ID:                   inv.ID,
		InvoiceNumber:        inv.InvoiceNumber,
		Type:                 inv.Type.String(),
		ClientID:             inv.ClientID,
		ProjectID:            inv.ProjectID,
		TemplateID:           inv.TemplateID,
		IssueDate:            inv.IssueDate,
		DueDate:              inv.DueDate,
		Status:               inv.Status.String(),
		DisplayStatus:        inv.DisplayStatus(now).String(),
		AllowedEvents:        events,
		Subtotal:             inv.Subtotal,
		TaxRate:              inv.TaxRate,
		TaxAmount:            inv.TaxAmount,
		TotalAmount:          inv.TotalAmount,
		Notes:                inv.Notes,
		Terms:                inv.Terms,
		Reference:            inv.Reference,
		GeneratedDocumentURL: inv.GeneratedDocumentURL,
		SentAt:               inv.SentAt,
		ValidatedAt:          inv.ValidatedAt,
		PaidAt:               inv.PaidAt,
		Items:                items,
		Version:              inv.Version,
		CreatedAt:            inv.CreatedAt,
		UpdatedAt:            inv.UpdatedAt,
	}
}

// ==================== Template DTOs ====================

// CreateTemplateRequest represents a request to create an invoice template
type CreateTemplateRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=200" example:"Devis standard"`
	Type      string `json:"type" binding:"required,oneof=quote bill" example:"quote"`
	FileType  string `json:"file_type" binding:"required,oneof=pdf html" example:"pdf"`
	Content   string `json:"content"`
	IsDefault bool   `json:"is_default"`
}

// UpdateTemplateRequest represents a request to update an invoice template
type UpdateTemplateRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=200"`
	Type      string `json:"type" binding:"required,oneof=quote bill"`
	FileType  string `json:"file_type" binding:"required,oneof=pdf html"`
	Content   string `json:"content"`
	IsDefault *bool  `json:"is_default"`
	IsActive  *bool  `json:"is_active"`
}

// TemplateListFilter represents filter options for template listings
type TemplateListFilter struct {
	Type       string `form:"type" binding:"omitempty,oneof=quote bill"`
	ActiveOnly bool   `form:"active_only"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// TemplateResponse represents an invoice template in API responses
type TemplateResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	FileType  string    `json:"file_type"`
	Content   string    `json:"content,omitempty"`
	IsDefault bool      `json:"is_default"`
	IsActive  bool      `json:"is_active"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToTemplateResponse converts a template to its API shape
func ToTemplateResponse(t *invoicing.Template) TemplateResponse {
	return TemplateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Type:      t.Type.String(),
		FileType:  string(t.FileType),
		Content:   t.Content,
		IsDefault: t.IsDefault,
		IsActive:  t.IsActive,
		Version:   t.Version,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// ==================== Document DTOs ====================

// DocumentResponse describes a generated invoice document
type DocumentResponse struct {
	InvoiceID   uuid.UUID `json:"invoice_id"`
	StorageKey  string    `json:"storage_key"`
	ContentType string    `json:"content_type"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ==================== Conversions ====================

func toDomainItems(in []LineItemInput) ([]invoicing.LineItemInput, error) {
	items := make([]invoicing.LineItemInput, len(in))
	for i, it := range in {
		var override *valueobject.Rate
		if it.TaxRate != nil {
			r, err := toRate(*it.TaxRate)
			if err != nil {
				return nil, err
			}
			override = &r
		}
		items[i] = invoicing.LineItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   valueobject.NewMoney(it.UnitPrice),
			Unit:        it.Unit,
			TaxRate:     override,
			OrderIndex:  it.OrderIndex,
		}
	}
	return items, nil
}

func toRate(d decimal.Decimal) (valueobject.Rate, error) {
	r, err := valueobject.NewRate(d)
	if err != nil {
		return valueobject.Rate{}, shared.NewDomainError("INVALID_INPUT", "Tax rate must be a fraction between 0 and 1")
	}
	return r, nil
}

func (f InvoiceListFilter) toDomain() invoicing.InvoiceFilter {
	base := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
	}
	return invoicing.InvoiceFilter{
		Filter:    base.Normalize(),
		Type:      invoicing.Type(f.Type),
		Status:    invoicing.Status(f.Status),
		ClientID:  f.ClientID,
		ProjectID: f.ProjectID,
	}
}
