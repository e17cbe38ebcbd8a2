package models

import (
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the GORM model for the invoices table
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber        string            `gorm:"type:varchar(32);not null;uniqueIndex"`
	Type                 string            `gorm:"type:varchar(10);not null;index"`
	ClientID             uuid.UUID         `gorm:"type:uuid;not null;index"`
	ProjectID            *uuid.UUID        `gorm:"type:uuid;index"`
	TemplateID           *uuid.UUID        `gorm:"type:uuid"`
	IssueDate            time.Time         `gorm:"type:date;not null"`
	DueDate              *time.Time        `gorm:"type:date"`
	Status               string            `gorm:"type:varchar(20);not null;index"`
	Subtotal             valueobject.Money `gorm:"type:decimal(18,2);not null;default:0"`
	TaxRate              valueobject.Rate  `gorm:"type:decimal(5,4);not null;default:0"`
	TaxAmount            valueobject.Money `gorm:"type:decimal(18,2);not null;default:0"`
	TotalAmount          valueobject.Money `gorm:"type:decimal(18,2);not null;default:0"`
	Notes                string            `gorm:"type:text"`
	Terms                string            `gorm:"type:text"`
	Reference            string            `gorm:"type:varchar(100)"`
	GeneratedDocumentURL string            `gorm:"column:generated_document_url;type:varchar(500)"`
	SentAt               *time.Time
	ValidatedAt          *time.Time
	PaidAt               *time.Time
}

// TableName returns the table name for InvoiceModel
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the row and its items to the domain aggregate
func (m *InvoiceModel) ToDomain(items []InvoiceItemModel) *invoicing.Invoice {
	inv := &invoicing.Invoice{
		BaseAggregateRoot:    m.Aggregate(),
		InvoiceNumber:        m.InvoiceNumber,
		Type:                 invoicing.Type(m.Type),
		ClientID:             m.ClientID,
		ProjectID:            m.ProjectID,
		TemplateID:           m.TemplateID,
		IssueDate:            m.IssueDate,
		DueDate:              m.DueDate,
		Status:               invoicing.Status(m.Status),
		Subtotal:             m.Subtotal,
		TaxRate:              m.TaxRate,
		TaxAmount:            m.TaxAmount,
		TotalAmount:          m.TotalAmount,
		Notes:                m.Notes,
		Terms:                m.Terms,
		Reference:            m.Reference,
		GeneratedDocumentURL: m.GeneratedDocumentURL,
		SentAt:               m.SentAt,
		ValidatedAt:          m.ValidatedAt,
		PaidAt:               m.PaidAt,
		Items:                make([]invoicing.LineItem, len(items)),
	}
	for i := range items {
		inv.Items[i] = *items[i].ToDomain()
	}
	return inv
}

// InvoiceModelFromDomain maps the aggregate header (items are mapped separately)
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		InvoiceNumber:        inv.InvoiceNumber,
		Type:                 string(inv.Type),
		ClientID:             inv.ClientID,
		ProjectID:            inv.ProjectID,
		TemplateID:           inv.TemplateID,
		IssueDate:            inv.IssueDate,
		DueDate:              inv.DueDate,
		Status:               string(inv.Status),
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
	}
	m.AggregateModel = aggregateModelOf(inv.BaseAggregateRoot)
	return m
}

// InvoiceItemModel is the GORM model for the invoice_items table
type InvoiceItemModel struct {
	BaseModel
	InvoiceID   uuid.UUID         `gorm:"type:uuid;not null;index"`
	Description string            `gorm:"type:text;not null"`
	Quantity    decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	UnitPrice   valueobject.Money `gorm:"type:decimal(18,2);not null"`
	Unit        string            `gorm:"type:varchar(20)"`
	TaxRate     *valueobject.Rate `gorm:"type:decimal(5,4)"`
	LineTotal   valueobject.Money `gorm:"type:decimal(18,2);not null"`
	OrderIndex  int               `gorm:"not null;default:0"`
}

// TableName returns the table name for InvoiceItemModel
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts InvoiceItemModel to a domain LineItem
func (m *InvoiceItemModel) ToDomain() *invoicing.LineItem {
	return &invoicing.LineItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		Unit:        m.Unit,
		TaxRate:     m.TaxRate,
		LineTotal:   m.LineTotal,
		OrderIndex:  m.OrderIndex,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// InvoiceItemModelsFromDomain maps the items of inv, stamping the invoice id
func InvoiceItemModelsFromDomain(inv *invoicing.Invoice) []InvoiceItemModel {
	out := make([]InvoiceItemModel, len(inv.Items))
	for i, it := range inv.Items {
		out[i] = InvoiceItemModel{
			BaseModel: BaseModel{
				ID:        it.ID,
				CreatedAt: it.CreatedAt,
				UpdatedAt: it.UpdatedAt,
			},
			InvoiceID:   inv.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Unit:        it.Unit,
			TaxRate:     it.TaxRate,
			LineTotal:   it.LineTotal,
			OrderIndex:  it.OrderIndex,
		}
	}
	return out
}

// InvoiceTemplateModel is the GORM model for the invoice_templates table.
// At most one row per type has is_default set (partial unique index in the migration).
type InvoiceTemplateModel struct {
	AggregateModel
	Name      string `gorm:"type:varchar(100);not null"`
	Type      string `gorm:"type:varchar(10);not null;index"`
	FileType  string `gorm:"type:varchar(10);not null;default:'pdf'"`
	Content   string `gorm:"type:text;not null"`
	IsDefault bool   `gorm:"not null;default:false"`
	IsActive  bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for InvoiceTemplateModel
func (InvoiceTemplateModel) TableName() string {
	return "invoice_templates"
}

// ToDomain converts InvoiceTemplateModel to a domain Template
func (m *InvoiceTemplateModel) ToDomain() *invoicing.Template {
	return &invoicing.Template{
		BaseAggregateRoot: m.Aggregate(),
		Name:              m.Name,
		Type:              invoicing.Type(m.Type),
		FileType:          invoicing.FileType(m.FileType),
		Content:           m.Content,
		IsDefault:         m.IsDefault,
		IsActive:          m.IsActive,
	}
}

// InvoiceTemplateModelFromDomain creates a model from a domain Template
func InvoiceTemplateModelFromDomain(t *invoicing.Template) *InvoiceTemplateModel {
	m := &InvoiceTemplateModel{
		Name:      t.Name,
		Type:      string(t.Type),
		FileType:  string(t.FileType),
		Content:   t.Content,
		IsDefault: t.IsDefault,
		IsActive:  t.IsActive,
	}
	m.AggregateModel = aggregateModelOf(t.BaseAggregateRoot)
	return m
}

// InvoiceSequenceModel is the per (type, year) counter backing invoice numbers
type InvoiceSequenceModel struct {
	Type      string    `gorm:"type:varchar(10);primaryKey"`
	Year      int       `gorm:"primaryKey"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for InvoiceSequenceModel
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}
