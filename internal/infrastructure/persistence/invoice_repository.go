package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)

// FindByID loads an invoice and its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByNumber loads an invoice by its invoice number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	return r.findOne(ctx, "invoice_number = ?", number)
}

func (r *GormInvoiceRepository) findOne(ctx context.Context, query string, arg any) (*invoicing.Invoice, error) {
	db := r.db.WithContext(ctx)

	var model models.InvoiceModel
	if err := db.Where(query, arg).First(&model).Error; err != nil {
		return nil, notFound(err)
	}

	var items []models.InvoiceItemModel
	if err := db.Where("invoice_id = ?", model.ID).
		Order("order_index ASC, created_at ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load invoice items: %w", err)
	}
	return model.ToDomain(items), nil
}

// FindAll lists invoices matching the filter with their items, plus the total count
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	page := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})

	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date IS NOT NULL AND due_date < ?", *filter.DueBefore)
	}
	if page.Search != "" {
		like := "%" + page.Search + "%"
		query = query.Where("invoice_number LIKE ? OR reference LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	var rows []models.InvoiceModel
	if err := query.
		Order(invoiceSortColumns.orderBy(page.OrderBy, page.OrderDir)).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	if len(rows) == 0 {
		return []invoicing.Invoice{}, total, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var items []models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id IN ?", ids).
		Order("order_index ASC, created_at ASC").
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load invoice items: %w", err)
	}
	byInvoice := make(map[uuid.UUID][]models.InvoiceItemModel, len(rows))
	for _, it := range items {
		byInvoice[it.InvoiceID] = append(byInvoice[it.InvoiceID], it)
	}

	out := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain(byInvoice[rows[i].ID])
	}
	return out, total, nil
}

// Create inserts a numbered invoice and its items in one transaction
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	if inv.InvoiceNumber == "" {
		return shared.NewDomainError("INVALID_STATE", "Invoice must be numbered before it is stored")
	}
	model := models.InvoiceModelFromDomain(inv)
	items := models.InvoiceItemModelsFromDomain(inv)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Invoice number %s already exists", inv.InvoiceNumber))
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// SaveWithLock writes the editable fields, totals and the full item set,
// guarded by the version the aggregate was loaded with.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	loadedVersion := inv.Version
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.InvoiceModel{}).
			Where("id = ? AND version = ? AND status = ?", inv.ID, loadedVersion, string(invoicing.StatusDraft)).
			Updates(map[string]any{
				"client_id":    inv.ClientID,
				"project_id":   inv.ProjectID,
				"template_id":  inv.TemplateID,
				"issue_date":   inv.IssueDate,
				"due_date":     inv.DueDate,
				"subtotal":     inv.Subtotal,
				"tax_rate":     inv.TaxRate,
				"tax_amount":   inv.TaxAmount,
				"total_amount": inv.TotalAmount,
				"notes":        inv.Notes,
				"terms":        inv.Terms,
				"reference":    inv.Reference,
				"version":      loadedVersion + 1,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.explainMiss(tx, inv.ID)
		}

		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}
		items := models.InvoiceItemModelsFromDomain(inv)
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	inv.Version = loadedVersion + 1
	inv.UpdatedAt = now
	return nil
}

// explainMiss turns a zero-row guarded update into the right domain error
func (r *GormInvoiceRepository) explainMiss(tx *gorm.DB, id uuid.UUID) error {
	var current models.InvoiceModel
	if err := tx.Select("status", "version").Where("id = ?", id).First(&current).Error; err != nil {
		return notFound(err)
	}
	if current.Status != string(invoicing.StatusDraft) {
		return shared.NewDomainError(invoicing.CodeInvoiceLocked,
			fmt.Sprintf("Invoice is %s and can no longer be edited", current.Status))
	}
	return shared.ErrConcurrencyConflict
}

// UpdateStatus persists a transition only when the row still holds the
// expected status and version.
func (r *GormInvoiceRepository) UpdateStatus(ctx context.Context, inv *invoicing.Invoice, expected invoicing.Status, expectedVersion int) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("id = ? AND status = ? AND version = ?", inv.ID, string(expected), expectedVersion).
		Updates(map[string]any{
			"status":       string(inv.Status),
			"sent_at":      inv.SentAt,
			"validated_at": inv.ValidatedAt,
			"paid_at":      inv.PaidAt,
			"version":      expectedVersion + 1,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update invoice status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("id = ?", inv.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.NewDomainError(invoicing.CodeInvalidTransition,
			fmt.Sprintf("Invoice %s is no longer %s", inv.InvoiceNumber, expected))
	}

	inv.Version = expectedVersion + 1
	inv.UpdatedAt = now
	return nil
}

// UpdateDocumentURL records the storage key of the rendered document
func (r *GormInvoiceRepository) UpdateDocumentURL(ctx context.Context, id uuid.UUID, url string) error {
	result := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("id = ?", id).
		Update("generated_document_url", url)
	if result.Error != nil {
		return fmt.Errorf("failed to update document url: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
