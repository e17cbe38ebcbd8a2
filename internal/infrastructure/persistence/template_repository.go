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
	"gorm.io/gorm/clause"
)

// GormTemplateRepository implements invoicing.TemplateRepository using GORM
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewGormTemplateRepository creates a new GormTemplateRepository
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

var _ invoicing.TemplateRepository = (*GormTemplateRepository)(nil)

// FindByID finds a template by ID
func (r *GormTemplateRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Template, error) {
	var model models.InvoiceTemplateModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindDefault finds the active default template for an invoice type
func (r *GormTemplateRepository) FindDefault(ctx context.Context, t invoicing.Type) (*invoicing.Template, error) {
	var model models.InvoiceTemplateModel
	if err := r.db.WithContext(ctx).
		Where("type = ? AND is_default = ? AND is_active = ?", string(t), true, true).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists templates with optional type and active filters
func (r *GormTemplateRepository) FindAll(ctx context.Context, filter invoicing.TemplateFilter) ([]invoicing.Template, int64, error) {
	page := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.InvoiceTemplateModel{})
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if page.Search != "" {
		query = query.Where("name LIKE ?", "%"+page.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	var rows []models.InvoiceTemplateModel
	if err := query.
		Order(templateSortColumns.orderBy(page.OrderBy, page.OrderDir)).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}

	out := make([]invoicing.Template, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save inserts a new template or updates an existing one under its version.
// A default template clears the other defaults of its type first.
func (r *GormTemplateRepository) Save(ctx context.Context, t *invoicing.Template) error {
	loadedVersion := t.Version
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.IsDefault {
			if err := clearDefaults(tx, t.Type, t.ID); err != nil {
				return err
			}
		}

		var exists int64
		if err := tx.Model(&models.InvoiceTemplateModel{}).Where("id = ?", t.ID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return tx.Create(models.InvoiceTemplateModelFromDomain(t)).Error
		}

		result := tx.Model(&models.InvoiceTemplateModel{}).
			Where("id = ? AND version = ?", t.ID, loadedVersion).
			Updates(map[string]any{
				"name":       t.Name,
				"type":       string(t.Type),
				"file_type":  string(t.FileType),
				"content":    t.Content,
				"is_default": t.IsDefault,
				"is_active":  t.IsActive,
				"version":    loadedVersion + 1,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		t.Version = loadedVersion + 1
		t.UpdatedAt = now
		return nil
	})
	return templateSaveError(err)
}

// templateSaveError reports a lost race on the one-default-per-type index as
// a concurrency conflict; the caller re-reads and decides
func templateSaveError(err error) error {
	if err != nil && isUniqueViolation(err) {
		return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "Another default template was set concurrently")
	}
	return err
}

// SetDefault makes the template its type's default and clears the previous one.
// Rows of the type are locked so concurrent switches serialize; the partial
// unique index is the backstop.
func (r *GormTemplateRepository) SetDefault(ctx context.Context, id uuid.UUID) (*invoicing.Template, error) {
	var tpl *invoicing.Template

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.InvoiceTemplateModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&target, "id = ?", id).Error; err != nil {
			return notFound(err)
		}

		var siblings []models.InvoiceTemplateModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("type = ? AND is_default = ?", target.Type, true).
			Find(&siblings).Error; err != nil {
			return err
		}

		tpl = target.ToDomain()
		if err := tpl.MarkDefault(); err != nil {
			return err
		}
		if len(tpl.GetDomainEvents()) == 0 {
			// already the default
			return nil
		}

		if err := clearDefaults(tx, tpl.Type, tpl.ID); err != nil {
			return err
		}
		if err := tx.Model(&models.InvoiceTemplateModel{}).
			Where("id = ?", tpl.ID).
			Updates(map[string]any{
				"is_default": true,
				"version":    tpl.Version + 1,
				"updated_at": tpl.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		tpl.Version++
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, shared.NewDomainError("CONCURRENCY_CONFLICT", "Another default template was set concurrently")
		}
		return nil, err
	}
	return tpl, nil
}

func clearDefaults(tx *gorm.DB, t invoicing.Type, keep uuid.UUID) error {
	return tx.Model(&models.InvoiceTemplateModel{}).
		Where("type = ? AND is_default = ? AND id <> ?", string(t), true, keep).
		Updates(map[string]any{
			"is_default": false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
}
