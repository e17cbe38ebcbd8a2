package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/chantier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormProjectRepository implements project.ProjectRepository using GORM
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a new GormProjectRepository
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

// FindByID finds a project by ID
func (r *GormProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	var model models.ProjectModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// Save inserts or updates a project
func (r *GormProjectRepository) Save(ctx context.Context, p *project.Project) error {
	if err := r.db.WithContext(ctx).Save(models.ProjectModelFromDomain(p)).Error; err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// GormExpenseRepository implements project.ExpenseRepository using GORM
type GormExpenseRepository struct {
	db *gorm.DB
}

// NewGormExpenseRepository creates a new GormExpenseRepository
func NewGormExpenseRepository(db *gorm.DB) *GormExpenseRepository {
	return &GormExpenseRepository{db: db}
}

// Create inserts an expense
func (r *GormExpenseRepository) Create(ctx context.Context, e *project.Expense) error {
	if err := r.db.WithContext(ctx).Create(models.ExpenseModelFromDomain(e)).Error; err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// expenseBatchSize bounds the rows per INSERT statement
const expenseBatchSize = 200

// CreateBatch inserts the expenses in one transaction
func (r *GormExpenseRepository) CreateBatch(ctx context.Context, expenses []*project.Expense) error {
	if len(expenses) == 0 {
		return nil
	}
	rows := make([]*models.ExpenseModel, len(expenses))
	for i, e := range expenses {
		rows[i] = models.ExpenseModelFromDomain(e)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, expenseBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create expenses: %w", err)
	}
	return nil
}

// GormPaymentRepository implements project.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*project.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *project.Payment) error {
	if err := r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(p)).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// SaveWithLock persists the payment status under the loaded version
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, p *project.Payment) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"status":     string(p.Status),
			"reference":  p.Reference,
			"version":    p.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

// GormLedgerReader computes project totals straight from expenses and payments
type GormLedgerReader struct {
	db *gorm.DB
}

// NewGormLedgerReader creates a new GormLedgerReader
func NewGormLedgerReader(db *gorm.DB) *GormLedgerReader {
	return &GormLedgerReader{db: db}
}

var (
	_ project.ProjectRepository = (*GormProjectRepository)(nil)
	_ project.ExpenseRepository = (*GormExpenseRepository)(nil)
	_ project.PaymentRepository = (*GormPaymentRepository)(nil)
	_ project.LedgerReader      = (*GormLedgerReader)(nil)
)

type statusSum struct {
	Status string
	Total  decimal.Decimal
}

// Totals sums the project's expenses and its payments grouped by status
func (r *GormLedgerReader) Totals(ctx context.Context, projectID uuid.UUID) (project.LedgerTotals, error) {
	db := r.db.WithContext(ctx)

	var spent struct{ Total decimal.Decimal }
	if err := db.Model(&models.ExpenseModel{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("project_id = ?", projectID).
		Scan(&spent).Error; err != nil {
		return project.LedgerTotals{}, fmt.Errorf("failed to sum expenses: %w", err)
	}

	var sums []statusSum
	if err := db.Model(&models.PaymentModel{}).
		Select("status, COALESCE(SUM(amount), 0) AS total").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&sums).Error; err != nil {
		return project.LedgerTotals{}, fmt.Errorf("failed to sum payments: %w", err)
	}

	totals := project.LedgerTotals{
		Spent:            valueobject.NewMoney(spent.Total).Round(),
		PaymentsByStatus: make(map[project.PaymentStatus]valueobject.Money, len(sums)),
	}
	for _, s := range sums {
		totals.PaymentsByStatus[project.PaymentStatus(s.Status)] = valueobject.NewMoney(s.Total).Round()
	}
	return totals, nil
}
