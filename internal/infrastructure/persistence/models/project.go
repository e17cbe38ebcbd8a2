package models

import (
	"time"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ProjectModel is the GORM model for the projects table
type ProjectModel struct {
	AggregateModel
	Name            string             `gorm:"type:varchar(200);not null"`
	ClientID        uuid.UUID          `gorm:"type:uuid;not null;index"`
	EstimatedBudget *valueobject.Money `gorm:"type:decimal(18,2)"`
}

// TableName returns the table name for ProjectModel
func (ProjectModel) TableName() string {
	return "projects"
}

// ToDomain converts ProjectModel to a domain Project
func (m *ProjectModel) ToDomain() *project.Project {
	return &project.Project{
		BaseAggregateRoot: m.Aggregate(),
		Name:              m.Name,
		ClientID:          m.ClientID,
		EstimatedBudget:   m.EstimatedBudget,
	}
}

// ProjectModelFromDomain creates a model from a domain Project
func ProjectModelFromDomain(p *project.Project) *ProjectModel {
	m := &ProjectModel{
		Name:            p.Name,
		ClientID:        p.ClientID,
		EstimatedBudget: p.EstimatedBudget,
	}
	m.AggregateModel = aggregateModelOf(p.BaseAggregateRoot)
	return m
}

// ExpenseModel is the GORM model for the expenses table
type ExpenseModel struct {
	BaseModel
	ProjectID   uuid.UUID         `gorm:"type:uuid;not null;index"`
	Amount      valueobject.Money `gorm:"type:decimal(18,2);not null"`
	Date        time.Time         `gorm:"column:expense_date;type:date;not null"`
	Description string            `gorm:"type:text"`
}

// TableName returns the table name for ExpenseModel
func (ExpenseModel) TableName() string {
	return "expenses"
}

// ToDomain converts ExpenseModel to a domain Expense
func (m *ExpenseModel) ToDomain() *project.Expense {
	return &project.Expense{
		BaseEntity:  m.Entity(),
		ProjectID:   m.ProjectID,
		Amount:      m.Amount,
		Date:        m.Date,
		Description: m.Description,
	}
}

// ExpenseModelFromDomain creates a model from a domain Expense
func ExpenseModelFromDomain(e *project.Expense) *ExpenseModel {
	m := &ExpenseModel{
		ProjectID:   e.ProjectID,
		Amount:      e.Amount,
		Date:        e.Date,
		Description: e.Description,
	}
	m.BaseModel = baseModelOf(e.BaseEntity)
	return m
}

// PaymentModel is the GORM model for the payments table
type PaymentModel struct {
	AggregateModel
	ProjectID uuid.UUID         `gorm:"type:uuid;not null;index"`
	Amount    valueobject.Money `gorm:"type:decimal(18,2);not null"`
	Status    string            `gorm:"type:varchar(20);not null;index"`
	Date      time.Time         `gorm:"column:payment_date;type:date;not null"`
	Reference string            `gorm:"type:varchar(100)"`
}

// TableName returns the table name for PaymentModel
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts PaymentModel to a domain Payment
func (m *PaymentModel) ToDomain() *project.Payment {
	return &project.Payment{
		BaseAggregateRoot: m.Aggregate(),
		ProjectID:         m.ProjectID,
		Amount:            m.Amount,
		Status:            project.PaymentStatus(m.Status),
		Date:              m.Date,
		Reference:         m.Reference,
	}
}

// PaymentModelFromDomain creates a model from a domain Payment
func PaymentModelFromDomain(p *project.Payment) *PaymentModel {
	m := &PaymentModel{
		ProjectID: p.ProjectID,
		Amount:    p.Amount,
		Status:    string(p.Status),
		Date:      p.Date,
		Reference: p.Reference,
	}
	m.AggregateModel = aggregateModelOf(p.BaseAggregateRoot)
	return m
}
