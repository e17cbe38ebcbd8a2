package project

import (
	"time"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProjectRequest represents a request to register a project with the ledger
type CreateProjectRequest struct {
	Name            string           `json:"name" binding:"required,min=1,max=200" example:"Rénovation Villa Les Pins"`
	ClientID        uuid.UUID        `json:"client_id" binding:"required"`
	EstimatedBudget *decimal.Decimal `json:"estimated_budget" example:"10000"`
}

// RecordExpenseRequest represents a request to record an expense
type RecordExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required" example:"3000"`
	Date        *time.Time      `json:"date"`
	Description string          `json:"description" binding:"max=1000"`
}

// RecordPaymentRequest represents a request to record a client payment
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required" example:"1200"`
	Status    string          `json:"status" binding:"omitempty,oneof=payé partiel en_attente annulé" example:"partiel"`
	Date      *time.Time      `json:"date"`
	Reference string          `json:"reference" binding:"max=100"`
}

// UpdatePaymentStatusRequest represents a request to change a payment status
type UpdatePaymentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=payé partiel en_attente annulé" example:"payé"`
}

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	ClientID        uuid.UUID          `json:"client_id"`
	EstimatedBudget *valueobject.Money `json:"estimated_budget"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ExpenseResponse represents an expense in API responses
type ExpenseResponse struct {
	ID          uuid.UUID         `json:"id"`
	ProjectID   uuid.UUID         `json:"project_id"`
	Amount      valueobject.Money `json:"amount"`
	Date        time.Time         `json:"date"`
	Description string            `json:"description,omitempty"`
}

// ExpenseImportResponse summarizes a bulk expense import
type ExpenseImportResponse struct {
	ProjectID   uuid.UUID         `json:"project_id"`
	Imported    int               `json:"imported"`
	TotalAmount valueobject.Money `json:"total_amount"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID        uuid.UUID         `json:"id"`
	ProjectID uuid.UUID         `json:"project_id"`
	Amount    valueobject.Money `json:"amount"`
	Status    string            `json:"status"`
	Date      time.Time         `json:"date"`
	Reference string            `json:"reference,omitempty"`
}

// SnapshotResponse represents a project's financial position
type SnapshotResponse = project.FinancialSnapshot

func toProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:              p.ID,
		Name:            p.Name,
		ClientID:        p.ClientID,
		EstimatedBudget: p.EstimatedBudget,
		CreatedAt:       p.CreatedAt,
	}
}

func toExpenseResponse(e *project.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:          e.ID,
		ProjectID:   e.ProjectID,
		Amount:      e.Amount,
		Date:        e.Date,
		Description: e.Description,
	}
}

func toPaymentResponse(p *project.Payment) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		ProjectID: p.ProjectID,
		Amount:    p.Amount,
		Status:    p.Status.String(),
		Date:      p.Date,
		Reference: p.Reference,
	}
}

func dateOrZero(d *time.Time) time.Time {
	if d == nil {
		return time.Time{}
	}
	return *d
}
