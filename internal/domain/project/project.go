package project

import (
	"strings"

	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Project is the owner of expenses and payments. Only the fields the
// financial rollup needs live here.
type Project struct {
	shared.BaseAggregateRoot
	Name            string
	ClientID        uuid.UUID
	EstimatedBudget *valueobject.Money
}

// NewProject creates a project
func NewProject(name string, clientID uuid.UUID, budget *valueobject.Money) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Project name cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Client ID cannot be empty")
	}
	p := &Project{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		ClientID:          clientID,
	}
	if err := p.SetBudget(budget); err != nil {
		return nil, err
	}
	return p, nil
}

// SetBudget sets or clears the estimated budget
func (p *Project) SetBudget(budget *valueobject.Money) error {
	if budget != nil && budget.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Estimated budget cannot be negative")
	}
	if budget != nil {
		b := budget.Round()
		budget = &b
	}
	p.EstimatedBudget = budget
	p.Touch()
	return nil
}
