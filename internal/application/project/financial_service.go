package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SnapshotCache stores computed snapshots. Implementations must treat
// backend failures as misses so the ledger stays readable.
//
// Every project has a write generation that Invalidate advances. Set stores
// a snapshot only while the generation still equals the one read before its
// totals were queried, so a read that raced a write never caches the older
// figures.
type SnapshotCache interface {
	Get(ctx context.Context, projectID uuid.UUID) (*project.FinancialSnapshot, bool)
	Generation(ctx context.Context, projectID uuid.UUID) (int64, error)
	Set(ctx context.Context, snapshot *project.FinancialSnapshot, gen int64)
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

// FinancialService handles project financial operations
type FinancialService struct {
	projectRepo    project.ProjectRepository
	expenseRepo    project.ExpenseRepository
	paymentRepo    project.PaymentRepository
	ledger         project.LedgerReader
	cache          SnapshotCache
	eventPublisher shared.EventPublisher
	group          singleflight.Group
	logger         *zap.Logger
}

// NewFinancialService creates a new FinancialService. cache may be nil.
func NewFinancialService(
	projectRepo project.ProjectRepository,
	expenseRepo project.ExpenseRepository,
	paymentRepo project.PaymentRepository,
	ledger project.LedgerReader,
	cache SnapshotCache,
	logger *zap.Logger,
) *FinancialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinancialService{
		projectRepo: projectRepo,
		expenseRepo: expenseRepo,
		paymentRepo: paymentRepo,
		ledger:      ledger,
		cache:       cache,
		logger:      logger,
	}
}

// SetEventPublisher sets the publisher for expense and payment events
func (s *FinancialService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreateProject registers a project
func (s *FinancialService) CreateProject(ctx context.Context, req CreateProjectRequest) (*ProjectResponse, error) {
	var budget *valueobject.Money
	if req.EstimatedBudget != nil {
		b := valueobject.NewMoney(*req.EstimatedBudget)
		budget = &b
	}
	p, err := project.NewProject(req.Name, req.ClientID, budget)
	if err != nil {
		return nil, err
	}
	if err := s.projectRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	resp := toProjectResponse(p)
	return &resp, nil
}

// GetSnapshot computes the project's financial position from its current
// expense and payment rows. A cached snapshot is used only when no write to
// the project happened since it was computed.
func (s *FinancialService) GetSnapshot(ctx context.Context, projectID uuid.UUID) (*SnapshotResponse, error) {
	if s.cache == nil {
		return s.computeSnapshot(ctx, projectID)
	}
	if snap, ok := s.cache.Get(ctx, projectID); ok {
		return snap, nil
	}
	gen, err := s.cache.Generation(ctx, projectID)
	if err != nil {
		// generation unknown: neither share nor store the result
		return s.computeSnapshot(ctx, projectID)
	}

	// callers arriving after a write see a new generation and a new flight
	key := fmt.Sprintf("%s:%d", projectID, gen)
	v, err, _ := s.group.Do(key, func() (any, error) {
		snap, err := s.computeSnapshot(ctx, projectID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, snap, gen)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*project.FinancialSnapshot), nil
}

func (s *FinancialService) computeSnapshot(ctx context.Context, projectID uuid.UUID) (*project.FinancialSnapshot, error) {
	p, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	totals, err := s.ledger.Totals(ctx, projectID)
	if err != nil {
		return nil, err
	}
	snap := project.ComputeSnapshot(projectID, p.EstimatedBudget, totals)
	return &snap, nil
}

// RecordExpense stores an expense against an existing project
func (s *FinancialService) RecordExpense(ctx context.Context, projectID uuid.UUID, req RecordExpenseRequest) (*ExpenseResponse, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	e, err := project.NewExpense(projectID, valueobject.NewMoney(req.Amount), dateOrZero(req.Date), req.Description)
	if err != nil {
		return nil, err
	}
	if err := s.expenseRepo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Info("expense recorded",
		zap.String("project_id", projectID.String()),
		zap.String("amount", e.Amount.String()))

	s.publish(ctx, project.NewExpenseRecordedEvent(e))
	resp := toExpenseResponse(e)
	return &resp, nil
}

// ImportExpenses records a batch of expenses in one transaction. A single
// invalid entry rejects the whole batch.
func (s *FinancialService) ImportExpenses(ctx context.Context, projectID uuid.UUID, reqs []RecordExpenseRequest) (*ExpenseImportResponse, error) {
	if len(reqs) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "No expenses to import")
	}
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, err
	}

	expenses := make([]*project.Expense, 0, len(reqs))
	total := valueobject.Zero()
	for i, req := range reqs {
		e, err := project.NewExpense(projectID, valueobject.NewMoney(req.Amount), dateOrZero(req.Date), req.Description)
		if err != nil {
			var de *shared.DomainError
			if errors.As(err, &de) {
				return nil, shared.NewDomainError(de.Code, fmt.Sprintf("expense %d: %s", i+1, de.Message))
			}
			return nil, err
		}
		expenses = append(expenses, e)
		total = total.Add(e.Amount)
	}
	if err := s.expenseRepo.CreateBatch(ctx, expenses); err != nil {
		return nil, err
	}

	s.logger.Info("expenses imported",
		zap.String("project_id", projectID.String()),
		zap.Int("count", len(expenses)),
		zap.String("total", total.String()))

	events := make([]shared.DomainEvent, 0, len(expenses))
	for _, e := range expenses {
		events = append(events, project.NewExpenseRecordedEvent(e))
	}
	s.publish(ctx, events...)

	return &ExpenseImportResponse{
		ProjectID:   projectID,
		Imported:    len(expenses),
		TotalAmount: total,
	}, nil
}

// RecordPayment stores a payment against an existing project
func (s *FinancialService) RecordPayment(ctx context.Context, projectID uuid.UUID, req RecordPaymentRequest) (*PaymentResponse, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	p, err := project.NewPayment(projectID, valueobject.NewMoney(req.Amount), project.PaymentStatus(req.Status), dateOrZero(req.Date), req.Reference)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.String("project_id", projectID.String()),
		zap.String("amount", p.Amount.String()),
		zap.String("status", p.Status.String()))

	s.publish(ctx, project.NewPaymentRecordedEvent(p))
	resp := toPaymentResponse(p)
	return &resp, nil
}

// UpdatePaymentStatus changes the status of a payment
func (s *FinancialService) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, req UpdatePaymentStatusRequest) (*PaymentResponse, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := p.ChangeStatus(project.PaymentStatus(req.Status)); err != nil {
		return nil, err
	}
	events := p.GetDomainEvents()
	if len(events) > 0 {
		if err := s.paymentRepo.SaveWithLock(ctx, p); err != nil {
			return nil, err
		}
	}
	p.ClearDomainEvents()
	s.publish(ctx, events...)

	resp := toPaymentResponse(p)
	return &resp, nil
}

func (s *FinancialService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if len(events) == 0 {
		return
	}
	if s.eventPublisher == nil {
		// no bus: evict directly so reads stay fresh
		s.evict(ctx, events...)
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish ledger events", zap.Error(err))
	}
}

func (s *FinancialService) evict(ctx context.Context, events ...shared.DomainEvent) {
	if s.cache == nil {
		return
	}
	for _, e := range events {
		if scoped, ok := e.(project.ProjectScoped); ok {
			_ = s.cache.Invalidate(ctx, scoped.GetProjectID())
		}
	}
}
