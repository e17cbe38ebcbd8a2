package project

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProjectRepository is a mock implementation of ProjectRepository
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Project), args.Error(1)
}

func (m *MockProjectRepository) Save(ctx context.Context, p *project.Project) error {
	return m.Called(ctx, p).Error(0)
}

// MockExpenseRepository is a mock implementation of ExpenseRepository
type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) Create(ctx context.Context, e *project.Expense) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockExpenseRepository) CreateBatch(ctx context.Context, expenses []*project.Expense) error {
	return m.Called(ctx, expenses).Error(0)
}

// MockPaymentRepository is a mock implementation of PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*project.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *project.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, p *project.Payment) error {
	return m.Called(ctx, p).Error(0)
}

// MockLedgerReader is a mock implementation of LedgerReader
type MockLedgerReader struct {
	mock.Mock
	calls atomic.Int32
}

func (m *MockLedgerReader) Totals(ctx context.Context, projectID uuid.UUID) (project.LedgerTotals, error) {
	m.calls.Add(1)
	args := m.Called(ctx, projectID)
	return args.Get(0).(project.LedgerTotals), args.Error(1)
}

// memoryCache is an in-process SnapshotCache for tests
type memoryCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]project.FinancialSnapshot
	generations map[uuid.UUID]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries:     map[uuid.UUID]project.FinancialSnapshot{},
		generations: map[uuid.UUID]int64{},
	}
}

func (c *memoryCache) Generation(_ context.Context, id uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[id], nil
}

func (c *memoryCache) Get(_ context.Context, id uuid.UUID) (*project.FinancialSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return &s, true
}

func (c *memoryCache) Set(_ context.Context, s *project.FinancialSnapshot, gen int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[s.ProjectID] == gen {
		c.entries[s.ProjectID] = *s
	}
}

func (c *memoryCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[id]++
	delete(c.entries, id)
	return nil
}

type financialFixture struct {
	projects *MockProjectRepository
	expenses *MockExpenseRepository
	payments *MockPaymentRepository
	ledger   *MockLedgerReader
	cache    *memoryCache
	service  *FinancialService
}

func newFinancialFixture() *financialFixture {
	f := &financialFixture{
		projects: new(MockProjectRepository),
		expenses: new(MockExpenseRepository),
		payments: new(MockPaymentRepository),
		ledger:   new(MockLedgerReader),
		cache:    newMemoryCache(),
	}
	f.service = NewFinancialService(f.projects, f.expenses, f.payments, f.ledger, f.cache, nil)
	return f
}

func villa(t *testing.T) *project.Project {
	t.Helper()
	budget := valueobject.MustMoney("10000")
	p, err := project.NewProject("Villa", uuid.New(), &budget)
	require.NoError(t, err)
	return p
}

func scenarioD() project.LedgerTotals {
	return project.LedgerTotals{
		Spent: valueobject.MustMoney("3000"),
		PaymentsByStatus: map[project.PaymentStatus]valueobject.Money{
			project.PaymentStatusPartial: valueobject.MustMoney("1200"),
		},
	}
}

func TestFinancialService_GetSnapshot(t *testing.T) {
	f := newFinancialFixture()
	p := villa(t)
	f.projects.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	f.ledger.On("Totals", mock.Anything, p.ID).Return(scenarioD(), nil)

	snap, err := f.service.GetSnapshot(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "3000.00", snap.SpentAmount.String())
	assert.Equal(t, "1200.00", snap.PaymentsTotal.String())
	assert.Equal(t, "7000.00", snap.RemainingAdmin.String())
	assert.Equal(t, "8800.00", snap.RemainingClient.String())

	// second read is served from cache
	_, err = f.service.GetSnapshot(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.ledger.calls.Load())
}

func TestFinancialService_GetSnapshotUnknownProject(t *testing.T) {
	f := newFinancialFixture()
	id := uuid.New()
	f.projects.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := f.service.GetSnapshot(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	f.ledger.AssertNotCalled(t, "Totals", mock.Anything, mock.Anything)
}

func TestFinancialService_WritesInvalidateSnapshot(t *testing.T) {
	f := newFinancialFixture()
	p := villa(t)
	f.projects.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	f.ledger.On("Totals", mock.Anything, p.ID).Return(scenarioD(), nil)
	f.expenses.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.GetSnapshot(context.Background(), p.ID)
	require.NoError(t, err)
	_, cached := f.cache.Get(context.Background(), p.ID)
	require.True(t, cached)

	exp, err := f.service.RecordExpense(context.Background(), p.ID, RecordExpenseRequest{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	assert.Equal(t, "500.00", exp.Amount.String())
	_, cached = f.cache.Get(context.Background(), p.ID)
	assert.False(t, cached)

	_, err = f.service.GetSnapshot(context.Background(), p.ID)
	require.NoError(t, err)
	pay, err := f.service.RecordPayment(context.Background(), p.ID, RecordPaymentRequest{Amount: decimal.NewFromInt(100), Status: "payé"})
	require.NoError(t, err)
	assert.Equal(t, "payé", pay.Status)
	_, cached = f.cache.Get(context.Background(), p.ID)
	assert.False(t, cached)
}

func TestFinancialService_RecordExpenseValidation(t *testing.T) {
	f := newFinancialFixture()
	p := villa(t)
	f.projects.On("FindByID", mock.Anything, p.ID).Return(p, nil)

	_, err := f.service.RecordExpense(context.Background(), p.ID, RecordExpenseRequest{Amount: decimal.NewFromInt(-5)})
	assert.Equal(t, "INVALID_AMOUNT", shared.CodeOf(err))
	f.expenses.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// gatedLedger holds its first Totals call until release is closed and then
// answers with whatever spent amount is current
type gatedLedger struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	spent   valueobject.Money
}

func (l *gatedLedger) Totals(_ context.Context, _ uuid.UUID) (project.LedgerTotals, error) {
	l.mu.Lock()
	seen := l.spent
	l.mu.Unlock()
	first := false
	l.once.Do(func() { first = true })
	if first {
		close(l.entered)
		<-l.release
	}
	return project.LedgerTotals{Spent: seen}, nil
}

func (l *gatedLedger) add(amount valueobject.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spent = l.spent.Add(amount)
}

func TestFinancialService_SlowReadDoesNotCacheOverAWrite(t *testing.T) {
	projects := new(MockProjectRepository)
	expenses := new(MockExpenseRepository)
	cache := newMemoryCache()
	ledger := &gatedLedger{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		spent:   valueobject.MustMoney("3000"),
	}
	svc := NewFinancialService(projects, expenses, new(MockPaymentRepository), ledger, cache, nil)

	p := villa(t)
	projects.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	expenses.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ledger.add(args.Get(1).(*project.Expense).Amount)
	}).Return(nil)

	slow := make(chan *SnapshotResponse, 1)
	go func() {
		snap, err := svc.GetSnapshot(context.Background(), p.ID)
		assert.NoError(t, err)
		slow <- snap
	}()
	select {
	case <-ledger.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot read never reached the ledger")
	}

	_, err := svc.RecordExpense(context.Background(), p.ID, RecordExpenseRequest{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	close(ledger.release)
	assert.Equal(t, "3000.00", (<-slow).SpentAmount.String())

	_, cached := cache.Get(context.Background(), p.ID)
	assert.False(t, cached, "a snapshot computed before the write must not be cached")

	fresh, err := svc.GetSnapshot(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "3500.00", fresh.SpentAmount.String())
}

func TestFinancialService_ImportExpenses(t *testing.T) {
	t.Run("records the batch and publishes one event per expense", func(t *testing.T) {
		f := newFinancialFixture()
		pub := new(MockEventPublisher)
		f.service.SetEventPublisher(pub)
		p := villa(t)
		f.projects.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.expenses.On("CreateBatch", mock.Anything, mock.MatchedBy(func(batch []*project.Expense) bool {
			return len(batch) == 2
		})).Return(nil)
		pub.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
			return len(events) == 2 && events[0].EventType() == project.EventTypeExpenseRecorded
		})).Return(nil)

		resp, err := f.service.ImportExpenses(context.Background(), p.ID, []RecordExpenseRequest{
			{Amount: decimal.RequireFromString("1200.50"), Description: "Béton"},
			{Amount: decimal.NewFromInt(300), Description: "Location benne"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Imported)
		assert.Equal(t, "1500.50", resp.TotalAmount.String())
		pub.AssertExpectations(t)
	})

	t.Run("one invalid expense rejects the batch", func(t *testing.T) {
		f := newFinancialFixture()
		p := villa(t)
		f.projects.On("FindByID", mock.Anything, p.ID).Return(p, nil)

		_, err := f.service.ImportExpenses(context.Background(), p.ID, []RecordExpenseRequest{
			{Amount: decimal.NewFromInt(100)},
			{Amount: decimal.NewFromInt(-5)},
		})
		assert.Equal(t, "INVALID_AMOUNT", shared.CodeOf(err))
		assert.Contains(t, err.Error(), "expense 2")
		f.expenses.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	})

	t.Run("empty batch", func(t *testing.T) {
		f := newFinancialFixture()
		_, err := f.service.ImportExpenses(context.Background(), uuid.New(), nil)
		assert.Equal(t, "INVALID_INPUT", shared.CodeOf(err))
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFinancialFixture()
		id := uuid.New()
		f.projects.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := f.service.ImportExpenses(context.Background(), id, []RecordExpenseRequest{{Amount: decimal.NewFromInt(1)}})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestFinancialService_UpdatePaymentStatus(t *testing.T) {
	f := newFinancialFixture()
	pub := new(MockEventPublisher)
	f.service.SetEventPublisher(pub)

	pay, err := project.NewPayment(uuid.New(), valueobject.MustMoney("1200"), project.PaymentStatusPending, time.Now(), "")
	require.NoError(t, err)
	f.payments.On("FindByID", mock.Anything, pay.ID).Return(pay, nil)
	f.payments.On("SaveWithLock", mock.Anything, pay).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == project.EventTypePaymentStatusChanged
	})).Return(nil)

	resp, err := f.service.UpdatePaymentStatus(context.Background(), pay.ID, UpdatePaymentStatusRequest{Status: "payé"})
	require.NoError(t, err)
	assert.Equal(t, "payé", resp.Status)
	pub.AssertExpectations(t)

	// unchanged status does not write
	_, err = f.service.UpdatePaymentStatus(context.Background(), pay.ID, UpdatePaymentStatusRequest{Status: "payé"})
	require.NoError(t, err)
	f.payments.AssertNumberOfCalls(t, "SaveWithLock", 1)
}

func TestFinancialService_CreateProject(t *testing.T) {
	f := newFinancialFixture()
	f.projects.On("Save", mock.Anything, mock.AnythingOfType("*project.Project")).Return(nil)

	budget := decimal.NewFromInt(10000)
	resp, err := f.service.CreateProject(context.Background(), CreateProjectRequest{Name: "Villa", ClientID: uuid.New(), EstimatedBudget: &budget})
	require.NoError(t, err)
	assert.Equal(t, "10000.00", resp.EstimatedBudget.String())
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}
