package invoicing

import (
	"context"
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockInvoiceRepository is a mock implementation of InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]invoicing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) UpdateStatus(ctx context.Context, inv *invoicing.Invoice, expected invoicing.Status, expectedVersion int) error {
	args := m.Called(ctx, inv, expected, expectedVersion)
	return args.Error(0)
}

func (m *MockInvoiceRepository) UpdateDocumentURL(ctx context.Context, id uuid.UUID, url string) error {
	args := m.Called(ctx, id, url)
	return args.Error(0)
}

// MockTemplateRepository is a mock implementation of TemplateRepository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Template), args.Error(1)
}

func (m *MockTemplateRepository) FindDefault(ctx context.Context, t invoicing.Type) (*invoicing.Template, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Template), args.Error(1)
}

func (m *MockTemplateRepository) FindAll(ctx context.Context, filter invoicing.TemplateFilter) ([]invoicing.Template, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]invoicing.Template), args.Get(1).(int64), args.Error(2)
}

func (m *MockTemplateRepository) Save(ctx context.Context, t *invoicing.Template) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTemplateRepository) SetDefault(ctx context.Context, id uuid.UUID) (*invoicing.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Template), args.Error(1)
}

// MockSequence is a mock implementation of NumberSequence
type MockSequence struct {
	mock.Mock
}

func (m *MockSequence) Next(ctx context.Context, t invoicing.Type, year int) (int64, error) {
	args := m.Called(ctx, t, year)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockMetrics records ledger counters
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) InvoiceCreated(ctx context.Context, invoiceType string) {
	m.Called(ctx, invoiceType)
}

func (m *MockMetrics) InvoiceTransitioned(ctx context.Context, event, to string) {
	m.Called(ctx, event, to)
}

func (m *MockMetrics) NumberingContention(ctx context.Context, invoiceType string) {
	m.Called(ctx, invoiceType)
}

// MockRenderer is a mock TemplateRenderer
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) RenderString(ctx context.Context, name, content string, data any) (string, error) {
	args := m.Called(ctx, name, content, data)
	return args.String(0), args.Error(1)
}

// MockPDFConverter is a mock PDFConverter
type MockPDFConverter struct {
	mock.Mock
}

func (m *MockPDFConverter) ConvertHTML(ctx context.Context, html string) ([]byte, error) {
	args := m.Called(ctx, html)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockDocumentStore is a mock DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockDocumentStore) GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, key, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}
