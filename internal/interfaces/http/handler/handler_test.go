package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	invoicingapp "github.com/chantier/backend/internal/application/invoicing"
	projectapp "github.com/chantier/backend/internal/application/project"
	"github.com/chantier/backend/internal/infrastructure/persistence"
	"github.com/chantier/backend/internal/interfaces/http/dto"
	"github.com/chantier/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRenderer struct {
	err error
}

func (r *stubRenderer) RenderString(_ context.Context, _, _ string, data any) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	doc := data.(*invoicingapp.DocumentData)
	return fmt.Sprintf("<html><body>%s %s</body></html>", doc.Number, doc.TotalAmount), nil
}

type stubPDF struct{}

func (stubPDF) ConvertHTML(_ context.Context, html string) ([]byte, error) {
	return append([]byte("%PDF-"), html...), nil
}

type memoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memoryStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = data
	return nil
}

func (s *memoryStore) GenerateDownloadURL(_ context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	return "https://files.example.com/" + key, time.Now().Add(expiresIn), nil
}

type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	store    *memoryStore
	renderer *stubRenderer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(persistence.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	templateRepo := persistence.NewGormTemplateRepository(db)
	sequenceRepo := persistence.NewGormSequenceRepository(db, time.Second)

	env := &testEnv{
		db:       db,
		store:    &memoryStore{files: map[string][]byte{}},
		renderer: &stubRenderer{},
	}

	invoiceService := invoicingapp.NewInvoiceService(invoiceRepo, templateRepo, sequenceRepo, nil)
	templateService := invoicingapp.NewTemplateService(templateRepo, nil)
	documentService := invoicingapp.NewDocumentService(invoiceRepo, templateRepo, env.renderer, stubPDF{}, env.store, "EUR", time.Hour, nil)
	financialService := projectapp.NewFinancialService(
		persistence.NewGormProjectRepository(db),
		persistence.NewGormExpenseRepository(db),
		persistence.NewGormPaymentRepository(db),
		persistence.NewGormLedgerReader(db),
		nil,
		nil,
	)

	invoices := NewInvoiceHandler(invoiceService, documentService)
	templates := NewTemplateHandler(templateService)
	projects := NewProjectHandler(financialService)

	r := gin.New()
	r.Use(middleware.RequestID())
	v1 := r.Group("/api/v1")
	v1.POST("/invoices", invoices.Create)
	v1.GET("/invoices", invoices.List)
	v1.GET("/invoices/:id", invoices.GetByID)
	v1.PUT("/invoices/:id", invoices.UpdateDetails)
	v1.PUT("/invoices/:id/items", invoices.UpdateItems)
	v1.POST("/invoices/:id/transitions", invoices.Transition)
	v1.POST("/invoices/:id/document", invoices.GenerateDocument)
	v1.GET("/invoices/:id/document", invoices.GetDocument)
	v1.POST("/invoice-templates", templates.Create)
	v1.GET("/invoice-templates", templates.List)
	v1.GET("/invoice-templates/:id", templates.GetByID)
	v1.PUT("/invoice-templates/:id", templates.Update)
	v1.POST("/invoice-templates/:id/default", templates.SetDefault)
	v1.POST("/invoice-templates/:id/deactivate", templates.Deactivate)
	v1.POST("/projects", projects.Create)
	v1.GET("/projects/:id/financials", projects.GetFinancials)
	v1.POST("/projects/:id/expenses", projects.RecordExpense)
	v1.POST("/projects/:id/expenses/import", projects.ImportExpenses)
	v1.POST("/projects/:id/payments", projects.RecordPayment)
	v1.PATCH("/payments/:id/status", projects.UpdatePaymentStatus)
	env.router = r
	return env
}

// do sends a JSON request and decodes the envelope
func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// doRaw sends a non-JSON body and decodes the envelope
func (e *testEnv) doRaw(t *testing.T, method, path, contentType string, body io.Reader) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// data re-decodes the envelope's data into out
func data(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func errCode(resp dto.Response) string {
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}

// seedDefaults creates an active default template for both invoice types
func (e *testEnv) seedDefaults(t *testing.T) map[string]string {
	t.Helper()
	ids := map[string]string{}
	for _, typ := range []string{"quote", "bill"} {
		w, resp := e.do(t, http.MethodPost, "/api/v1/invoice-templates", map[string]any{
			"name":       "Default " + typ,
			"type":       typ,
			"file_type":  "pdf",
			"is_default": true,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var tpl invoicingapp.TemplateResponse
		data(t, resp, &tpl)
		ids[typ] = tpl.ID.String()
	}
	return ids
}

var errRenderBoom = errors.New("boom")
