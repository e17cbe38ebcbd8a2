package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type documentFixture struct {
	invoices  *MockInvoiceRepository
	templates *MockTemplateRepository
	renderer  *MockRenderer
	pdf       *MockPDFConverter
	store     *MockDocumentStore
	service   *DocumentService
}

func newDocumentFixture() *documentFixture {
	f := &documentFixture{
		invoices:  new(MockInvoiceRepository),
		templates: new(MockTemplateRepository),
		renderer:  new(MockRenderer),
		pdf:       new(MockPDFConverter),
		store:     new(MockDocumentStore),
	}
	f.service = NewDocumentService(f.invoices, f.templates, f.renderer, f.pdf, f.store, "EUR", time.Hour, nil)
	return f
}

func boundDraft(t *testing.T, fileType invoicing.FileType) (*invoicing.Invoice, *invoicing.Template) {
	t.Helper()
	inv := existingDraft(t)
	tpl, err := invoicing.NewTemplate("Devis", invoicing.TypeQuote, fileType, "<h1>{{.Number}}</h1>")
	require.NoError(t, err)
	inv.TemplateID = &tpl.ID
	return inv, tpl
}

func TestDocumentService_GeneratePDF(t *testing.T) {
	f := newDocumentFixture()
	inv, tpl := boundDraft(t, invoicing.FileTypePDF)
	expires := fixedNow.Add(time.Hour)
	key := "invoices/quote/" + inv.IssueDate.Format("2006") + "/DEV-2026-00001.pdf"

	f.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.templates.On("FindByID", mock.Anything, tpl.ID).Return(tpl, nil)
	f.renderer.On("RenderString", mock.Anything, tpl.ID.String(), tpl.Content, mock.MatchedBy(func(d *DocumentData) bool {
		return d.Number == "DEV-2026-00001" && d.TotalAmount == "240.00" && d.Currency == "EUR" && len(d.Items) == 1
	})).Return("<h1>DEV-2026-00001</h1>", nil)
	f.pdf.On("ConvertHTML", mock.Anything, "<h1>DEV-2026-00001</h1>").Return([]byte("%PDF-1.7"), nil)
	f.store.On("Upload", mock.Anything, key, []byte("%PDF-1.7"), ContentTypePDF).Return(nil)
	f.invoices.On("UpdateDocumentURL", mock.Anything, inv.ID, key).Return(nil)
	f.store.On("GenerateDownloadURL", mock.Anything, key, time.Hour).Return("https://s3.local/signed", expires, nil)

	resp, err := f.service.Generate(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, key, resp.StorageKey)
	assert.Equal(t, ContentTypePDF, resp.ContentType)
	assert.Equal(t, "https://s3.local/signed", resp.DownloadURL)
	assert.Equal(t, key, inv.GeneratedDocumentURL)
	f.store.AssertExpectations(t)
}

func TestDocumentService_GenerateHTMLSkipsPDF(t *testing.T) {
	f := newDocumentFixture()
	inv, tpl := boundDraft(t, invoicing.FileTypeHTML)

	f.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.templates.On("FindByID", mock.Anything, tpl.ID).Return(tpl, nil)
	f.renderer.On("RenderString", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("<p>ok</p>", nil)
	f.store.On("Upload", mock.Anything, mock.Anything, []byte("<p>ok</p>"), ContentTypeHTML).Return(nil)
	f.invoices.On("UpdateDocumentURL", mock.Anything, inv.ID, mock.Anything).Return(nil)
	f.store.On("GenerateDownloadURL", mock.Anything, mock.Anything, time.Hour).Return("u", fixedNow, nil)

	resp, err := f.service.Generate(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeHTML, resp.ContentType)
	f.pdf.AssertNotCalled(t, "ConvertHTML", mock.Anything, mock.Anything)
}

func TestDocumentService_RenderFailure(t *testing.T) {
	f := newDocumentFixture()
	inv, tpl := boundDraft(t, invoicing.FileTypeHTML)

	f.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.templates.On("FindByID", mock.Anything, tpl.ID).Return(tpl, nil)
	f.renderer.On("RenderString", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bad template"))

	_, err := f.service.Generate(context.Background(), inv.ID)
	assert.ErrorContains(t, err, "bad template")
	f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_Get(t *testing.T) {
	f := newDocumentFixture()
	inv := existingDraft(t)
	f.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)

	_, err := f.service.Get(context.Background(), inv.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	inv.GeneratedDocumentURL = "invoices/quote/2026/DEV-2026-00001.pdf"
	f.store.On("GenerateDownloadURL", mock.Anything, inv.GeneratedDocumentURL, time.Hour).Return("signed", fixedNow, nil)
	resp, err := f.service.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ContentTypePDF, resp.ContentType)
	assert.Equal(t, "signed", resp.DownloadURL)
}
