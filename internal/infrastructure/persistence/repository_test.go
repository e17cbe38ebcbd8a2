package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a file-backed SQLite database with every table migrated
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newNumberedDraft(t *testing.T, number string) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewDraftInvoice(invoicing.DraftParams{
		Type:     invoicing.TypeBill,
		ClientID: uuid.New(),
		TaxRate:  valueobject.MustRate("0.2"),
		Items: []invoicing.LineItemInput{
			{Description: "Gros oeuvre", Quantity: decimal.NewFromInt(10), UnitPrice: valueobject.MustMoney("50.00"), Unit: "h"},
			{Description: "Ciment", Quantity: decimal.RequireFromString("2.5"), UnitPrice: valueobject.MustMoney("94.00"), Unit: "sac"},
		},
		IssueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Reference: "CH-12",
	})
	require.NoError(t, err)
	require.NoError(t, inv.AssignNumber(number))
	return inv
}

func TestGormInvoiceRepository_CreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newNumberedDraft(t, "FAC-2026-00001")
	require.NoError(t, repo.Create(ctx, inv))

	loaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-00001", loaded.InvoiceNumber)
	assert.Equal(t, invoicing.StatusDraft, loaded.Status)
	assert.Equal(t, "735.00", loaded.Subtotal.String())
	assert.Equal(t, "147.00", loaded.TaxAmount.String())
	assert.Equal(t, "882.00", loaded.TotalAmount.String())
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "Gros oeuvre", loaded.Items[0].Description)
	assert.Equal(t, "235.00", loaded.Items[1].LineTotal.String())

	byNumber, err := repo.FindByNumber(ctx, "FAC-2026-00001")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byNumber.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_Create_DuplicateNumber(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newNumberedDraft(t, "FAC-2026-00007")))
	err := repo.Create(ctx, newNumberedDraft(t, "FAC-2026-00007"))

	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestGormInvoiceRepository_Create_RequiresNumber(t *testing.T) {
	repo := NewGormInvoiceRepository(newTestDB(t))
	inv, err := invoicing.NewDraftInvoice(invoicing.DraftParams{
		Type:     invoicing.TypeQuote,
		ClientID: uuid.New(),
		Items:    []invoicing.LineItemInput{{Description: "x", Quantity: decimal.NewFromInt(1), UnitPrice: valueobject.MustMoney("1.00")}},
	})
	require.NoError(t, err)

	err = repo.Create(context.Background(), inv)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestGormInvoiceRepository_SaveWithLock(t *testing.T) {
	t.Run("replaces items and bumps the version", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInvoiceRepository(db)
		ctx := context.Background()

		inv := newNumberedDraft(t, "FAC-2026-00002")
		require.NoError(t, repo.Create(ctx, inv))

		require.NoError(t, inv.ReplaceItems([]invoicing.LineItemInput{
			{Description: "Charpente", Quantity: decimal.NewFromInt(3), UnitPrice: valueobject.MustMoney("100.00")},
		}))
		require.NoError(t, repo.SaveWithLock(ctx, inv))
		assert.Equal(t, 2, inv.Version)

		loaded, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Items, 1)
		assert.Equal(t, "300.00", loaded.Subtotal.String())
		assert.Equal(t, "360.00", loaded.TotalAmount.String())
		assert.Equal(t, 2, loaded.Version)
	})

	t.Run("detail edits survive a reload", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInvoiceRepository(db)
		ctx := context.Background()

		inv := newNumberedDraft(t, "FAC-2026-00003")
		require.NoError(t, repo.Create(ctx, inv))

		client, site := uuid.New(), uuid.New()
		due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
		require.NoError(t, inv.UpdateDetails(invoicing.DetailsUpdate{ClientID: &client, ProjectID: &site, DueDate: &due}))
		require.NoError(t, repo.SaveWithLock(ctx, inv))

		loaded, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, client, loaded.ClientID)
		require.NotNil(t, loaded.ProjectID)
		assert.Equal(t, site, *loaded.ProjectID)
		require.NotNil(t, loaded.DueDate)
		assert.True(t, due.Equal(loaded.DueDate.UTC()))
	})

	t.Run("line totals still match after a reload", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInvoiceRepository(db)
		ctx := context.Background()

		inv := newNumberedDraft(t, "FAC-2026-00004")
		require.NoError(t, repo.Create(ctx, inv))
		require.NoError(t, inv.ReplaceItems([]invoicing.LineItemInput{
			{Description: "Joints", Quantity: decimal.RequireFromString("0.125"), UnitPrice: valueobject.MustMoney("3.00")},
			{Description: "Enduit", Quantity: decimal.RequireFromString("1.3333"), UnitPrice: valueobject.MustMoney("19.99")},
		}))
		require.NoError(t, repo.SaveWithLock(ctx, inv))

		loaded, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Items, 2)
		for _, it := range loaded.Items {
			assert.Equal(t, it.LineTotal.String(), it.UnitPrice.MulDecimal(it.Quantity).Round().String(), it.Description)
		}
		assert.Equal(t, "0.38", loaded.Items[0].LineTotal.String())
	})

	t.Run("stale version is a concurrency conflict", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInvoiceRepository(db)
		ctx := context.Background()

		inv := newNumberedDraft(t, "FAC-2026-00003")
		require.NoError(t, repo.Create(ctx, inv))

		first, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)

		require.NoError(t, repo.SaveWithLock(ctx, first))
		err = repo.SaveWithLock(ctx, second)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("non draft invoice is locked", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInvoiceRepository(db)
		ctx := context.Background()

		inv := newNumberedDraft(t, "FAC-2026-00004")
		require.NoError(t, repo.Create(ctx, inv))

		stale, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)

		require.NoError(t, inv.Apply(invoicing.EventSend, time.Now()))
		require.NoError(t, repo.UpdateStatus(ctx, inv, invoicing.StatusDraft, 1))

		err = repo.SaveWithLock(ctx, stale)
		assert.ErrorIs(t, err, invoicing.ErrInvoiceLocked)
	})
}

func TestGormInvoiceRepository_UpdateStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newNumberedDraft(t, "FAC-2026-00005")
	require.NoError(t, repo.Create(ctx, inv))

	require.NoError(t, inv.Apply(invoicing.EventSend, time.Now()))
	require.NoError(t, repo.UpdateStatus(ctx, inv, invoicing.StatusDraft, 1))
	assert.Equal(t, 2, inv.Version)

	loaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusSent, loaded.Status)
	assert.NotNil(t, loaded.SentAt)

	// a second writer still holding the draft snapshot loses
	err = repo.UpdateStatus(ctx, inv, invoicing.StatusDraft, 1)
	assert.ErrorIs(t, err, invoicing.ErrInvalidTransition)

	ghost := newNumberedDraft(t, "FAC-2026-00099")
	err = repo.UpdateStatus(ctx, ghost, invoicing.StatusDraft, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_FindAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	for _, n := range []string{"FAC-2026-00010", "FAC-2026-00011", "FAC-2026-00012"} {
		require.NoError(t, repo.Create(ctx, newNumberedDraft(t, n)))
	}

	all, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{
		Filter: shared.Filter{Page: 1, PageSize: 2, OrderBy: "invoice_number", OrderDir: "asc"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 2)
	assert.Equal(t, "FAC-2026-00010", all[0].InvoiceNumber)
	assert.Len(t, all[0].Items, 2)

	searched, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{
		Filter: shared.Filter{Search: "00012"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, searched, 1)

	none, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{Status: invoicing.StatusPaid})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestGormInvoiceRepository_FindAllDueBefore(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	pastDue := newNumberedDraft(t, "FAC-2026-00020")
	yesterday := now.AddDate(0, 0, -1)
	pastDue.DueDate = &yesterday
	notYet := newNumberedDraft(t, "FAC-2026-00021")
	nextMonth := now.AddDate(0, 1, 0)
	notYet.DueDate = &nextMonth
	noDueDate := newNumberedDraft(t, "FAC-2026-00022")
	for _, inv := range []*invoicing.Invoice{pastDue, notYet, noDueDate} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	list, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{DueBefore: &now})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "FAC-2026-00020", list[0].InvoiceNumber)
}

func TestGormInvoiceRepository_UpdateDocumentURL(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newNumberedDraft(t, "FAC-2026-00020")
	require.NoError(t, repo.Create(ctx, inv))

	require.NoError(t, repo.UpdateDocumentURL(ctx, inv.ID, "invoices/FAC-2026-00020.pdf"))
	loaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoices/FAC-2026-00020.pdf", loaded.GeneratedDocumentURL)

	assert.ErrorIs(t, repo.UpdateDocumentURL(ctx, uuid.New(), "x"), shared.ErrNotFound)
}

func TestGormSequenceRepository_Next_SQLite(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSequenceRepository(db, time.Second)
	ctx := context.Background()

	first, err := repo.Next(ctx, invoicing.TypeBill, 2026)
	require.NoError(t, err)
	second, err := repo.Next(ctx, invoicing.TypeBill, 2026)
	require.NoError(t, err)
	otherType, err := repo.Next(ctx, invoicing.TypeQuote, 2026)
	require.NoError(t, err)
	nextYear, err := repo.Next(ctx, invoicing.TypeBill, 2027)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(1), otherType)
	assert.Equal(t, int64(1), nextYear)
}

func TestGormTemplateRepository_DefaultSwitch(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTemplateRepository(db)
	ctx := context.Background()

	first, err := invoicing.NewTemplate("Facture standard", invoicing.TypeBill, invoicing.FileTypeHTML, "")
	require.NoError(t, err)
	require.NoError(t, first.MarkDefault())
	require.NoError(t, repo.Save(ctx, first))

	second, err := invoicing.NewTemplate("Facture chantier", invoicing.TypeBill, invoicing.FileTypePDF, "")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, second))

	quote, err := invoicing.NewTemplate("Devis", invoicing.TypeQuote, invoicing.FileTypeHTML, "")
	require.NoError(t, err)
	require.NoError(t, quote.MarkDefault())
	require.NoError(t, repo.Save(ctx, quote))

	def, err := repo.FindDefault(ctx, invoicing.TypeBill)
	require.NoError(t, err)
	assert.Equal(t, first.ID, def.ID)

	switched, err := repo.SetDefault(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, switched.IsDefault)
	assert.NotEmpty(t, switched.GetDomainEvents())

	def, err = repo.FindDefault(ctx, invoicing.TypeBill)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	old, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsDefault)

	// the quote default is untouched
	quoteDef, err := repo.FindDefault(ctx, invoicing.TypeQuote)
	require.NoError(t, err)
	assert.Equal(t, quote.ID, quoteDef.ID)

	// setting the current default again is a no-op
	again, err := repo.SetDefault(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, again.GetDomainEvents())

	var defaults int64
	require.NoError(t, db.Table("invoice_templates").Where("type = ? AND is_default = ?", "bill", true).Count(&defaults).Error)
	assert.Equal(t, int64(1), defaults)
}

func TestGormTemplateRepository_SetDefault_Errors(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTemplateRepository(db)
	ctx := context.Background()

	_, err := repo.SetDefault(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	inactive, err := invoicing.NewTemplate("Ancien", invoicing.TypeBill, invoicing.FileTypeHTML, "")
	require.NoError(t, err)
	require.NoError(t, inactive.Deactivate())
	require.NoError(t, repo.Save(ctx, inactive))

	_, err = repo.SetDefault(ctx, inactive.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = repo.FindDefault(ctx, invoicing.TypeBill)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormTemplateRepository_SaveVersionConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTemplateRepository(db)
	ctx := context.Background()

	tpl, err := invoicing.NewTemplate("Devis", invoicing.TypeQuote, invoicing.FileTypeHTML, "")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, tpl))

	a, err := repo.FindByID(ctx, tpl.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, tpl.ID)
	require.NoError(t, err)

	require.NoError(t, a.Update("Devis v2", invoicing.TypeQuote, invoicing.FileTypeHTML, ""))
	require.NoError(t, repo.Save(ctx, a))

	require.NoError(t, b.Update("Devis v3", invoicing.TypeQuote, invoicing.FileTypeHTML, ""))
	assert.ErrorIs(t, repo.Save(ctx, b), shared.ErrConcurrencyConflict)

	list, total, err := repo.FindAll(ctx, invoicing.TemplateFilter{Type: invoicing.TypeQuote, ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Devis v2", list[0].Name)
}

func TestGormLedgerReader_Totals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	projects := NewGormProjectRepository(db)
	expenses := NewGormExpenseRepository(db)
	payments := NewGormPaymentRepository(db)
	ledger := NewGormLedgerReader(db)

	budget := valueobject.MustMoney("10000.00")
	p, err := project.NewProject("Maison Dupont", uuid.New(), &budget)
	require.NoError(t, err)
	require.NoError(t, projects.Save(ctx, p))

	for _, amount := range []string{"1000.00", "2000.00"} {
		e, err := project.NewExpense(p.ID, valueobject.MustMoney(amount), time.Now(), "Matériaux")
		require.NoError(t, err)
		require.NoError(t, expenses.Create(ctx, e))
	}
	for _, tc := range []struct {
		amount string
		status project.PaymentStatus
	}{
		{"1200.00", project.PaymentStatusPartial},
		{"500.00", project.PaymentStatusPaid},
		{"800.00", project.PaymentStatusPending},
		{"300.00", project.PaymentStatusPaid},
	} {
		pay, err := project.NewPayment(p.ID, valueobject.MustMoney(tc.amount), tc.status, time.Now(), "")
		require.NoError(t, err)
		require.NoError(t, payments.Create(ctx, pay))
	}

	totals, err := ledger.Totals(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "3000.00", totals.Spent.String())
	assert.Equal(t, "800.00", totals.PaymentsByStatus[project.PaymentStatusPaid].String())
	assert.Equal(t, "1200.00", totals.PaymentsByStatus[project.PaymentStatusPartial].String())
	assert.Equal(t, "800.00", totals.PaymentsByStatus[project.PaymentStatusPending].String())

	empty, err := ledger.Totals(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, empty.Spent.IsZero())
	assert.Empty(t, empty.PaymentsByStatus)

	loaded, err := projects.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maison Dupont", loaded.Name)
	require.NotNil(t, loaded.EstimatedBudget)
	assert.Equal(t, "10000.00", loaded.EstimatedBudget.String())
}

func TestGormExpenseRepository_CreateBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	expenses := NewGormExpenseRepository(db)
	ledger := NewGormLedgerReader(db)
	projectID := uuid.New()

	newExpense := func(amount string) *project.Expense {
		e, err := project.NewExpense(projectID, valueobject.MustMoney(amount), time.Now(), "Import")
		require.NoError(t, err)
		return e
	}

	require.NoError(t, expenses.CreateBatch(ctx, nil))
	require.NoError(t, expenses.CreateBatch(ctx, []*project.Expense{newExpense("250.00"), newExpense("450.50")}))

	totals, err := ledger.Totals(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, "700.50", totals.Spent.String())

	dup := newExpense("99.00")
	err = expenses.CreateBatch(ctx, []*project.Expense{newExpense("1.00"), dup, dup})
	require.Error(t, err)

	totals, err = ledger.Totals(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, "700.50", totals.Spent.String(), "a failed batch leaves no rows behind")
}

func TestGormPaymentRepository_SaveWithLock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	payments := NewGormPaymentRepository(db)

	pay, err := project.NewPayment(uuid.New(), valueobject.MustMoney("400.00"), project.PaymentStatusPending, time.Now(), "VIR-1")
	require.NoError(t, err)
	require.NoError(t, payments.Create(ctx, pay))

	stale, err := payments.FindByID(ctx, pay.ID)
	require.NoError(t, err)

	require.NoError(t, pay.ChangeStatus(project.PaymentStatusPaid))
	require.NoError(t, payments.SaveWithLock(ctx, pay))

	loaded, err := payments.FindByID(ctx, pay.ID)
	require.NoError(t, err)
	assert.Equal(t, project.PaymentStatusPaid, loaded.Status)
	assert.Equal(t, pay.Version, loaded.Version)

	require.NoError(t, stale.ChangeStatus(project.PaymentStatusCancelled))
	assert.ErrorIs(t, payments.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

	_, err = payments.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
