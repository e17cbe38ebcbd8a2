package router

import (
	"github.com/chantier/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the ledger's HTTP handlers
type Handlers struct {
	Invoices  *handler.InvoiceHandler
	Templates *handler.TemplateHandler
	Projects  *handler.ProjectHandler
	// Maintenance is optional; its routes are admin only
	Maintenance *handler.MaintenanceHandler
}

// LedgerRoutes returns the route groups of the ledger API. admin guards the
// routes that change templates, projects, expenses and payment statuses, and
// the maintenance group.
func LedgerRoutes(h Handlers, admin gin.HandlerFunc) []RouteRegistrar {
	invoices := NewResource("invoices", "/invoices").
		POST("", h.Invoices.Create).
		GET("", h.Invoices.List).
		GET("/:id", h.Invoices.GetByID).
		PUT("/:id", h.Invoices.UpdateDetails).
		PUT("/:id/items", h.Invoices.UpdateItems).
		POST("/:id/transitions", h.Invoices.Transition).
		POST("/:id/document", h.Invoices.GenerateDocument).
		GET("/:id/document", h.Invoices.GetDocument)

	templates := NewResource("invoice-templates", "/invoice-templates").
		POST("", admin, h.Templates.Create).
		GET("", h.Templates.List).
		GET("/:id", h.Templates.GetByID).
		PUT("/:id", admin, h.Templates.Update).
		POST("/:id/default", admin, h.Templates.SetDefault).
		POST("/:id/deactivate", admin, h.Templates.Deactivate)

	projects := NewResource("projects", "/projects").
		POST("", admin, h.Projects.Create).
		GET("/:id/financials", h.Projects.GetFinancials).
		POST("/:id/expenses", admin, h.Projects.RecordExpense).
		POST("/:id/expenses/import", admin, h.Projects.ImportExpenses).
		POST("/:id/payments", h.Projects.RecordPayment)

	payments := NewResource("payments", "/payments").
		PATCH("/:id/status", admin, h.Projects.UpdatePaymentStatus)

	registrars := []RouteRegistrar{invoices, templates, projects, payments}
	if h.Maintenance != nil {
		maintenance := NewResource("maintenance", "/maintenance").
			Use(admin).
			GET("/overdue-sweep", h.Maintenance.OverdueSweepStatus).
			POST("/overdue-sweep", h.Maintenance.TriggerOverdueSweep)
		registrars = append(registrars, maintenance)
	}
	return registrars
}
