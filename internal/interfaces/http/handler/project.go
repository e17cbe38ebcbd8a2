package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	projectapp "github.com/chantier/backend/internal/application/project"
	"github.com/chantier/backend/internal/infrastructure/csvimport"
	"github.com/chantier/backend/internal/interfaces/http/dto"
	"github.com/chantier/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// expenseImportField is the multipart field carrying the CSV file
const expenseImportField = "file"

// ProjectHandler handles project ledger endpoints
type ProjectHandler struct {
	BaseHandler
	financialService *projectapp.FinancialService
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(financialService *projectapp.FinancialService) *ProjectHandler {
	return &ProjectHandler{financialService: financialService}
}

// Create godoc
// @Summary      Register project
// @Description  Register a project with the ledger. Admin only.
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        request body projectapp.CreateProjectRequest true "Project"
// @Success      201 {object} dto.Response{data=projectapp.ProjectResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req projectapp.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	p, err := h.financialService.CreateProject(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, p)
}

// GetFinancials godoc
// @Summary      Get project financials
// @Description  Budget, spent amount, payments received, remaining amounts and budget progress
// @Tags         projects
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Success      200 {object} dto.Response{data=projectapp.SnapshotResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /projects/{id}/financials [get]
func (h *ProjectHandler) GetFinancials(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	snapshot, err := h.financialService.GetSnapshot(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// RecordExpense godoc
// @Summary      Record expense
// @Description  Book an expense against the project. Admin only.
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Param        request body projectapp.RecordExpenseRequest true "Expense"
// @Success      201 {object} dto.Response{data=projectapp.ExpenseResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /projects/{id}/expenses [post]
func (h *ProjectHandler) RecordExpense(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req projectapp.RecordExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	expense, err := h.financialService.RecordExpense(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, expense)
}

// ImportExpenses godoc
// @Summary      Import expenses from CSV
// @Description  Book every row of a CSV file (date, amount, description), all or nothing. Admin only.
// @Tags         projects
// @Accept       multipart/form-data
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Param        file formData file false "CSV file; a raw text/csv body also works"
// @Success      201 {object} dto.Response{data=projectapp.ExpenseImportResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /projects/{id}/expenses/import [post]
func (h *ProjectHandler) ImportExpenses(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	body, closeBody, err := expenseUpload(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	defer closeBody()

	file, err := csvimport.ReadExpenses(body)
	if err != nil {
		h.csvFileError(c, err)
		return
	}
	if file.Errors.HasErrors() {
		c.JSON(http.StatusUnprocessableEntity, dto.NewValidationErrorResponse(
			fmt.Sprintf("Expense file has %d invalid row(s)", file.Errors.TotalCount()),
			middleware.GetRequestID(c),
			rowErrorDetails(file.Errors.Errors()),
		))
		return
	}

	reqs := make([]projectapp.RecordExpenseRequest, 0, len(file.Rows))
	for _, row := range file.Rows {
		reqs = append(reqs, projectapp.RecordExpenseRequest{
			Amount:      row.Amount,
			Date:        row.Date,
			Description: row.Description,
		})
	}

	result, err := h.financialService.ImportExpenses(c.Request.Context(), id, reqs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

func expenseUpload(c *gin.Context) (io.Reader, func(), error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile(expenseImportField)
		if err != nil {
			return nil, nil, fmt.Errorf("missing %q file field", expenseImportField)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot read uploaded file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	}
	return c.Request.Body, func() {}, nil
}

func (h *ProjectHandler) csvFileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, csvimport.ErrTooManyRows):
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, err.Error())
	case errors.Is(err, csvimport.ErrEmptyFile),
		errors.Is(err, csvimport.ErrInvalidEncoding),
		errors.Is(err, csvimport.ErrMissingHeader),
		errors.Is(err, csvimport.ErrNoDataRows):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
	default:
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Malformed CSV: "+err.Error())
	}
}

func rowErrorDetails(rowErrs []csvimport.RowError) []dto.ValidationDetail {
	details := make([]dto.ValidationDetail, 0, len(rowErrs))
	for _, re := range rowErrs {
		field := fmt.Sprintf("row %d", re.Row)
		if re.Column != "" {
			field += ": " + re.Column
		}
		d := dto.ValidationDetail{Field: field, Message: re.Message, Tag: re.Code}
		if re.Value != "" {
			d.Value = re.Value
		}
		details = append(details, d)
	}
	return details
}

// RecordPayment godoc
// @Summary      Record client payment
// @Description  Book a client payment against the project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Param        request body projectapp.RecordPaymentRequest true "Payment"
// @Success      201 {object} dto.Response{data=projectapp.PaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /projects/{id}/payments [post]
func (h *ProjectHandler) RecordPayment(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req projectapp.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	payment, err := h.financialService.RecordPayment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, payment)
}

// UpdatePaymentStatus godoc
// @Summary      Change payment status
// @Description  Set a payment to payé, partiel, en_attente or annulé. Admin only.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body projectapp.UpdatePaymentStatusRequest true "New status"
// @Success      200 {object} dto.Response{data=projectapp.PaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments/{id}/status [patch]
func (h *ProjectHandler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req projectapp.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	payment, err := h.financialService.UpdatePaymentStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}
