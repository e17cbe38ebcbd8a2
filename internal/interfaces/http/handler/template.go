package handler

import (
	invoicingapp "github.com/chantier/backend/internal/application/invoicing"
	"github.com/gin-gonic/gin"
)

// TemplateHandler handles invoice template endpoints
type TemplateHandler struct {
	BaseHandler
	templateService *invoicingapp.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templateService *invoicingapp.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// Create godoc
// @Summary      Create invoice template
// @Description  Add a template; with is_default it replaces the previous default of its type. Admin only.
// @Tags         invoice-templates
// @Accept       json
// @Produce      json
// @Param        request body invoicingapp.CreateTemplateRequest true "Template"
// @Success      201 {object} dto.Response{data=invoicingapp.TemplateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoice-templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req invoicingapp.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	tpl, err := h.templateService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, tpl)
}

// GetByID godoc
// @Summary      Get invoice template
// @Description  Get one template including its content
// @Tags         invoice-templates
// @Produce      json
// @Param        id path string true "Template ID" format(uuid)
// @Success      200 {object} dto.Response{data=invoicingapp.TemplateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoice-templates/{id} [get]
func (h *TemplateHandler) GetByID(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	tpl, err := h.templateService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tpl)
}

// List godoc
// @Summary      List invoice templates
// @Description  List templates with pagination
// @Tags         invoice-templates
// @Produce      json
// @Param        type query string false "Invoice type" Enums(quote, bill)
// @Param        active_only query bool false "Only active templates"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]invoicingapp.TemplateResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoice-templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	var filter invoicingapp.TemplateListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	templates, total, err := h.templateService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, templates, total, filter.Page, filter.PageSize)
}

// Update godoc
// @Summary      Update invoice template
// @Description  Replace a template's fields. Admin only.
// @Tags         invoice-templates
// @Accept       json
// @Produce      json
// @Param        id path string true "Template ID" format(uuid)
// @Param        request body invoicingapp.UpdateTemplateRequest true "Template fields"
// @Success      200 {object} dto.Response{data=invoicingapp.TemplateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoice-templates/{id} [put]
func (h *TemplateHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req invoicingapp.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	tpl, err := h.templateService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tpl)
}

// SetDefault godoc
// @Summary      Set default template
// @Description  Make the template the only default of its type. Admin only.
// @Tags         invoice-templates
// @Produce      json
// @Param        id path string true "Template ID" format(uuid)
// @Success      200 {object} dto.Response{data=invoicingapp.TemplateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoice-templates/{id}/default [post]
func (h *TemplateHandler) SetDefault(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	tpl, err := h.templateService.SetDefault(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tpl)
}

// Deactivate godoc
// @Summary      Deactivate template
// @Description  Hide a non-default template from new invoices. Admin only.
// @Tags         invoice-templates
// @Produce      json
// @Param        id path string true "Template ID" format(uuid)
// @Success      200 {object} dto.Response{data=invoicingapp.TemplateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoice-templates/{id}/deactivate [post]
func (h *TemplateHandler) Deactivate(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	tpl, err := h.templateService.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tpl)
}
