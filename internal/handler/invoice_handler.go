package handler

import (
	"net/http"
	"strings"

	"voucherpro/internal/middleware"
	"voucherpro/internal/model"
	"voucherpro/internal/service"
	"voucherpro/pkg/pagination"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	manage := middleware.RequirePermission(model.PermManageInvoices)

	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", manage, h.CreateInvoice)
		invoices.GET("", h.ListInvoices)
		invoices.GET("/suggestions", h.Suggestions)
		invoices.GET("/:id", h.GetInvoice)
		invoices.GET("/:id/attachment", h.GetAttachment)
		invoices.PUT("/:id", manage, h.UpdateInvoice)
		invoices.DELETE("/:id", manage, h.DeleteInvoice)
	}
}

// CreateInvoice records a vendor invoice
// @Summary      Create invoice
// @Description  Records an invoice after checking its vendor and accounts against master data. Send JSON, or multipart with a "payload" JSON field and an optional "file".
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json,mpfd
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Create Invoice Payload"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	attachment, ok := bindWithAttachment(c, &req)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), req, attachment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated list of invoices
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        vendor  query     string  false  "Filter by vendor"
// @Param        search  query     string  false  "Invoice number or summary contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.InvoiceResponse}
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.InvoiceListFilter{
		Vendor: strings.TrimSpace(c.Query("vendor")),
		Search: strings.TrimSpace(c.Query("search")),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, invoices, params, total))
}

// Suggestions returns the pick lists for the invoice form
// @Summary      Invoice form suggestions
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.InvoiceSuggestions}
// @Router       /api/invoices/suggestions [get]
func (h *InvoiceHandler) Suggestions(c *gin.Context) {
	suggestions, err := h.invoiceService.Suggestions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, suggestions))
}

// GetInvoice retrieves one invoice
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// GetAttachment downloads the file stored with an invoice
// @Summary      Download invoice attachment
// @Tags         invoices
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/attachment [get]
func (h *InvoiceHandler) GetAttachment(c *gin.Context) {
	attachment, err := h.invoiceService.GetInvoiceAttachment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, "", attachment.FileName, attachment.Data)
}

// UpdateInvoice is reserved; invoices are immutable for now
// @Summary      Update invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Invoice ID"
// @Param        payload  body      service.UpdateInvoiceRequest  true  "Update Invoice Payload"
// @Failure      501      {object}  response.Response
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req service.UpdateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.UpdateInvoice(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DeleteInvoice is reserved; invoices are immutable for now
// @Summary      Delete invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Failure      501  {object}  response.Response
// @Router       /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Invoice deleted"}))
}
