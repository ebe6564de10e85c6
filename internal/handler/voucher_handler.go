package handler

import (
	"net/http"
	"strings"

	"voucherpro/internal/document"
	"voucherpro/internal/middleware"
	"voucherpro/internal/model"
	"voucherpro/internal/service"
	"voucherpro/pkg/apperror"
	"voucherpro/pkg/pagination"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
)

type VoucherHandler struct {
	voucherService service.VoucherService
}

func NewVoucherHandler(voucherService service.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherService: voucherService}
}

func (h *VoucherHandler) RegisterRoutes(router *gin.RouterGroup) {
	create := middleware.RequirePermission(model.PermCreateVoucher)

	vouchers := router.Group("/api/vouchers")
	{
		vouchers.POST("", create, h.CreateVoucher)
		vouchers.GET("", h.ListVouchers)
		vouchers.GET("/:id", h.GetVoucher)
		vouchers.GET("/:id/lines", h.ListLines)
		vouchers.PUT("/:id", create, h.UpdateVoucher)
		vouchers.DELETE("/:id", create, h.DeleteVoucher)
		// approval authority is checked per target status by the service
		vouchers.PUT("/:id/status", h.UpdateStatus)
		vouchers.GET("/:id/pdf", h.DownloadPDF)
		vouchers.GET("/:id/attachment", h.GetAttachment)
	}
}

// CreateVoucher creates a draft payment voucher
// @Summary      Create voucher
// @Description  Creates a draft voucher with its lines. Send JSON, or multipart with a "payload" JSON field and an optional "file".
// @Tags         vouchers
// @Security     BearerAuth
// @Accept       json,mpfd
// @Produce      json
// @Param        payload  body      service.CreateVoucherRequest  true  "Create Voucher Payload"
// @Success      201      {object}  response.Response{data=service.VoucherResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/vouchers [post]
func (h *VoucherHandler) CreateVoucher(c *gin.Context) {
	var req service.CreateVoucherRequest
	attachment, ok := bindWithAttachment(c, &req)
	if !ok {
		return
	}

	voucher, err := h.voucherService.CreateVoucher(c.Request.Context(), req, attachment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, voucher))
}

// ListVouchers returns a paginated list of vouchers
// @Summary      List vouchers
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (draft, submitted, approved, rejected)"
// @Param        vendor  query     string  false  "Filter by vendor"
// @Param        search  query     string  false  "Voucher number or description contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.VoucherResponse}
// @Router       /api/vouchers [get]
func (h *VoucherHandler) ListVouchers(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.VoucherListFilter{
		Status: strings.TrimSpace(c.Query("status")),
		Vendor: strings.TrimSpace(c.Query("vendor")),
		Search: strings.TrimSpace(c.Query("search")),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	vouchers, total, err := h.voucherService.ListVouchers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, vouchers, params, total))
}

// GetVoucher retrieves a voucher with its lines
// @Summary      Get voucher
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {object}  response.Response{data=service.VoucherResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/vouchers/{id} [get]
func (h *VoucherHandler) GetVoucher(c *gin.Context) {
	voucher, err := h.voucherService.GetVoucher(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, voucher))
}

// ListLines returns the lines of a voucher
// @Summary      List voucher lines
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {object}  response.Response{data=[]service.VoucherLineResponse}
// @Router       /api/vouchers/{id}/lines [get]
func (h *VoucherHandler) ListLines(c *gin.Context) {
	lines, err := h.voucherService.ListVoucherLines(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lines))
}

// UpdateVoucher edits a draft voucher
// @Summary      Update voucher
// @Description  Edits the header of a draft voucher and, when lines are sent, replaces all of its lines.
// @Tags         vouchers
// @Security     BearerAuth
// @Accept       json,mpfd
// @Produce      json
// @Param        id       path      string                        true  "Voucher ID"
// @Param        payload  body      service.UpdateVoucherRequest  true  "Update Voucher Payload"
// @Success      200      {object}  response.Response{data=service.VoucherResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/vouchers/{id} [put]
func (h *VoucherHandler) UpdateVoucher(c *gin.Context) {
	var req service.UpdateVoucherRequest
	attachment, ok := bindWithAttachment(c, &req)
	if !ok {
		return
	}

	voucher, err := h.voucherService.UpdateVoucher(c.Request.Context(), c.Param("id"), req, attachment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, voucher))
}

// DeleteVoucher removes a draft voucher
// @Summary      Delete voucher
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/vouchers/{id} [delete]
func (h *VoucherHandler) DeleteVoucher(c *gin.Context) {
	if err := h.voucherService.DeleteVoucher(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Voucher deleted"}))
}

// UpdateStatus moves a voucher through the approval workflow
// @Summary      Change voucher status
// @Description  Allowed: draft to submitted or rejected, submitted to approved or rejected. Approving needs approver authority.
// @Tags         vouchers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                              true  "Voucher ID"
// @Param        payload  body      service.UpdateVoucherStatusRequest  true  "Status Payload"
// @Success      200      {object}  response.Response{data=service.VoucherResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/vouchers/{id}/status [put]
func (h *VoucherHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateVoucherStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	voucher, err := h.voucherService.UpdateVoucherStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, voucher))
}

// DownloadPDF renders the printable requisition form
// @Summary      Voucher PDF
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/vouchers/{id}/pdf [get]
func (h *VoucherHandler) DownloadPDF(c *gin.Context) {
	doc, err := h.voucherService.GetVoucherDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	pdf, err := document.VoucherPDF(doc.Company, doc.Voucher, doc.Voucher.Lines)
	if err != nil {
		respondError(c, apperror.Wrap(err, "failed to render voucher"))
		return
	}
	sendFile(c, "application/pdf", doc.Voucher.VoucherNumber+".pdf", pdf)
}

// GetAttachment downloads the file stored with a voucher
// @Summary      Download voucher attachment
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/vouchers/{id}/attachment [get]
func (h *VoucherHandler) GetAttachment(c *gin.Context) {
	doc, err := h.voucherService.GetVoucherDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(doc.Voucher.FileData) == 0 {
		respondError(c, apperror.NotFound("voucher has no attachment"))
		return
	}
	sendFile(c, "", doc.Voucher.FileName, doc.Voucher.FileData)
}
