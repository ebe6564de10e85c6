package handler

import (
	"net/http"
	"strings"

	"voucherpro/internal/service"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReportHandler exposes the read-only finance reports
type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	{
		reports.GET("/vouchers", h.VoucherSummaries)
		reports.GET("/invoices", h.InvoiceSummaries)
		reports.GET("/invoices/:number/allocation", h.InvoiceAllocation)
		reports.GET("/vendors", h.VendorPositions)
		reports.GET("/accounts", h.AccountActivity)
		reports.GET("/export", h.Export)
	}
}

func reportFilter(c *gin.Context) service.ReportFilter {
	return service.ReportFilter{
		Status:      strings.TrimSpace(c.Query("status")),
		Vendor:      strings.TrimSpace(c.Query("vendor")),
		AccountName: strings.TrimSpace(c.Query("account")),
	}
}

// VoucherSummaries returns per-voucher line sums
// @Summary      Voucher summary report
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by voucher status"
// @Param        vendor  query     string  false  "Filter by vendor"
// @Success      200     {object}  response.Response{data=[]model.VoucherSummary}
// @Router       /api/reports/vouchers [get]
func (h *ReportHandler) VoucherSummaries(c *gin.Context) {
	rows, err := h.reportService.VoucherSummaries(c.Request.Context(), reportFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// InvoiceSummaries returns per-invoice totals
// @Summary      Invoice summary report
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        vendor  query     string  false  "Filter by vendor"
// @Success      200     {object}  response.Response{data=[]model.InvoiceSummary}
// @Router       /api/reports/invoices [get]
func (h *ReportHandler) InvoiceSummaries(c *gin.Context) {
	rows, err := h.reportService.InvoiceSummaries(c.Request.Context(), reportFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// InvoiceAllocation compares an invoice with what vouchers referencing it have paid
// @Summary      Invoice allocation
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        number  path      string  true  "Invoice number"
// @Success      200     {object}  response.Response{data=model.InvoiceAllocation}
// @Failure      404     {object}  response.Response
// @Router       /api/reports/invoices/{number}/allocation [get]
func (h *ReportHandler) InvoiceAllocation(c *gin.Context) {
	allocation, err := h.reportService.InvoiceAllocation(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, allocation))
}

// VendorPositions returns invoiced minus vouchered per vendor
// @Summary      Vendor net position
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.VendorPosition}
// @Router       /api/reports/vendors [get]
func (h *ReportHandler) VendorPositions(c *gin.Context) {
	rows, err := h.reportService.VendorPositions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// AccountActivity lists voucher lines and invoices posted to accounts
// @Summary      Account activity
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        account  query     string  false  "Filter by account name"
// @Success      200      {object}  response.Response{data=[]model.AccountActivity}
// @Router       /api/reports/accounts [get]
func (h *ReportHandler) AccountActivity(c *gin.Context) {
	rows, err := h.reportService.AccountActivity(c.Request.Context(), reportFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// Export downloads one report, or all of them, as an Excel workbook
// @Summary      Export report
// @Tags         reports
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        report   query     string  false  "vouchers, invoices, vendors, accounts or all (default)"
// @Param        status   query     string  false  "Filter by voucher status"
// @Param        vendor   query     string  false  "Filter by vendor"
// @Param        account  query     string  false  "Filter by account name"
// @Success      200      {file}    file
// @Failure      400      {object}  response.Response
// @Router       /api/reports/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	data, fileName, err := h.reportService.Export(c.Request.Context(), c.Query("report"), reportFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, xlsxContentType, fileName, data)
}
