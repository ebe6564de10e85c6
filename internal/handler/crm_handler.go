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

// CRMHandler serves the vendor, staff and chart-of-accounts master data
type CRMHandler struct {
	crmService service.CRMService
}

func NewCRMHandler(crmService service.CRMService) *CRMHandler {
	return &CRMHandler{crmService: crmService}
}

func (h *CRMHandler) RegisterRoutes(router *gin.RouterGroup) {
	manage := middleware.RequirePermission(model.PermManageCRM)

	vendors := router.Group("/api/vendors")
	{
		vendors.GET("", h.ListVendors)
		vendors.POST("", manage, h.CreateVendor)
		vendors.PUT("/:id", manage, h.UpdateVendor)
		vendors.DELETE("/:id", manage, h.DeleteVendor)
	}

	staff := router.Group("/api/staff")
	{
		staff.GET("", h.ListStaff)
		staff.POST("", manage, h.CreateStaff)
		staff.PUT("/:id", manage, h.UpdateStaff)
		staff.DELETE("/:id", manage, h.DeleteStaff)
	}

	accounts := router.Group("/api/accounts")
	{
		accounts.GET("", h.ListAccounts)
		accounts.POST("", manage, h.CreateAccount)
		accounts.PUT("/:id", manage, h.UpdateAccount)
		accounts.DELETE("/:id", manage, h.DeleteAccount)
	}
}

func listFilter(c *gin.Context) (service.CRMListFilter, pagination.Params) {
	params := pagination.Parse(c)
	return service.CRMListFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Page:   params.Page,
		Limit:  params.Limit,
	}, params
}

// ListVendors returns the company's vendors
// @Summary      List vendors
// @Tags         crm
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Name contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]model.Vendor}
// @Router       /api/vendors [get]
func (h *CRMHandler) ListVendors(c *gin.Context) {
	filter, params := listFilter(c)
	vendors, total, err := h.crmService.ListVendors(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, vendors, params, total))
}

// CreateVendor adds a vendor
// @Summary      Create vendor
// @Tags         crm
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.VendorRequest  true  "Vendor Payload"
// @Success      201      {object}  response.Response{data=model.Vendor}
// @Failure      409      {object}  response.Response
// @Router       /api/vendors [post]
func (h *CRMHandler) CreateVendor(c *gin.Context) {
	var req service.VendorRequest
	if !bindJSON(c, &req) {
		return
	}
	vendor, err := h.crmService.CreateVendor(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, vendor))
}

// UpdateVendor edits a vendor
// @Summary      Update vendor
// @Tags         crm
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Vendor ID"
// @Param        payload  body      service.VendorRequest  true  "Vendor Payload"
// @Success      200      {object}  response.Response{data=model.Vendor}
// @Router       /api/vendors/{id} [put]
func (h *CRMHandler) UpdateVendor(c *gin.Context) {
	var req service.VendorRequest
	if !bindJSON(c, &req) {
		return
	}
	vendor, err := h.crmService.UpdateVendor(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vendor))
}

// DeleteVendor removes a vendor
// @Summary      Delete vendor
// @Tags         crm
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  response.Response
// @Router       /api/vendors/{id} [delete]
func (h *CRMHandler) DeleteVendor(c *gin.Context) {
	if err := h.crmService.DeleteVendor(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Vendor deleted"}))
}

// ListStaff returns the company's staff
// @Summary      List staff
// @Tags         crm
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Name contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]model.Staff}
// @Router       /api/staff [get]
func (h *CRMHandler) ListStaff(c *gin.Context) {
	filter, params := listFilter(c)
	staff, total, err := h.crmService.ListStaff(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, staff, params, total))
}

// CreateStaff adds a staff member
// @Summary      Create staff
// @Tags         crm
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.StaffRequest  true  "Staff Payload"
// @Success      201      {object}  response.Response{data=model.Staff}
// @Router       /api/staff [post]
func (h *CRMHandler) CreateStaff(c *gin.Context) {
	var req service.StaffRequest
	if !bindJSON(c, &req) {
		return
	}
	staff, err := h.crmService.CreateStaff(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, staff))
}

// UpdateStaff edits a staff member
// @Summary      Update staff
// @Tags         crm
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Staff ID"
// @Param        payload  body      service.StaffRequest  true  "Staff Payload"
// @Success      200      {object}  response.Response{data=model.Staff}
// @Router       /api/staff/{id} [put]
func (h *CRMHandler) UpdateStaff(c *gin.Context) {
	var req service.StaffRequest
	if !bindJSON(c, &req) {
		return
	}
	staff, err := h.crmService.UpdateStaff(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, staff))
}

// DeleteStaff removes a staff member
// @Summary      Delete staff
// @Tags         crm
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Staff ID"
// @Success      200  {object}  response.Response
// @Router       /api/staff/{id} [delete]
func (h *CRMHandler) DeleteStaff(c *gin.Context) {
	if err := h.crmService.DeleteStaff(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Staff deleted"}))
}

// ListAccounts returns the chart of accounts, optionally narrowed to some account types
// @Summary      List accounts
// @Tags         crm
// @Security     BearerAuth
// @Produce      json
// @Param        type    query     string  false  "Account type(s), comma separated (Asset, Liability, Equity, Income, Expense)"
// @Param        search  query     string  false  "Name or code contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]model.Account}
// @Router       /api/accounts [get]
func (h *CRMHandler) ListAccounts(c *gin.Context) {
	filter, params := listFilter(c)
	for _, raw := range c.QueryArray("type") {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, t)
			}
		}
	}

	accounts, total, err := h.crmService.ListAccounts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, accounts, params, total))
}

// CreateAccount adds an account to the chart of accounts
// @Summary      Create account
// @Tags         crm
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AccountRequest  true  "Account Payload"
// @Success      201      {object}  response.Response{data=model.Account}
// @Router       /api/accounts [post]
func (h *CRMHandler) CreateAccount(c *gin.Context) {
	var req service.AccountRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := h.crmService.CreateAccount(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, account))
}

// UpdateAccount edits an account
// @Summary      Update account
// @Tags         crm
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Account ID"
// @Param        payload  body      service.AccountRequest  true  "Account Payload"
// @Success      200      {object}  response.Response{data=model.Account}
// @Router       /api/accounts/{id} [put]
func (h *CRMHandler) UpdateAccount(c *gin.Context) {
	var req service.AccountRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := h.crmService.UpdateAccount(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, account))
}

// DeleteAccount removes an account
// @Summary      Delete account
// @Tags         crm
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  response.Response
// @Router       /api/accounts/{id} [delete]
func (h *CRMHandler) DeleteAccount(c *gin.Context) {
	if err := h.crmService.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Account deleted"}))
}
