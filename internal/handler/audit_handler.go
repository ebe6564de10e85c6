package handler

import (
	"net/http"
	"strings"

	"voucherpro/internal/middleware"
	"voucherpro/internal/service"
	"voucherpro/pkg/pagination"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireAdmin())
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves the company's audit trail, newest first
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action      query     string  false  "Filter by action (e.g. CREATE_VOUCHER)"
// @Param        entity      query     string  false  "Filter by entity (e.g. voucher)"
// @Param        entity_ref  query     string  false  "Filter by entity reference"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.AuditFilter{
		Action:    strings.TrimSpace(c.Query("action")),
		Entity:    strings.TrimSpace(c.Query("entity")),
		EntityRef: strings.TrimSpace(c.Query("entity_ref")),
		Page:      params.Page,
		Limit:     params.Limit,
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, logs, params, total))
}
