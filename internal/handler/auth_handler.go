package handler

import (
	"net/http"
	"time"

	"voucherpro/internal/middleware"
	"voucherpro/internal/service"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService    service.AuthService
	companyService service.CompanyService
	sessionTTL     time.Duration
	secureCookie   bool
}

func NewAuthHandler(authService service.AuthService, companyService service.CompanyService, sessionTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		companyService: companyService,
		sessionTTL:     sessionTTL,
		secureCookie:   secureCookie,
	}
}

// RegisterPublicRoutes binds the endpoints that run before a session exists
func (h *AuthHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/api/companies/register", h.RegisterCompany)
	router.POST("/api/auth/login", h.Login)
}

// RegisterRoutes binds the session and company endpoints. router must already require authentication.
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/logout", h.Logout)
		auth.GET("/me", h.Me)
		auth.POST("/change-password", h.ChangePassword)
	}

	company := router.Group("/api/company")
	{
		company.GET("", h.GetCompany)
		company.PUT("", middleware.RequireAdmin(), h.UpdateCompany)
	}
}

// RegisterCompany creates a tenant together with its first admin
// @Summary      Register company
// @Description  Creates a company and its first admin user, and signs the admin in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterCompanyRequest  true  "Registration Payload"
// @Success      201      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/companies/register [post]
func (h *AuthHandler) RegisterCompany(c *gin.Context) {
	var req service.RegisterCompanyRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.RegisterCompany(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetTokenCookie(c, res.Token, int(h.sessionTTL.Seconds()), h.secureCookie)
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Login authenticates a user of a company
// @Summary      Login
// @Description  Verifies credentials, applies the lockout policy and issues a session token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Payload"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      401      {object}  response.Response
// @Failure      423      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	client := service.ClientInfo{UserAgent: c.Request.UserAgent(), IP: c.ClientIP()}
	res, err := h.authService.Login(c.Request.Context(), req, client)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetTokenCookie(c, res.Token, int(h.sessionTTL.Seconds()), h.secureCookie)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout revokes the current session
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	middleware.ClearTokenCookie(c, h.secureCookie)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out"}))
}

// Me returns the signed-in user, their company and effective permissions
// @Summary      Current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.authService.Me(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, me))
}

// ChangePassword replaces the caller's password after verifying the old one
// @Summary      Change password
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ChangePasswordRequest  true  "Change Password Payload"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Password changed"}))
}

// GetCompany returns the caller's company profile
// @Summary      Get company
// @Tags         company
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.CompanyResponse}
// @Router       /api/company [get]
func (h *AuthHandler) GetCompany(c *gin.Context) {
	company, err := h.companyService.GetCompany(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, company))
}

// UpdateCompany edits the profile printed on vouchers
// @Summary      Update company
// @Tags         company
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.UpdateCompanyRequest  true  "Company Payload"
// @Success      200      {object}  response.Response{data=service.CompanyResponse}
// @Failure      403      {object}  response.Response
// @Router       /api/company [put]
func (h *AuthHandler) UpdateCompany(c *gin.Context) {
	var req service.UpdateCompanyRequest
	if !bindJSON(c, &req) {
		return
	}
	company, err := h.companyService.UpdateCompany(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, company))
}
