package handler

import (
	"context"
	"net/http"

	"voucherpro/internal/middleware"
	"voucherpro/internal/model"
	"voucherpro/internal/service"
	"voucherpro/pkg/pagination"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler handles user provisioning inside a company
type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/api/users")
	users.Use(middleware.RequirePermission(model.PermManageUsers))
	{
		users.GET("", h.ListUsers)
		users.POST("", h.CreateUser)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id/permissions", h.UpdatePermissions)
		users.POST("/:id/deactivate", h.DeactivateUser)
		users.POST("/:id/activate", h.ActivateUser)
		users.POST("/:id/unlock", h.UnlockUser)
	}
}

// CreateUser adds a user to the caller's company
// @Summary      Create user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// ListUsers returns the company's users
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.UserResponse}
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := pagination.Parse(c)

	users, total, err := h.userService.ListUsers(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, users, params, total))
}

// GetUser retrieves a single user
// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// UpdatePermissions changes a user's role and permission flags
// @Summary      Update user permissions
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "User ID"
// @Param        payload  body      service.UpdatePermissionsRequest  true  "Permissions Payload"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      403      {object}  response.Response
// @Router       /api/users/{id}/permissions [put]
func (h *UserHandler) UpdatePermissions(c *gin.Context) {
	var req service.UpdatePermissionsRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdatePermissions(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeactivateUser disables a user and ends their sessions
// @Summary      Deactivate user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Router       /api/users/{id}/deactivate [post]
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	h.mutate(c, h.userService.DeactivateUser)
}

// ActivateUser re-enables a deactivated user
// @Summary      Activate user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Router       /api/users/{id}/activate [post]
func (h *UserHandler) ActivateUser(c *gin.Context) {
	h.mutate(c, h.userService.ActivateUser)
}

// UnlockUser clears a lockout
// @Summary      Unlock user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Router       /api/users/{id}/unlock [post]
func (h *UserHandler) UnlockUser(c *gin.Context) {
	h.mutate(c, h.userService.UnlockUser)
}

func (h *UserHandler) mutate(c *gin.Context, op func(ctx context.Context, id string) (*service.UserResponse, error)) {
	user, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}
