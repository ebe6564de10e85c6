package service

import (
	"context"
	"time"

	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/pkg/apperror"

	"github.com/google/uuid"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username    string                `json:"username" binding:"required,max=100"`
	Password    string                `json:"password" binding:"required,min=8"`
	Role        string                `json:"role" binding:"required,oneof=admin user"`
	Permissions model.PermissionFlags `json:"permissions"`
}

type UpdatePermissionsRequest struct {
	Role        string                `json:"role" binding:"omitempty,oneof=admin user"`
	Permissions model.PermissionFlags `json:"permissions"`
}

// DTO for returning User without exposing the password hash
type UserResponse struct {
	ID             string   `json:"id"`
	CompanyID      string   `json:"company_id"`
	Username       string   `json:"username"`
	Role           string   `json:"role"`
	Permissions    []string `json:"permissions"`
	IsActive       bool     `json:"is_active"`
	IsLocked       bool     `json:"is_locked"`
	FailedAttempts int      `json:"failed_attempts"`
	LockedUntil    *string  `json:"locked_until"`
	LastLoginAt    *string  `json:"last_login_at"`
	CreatedAt      string   `json:"created_at"`
}

// sessionRevoker ends or refreshes the sessions of a user whose access changed.
type sessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID uuid.UUID) error
	EvictUserSessions(ctx context.Context, userID uuid.UUID) error
}

// UserService manages the users of the caller's company.
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdatePermissions(ctx context.Context, id string, req UpdatePermissionsRequest) (*UserResponse, error)
	DeactivateUser(ctx context.Context, id string) (*UserResponse, error)
	ActivateUser(ctx context.Context, id string) (*UserResponse, error)
	UnlockUser(ctx context.Context, id string) (*UserResponse, error)
}

type userService struct {
	txManager repository.TransactionManager
	repo      repository.UserRepository
	sessions  sessionRevoker
	audit     AuditService
}

// NewUserService returns a new instance of UserService
func NewUserService(txManager repository.TransactionManager, repo repository.UserRepository, sessions sessionRevoker, audit AuditService) UserService {
	return &userService{txManager: txManager, repo: repo, sessions: sessions, audit: audit}
}

func toUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:             u.ID.String(),
		CompanyID:      u.CompanyID.String(),
		Username:       u.Username,
		Role:           u.Role,
		Permissions:    u.Permissions(),
		IsActive:       u.IsActive,
		IsLocked:       u.IsLocked(time.Now()),
		FailedAttempts: u.FailedAttempts,
		LockedUntil:    formatTime(u.LockedUntil),
		LastLoginAt:    formatTime(u.LastLoginAt),
		CreatedAt:      u.CreatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	id, err := requirePermission(ctx, model.PermManageUsers)
	if err != nil {
		return nil, err
	}
	username := normalizeKey(req.Username)
	if username == "" {
		return nil, apperror.Validation("username is required")
	}
	if !model.ValidRole(req.Role) {
		return nil, apperror.Validation("invalid role '%s': must be admin or user", req.Role)
	}
	if req.Role == model.RoleAdmin && !id.IsAdmin() {
		return nil, apperror.Forbidden("only an admin can create another admin")
	}
	if len(req.Password) < 8 {
		return nil, apperror.Validation("password must be at least 8 characters")
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		CompanyID:    id.CompanyID,
		Username:     username,
		PasswordHash: hashed,
		Role:         req.Role,
		IsActive:     true,
	}
	req.Permissions.Apply(user)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, findErr := s.repo.GetByUsername(txCtx, id.CompanyID, username); findErr == nil {
			return apperror.Conflict("username '%s' already exists", username)
		} else if !repository.IsNotFound(findErr) {
			return apperror.Wrap(findErr, "failed to check username")
		}
		if createErr := s.repo.Create(txCtx, user); createErr != nil {
			if isUniqueViolation(createErr) {
				return apperror.Conflict("username '%s' already exists", username)
			}
			return apperror.Wrap(createErr, "failed to create user")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionCreateUser, model.EntityUser, user.ID.String(), map[string]interface{}{
			"username":    username,
			"role":        user.Role,
			"permissions": user.Permissions(),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := toUserResponse(*user)
	return &res, nil
}

func (s *userService) GetUser(ctx context.Context, rawID string) (*UserResponse, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	userID, err := parseID(rawID, "user")
	if err != nil {
		return nil, err
	}
	if userID != id.UserID && !id.Has(model.PermManageUsers) {
		return nil, apperror.Forbidden("missing permission '%s'", model.PermManageUsers)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	if err := checkTenant(id, user.CompanyID, "user"); err != nil {
		return nil, err
	}
	res := toUserResponse(*user)
	return &res, nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	id, err := requirePermission(ctx, model.PermManageUsers)
	if err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)

	users, total, err := s.repo.List(ctx, id.CompanyID, page, limit)
	if err != nil {
		return nil, 0, apperror.Wrap(err, "failed to list users")
	}

	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, toUserResponse(u))
	}
	return responses, total, nil
}

// mutateUser loads a same-tenant user, applies change and saves it with one audit entry.
func (s *userService) mutateUser(ctx context.Context, rawID, action string, change func(u *model.User) (map[string]interface{}, error)) (*model.User, error) {
	id, err := requirePermission(ctx, model.PermManageUsers)
	if err != nil {
		return nil, err
	}
	userID, err := parseID(rawID, "user")
	if err != nil {
		return nil, err
	}

	var user *model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		user, findErr = s.repo.GetByID(txCtx, userID)
		if findErr != nil {
			return lookupError(findErr, "user")
		}
		if tenantErr := checkTenant(id, user.CompanyID, "user"); tenantErr != nil {
			return tenantErr
		}
		details, changeErr := change(user)
		if changeErr != nil {
			return changeErr
		}
		if updateErr := s.repo.Update(txCtx, user); updateErr != nil {
			return apperror.Wrap(updateErr, "failed to update user")
		}
		s.audit.Record(txCtx, auditFor(id, action, model.EntityUser, user.ID.String(), details))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdatePermissions(ctx context.Context, rawID string, req UpdatePermissionsRequest) (*UserResponse, error) {
	caller, _ := requireIdentity(ctx)
	user, err := s.mutateUser(ctx, rawID, model.ActionUpdatePermissions, func(u *model.User) (map[string]interface{}, error) {
		role := u.Role
		if req.Role != "" {
			if !model.ValidRole(req.Role) {
				return nil, apperror.Validation("invalid role '%s': must be admin or user", req.Role)
			}
			role = req.Role
		}
		if role != u.Role && !caller.IsAdmin() {
			return nil, apperror.Forbidden("only an admin can change roles")
		}
		if u.ID == caller.UserID && role != model.RoleAdmin && u.Role == model.RoleAdmin {
			return nil, apperror.Validation("you cannot remove your own admin role")
		}
		before := u.Permissions()
		u.Role = role
		req.Permissions.Apply(u)
		return map[string]interface{}{"role": role, "before": before, "after": u.Permissions()}, nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.EvictUserSessions(ctx, user.ID); err != nil {
		return nil, err
	}
	res := toUserResponse(*user)
	return &res, nil
}

func (s *userService) DeactivateUser(ctx context.Context, rawID string) (*UserResponse, error) {
	caller, _ := requireIdentity(ctx)
	user, err := s.mutateUser(ctx, rawID, model.ActionDeactivateUser, func(u *model.User) (map[string]interface{}, error) {
		if u.ID == caller.UserID {
			return nil, apperror.Validation("you cannot deactivate yourself")
		}
		u.IsActive = false
		return map[string]interface{}{"username": u.Username}, nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RevokeUserSessions(ctx, user.ID); err != nil {
		return nil, err
	}
	res := toUserResponse(*user)
	return &res, nil
}

func (s *userService) ActivateUser(ctx context.Context, rawID string) (*UserResponse, error) {
	user, err := s.mutateUser(ctx, rawID, model.ActionActivateUser, func(u *model.User) (map[string]interface{}, error) {
		u.IsActive = true
		return map[string]interface{}{"username": u.Username}, nil
	})
	if err != nil {
		return nil, err
	}
	res := toUserResponse(*user)
	return &res, nil
}

func (s *userService) UnlockUser(ctx context.Context, rawID string) (*UserResponse, error) {
	user, err := s.mutateUser(ctx, rawID, model.ActionUnlockUser, func(u *model.User) (map[string]interface{}, error) {
		details := map[string]interface{}{"failed_attempts": u.FailedAttempts}
		if u.LockedUntil != nil {
			details["locked_until"] = u.LockedUntil.Format(time.RFC3339)
		}
		u.FailedAttempts = 0
		u.LockedUntil = nil
		return details, nil
	})
	if err != nil {
		return nil, err
	}
	res := toUserResponse(*user)
	return &res, nil
}

