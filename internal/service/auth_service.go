package service

import (
	"context"
	"strings"
	"time"

	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/internal/reqctx"
	"voucherpro/internal/session"
	"voucherpro/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- DTOs ---

type RegisterCompanyRequest struct {
	CompanyName    string `json:"company_name" binding:"required"`
	CompanyCode    string `json:"company_code" binding:"required,max=50"`
	RCNumber       string `json:"rc_number"`
	TIN            string `json:"tin"`
	Address        string `json:"address"`
	AuthorizerName string `json:"authorizer_name"`
	ApproverName   string `json:"approver_name"`
	AdminUsername  string `json:"admin_username" binding:"required,max=100"`
	AdminPassword  string `json:"admin_password" binding:"required,min=8"`
}

type LoginRequest struct {
	CompanyCode string `json:"company_code" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

// ClientInfo describes where a login came from.
type ClientInfo struct {
	UserAgent string
	IP        string
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
	User      UserResponse    `json:"user"`
	Company   CompanyResponse `json:"company"`
}

type MeResponse struct {
	User        UserResponse    `json:"user"`
	Company     CompanyResponse `json:"company"`
	Permissions []string        `json:"permissions"`
}

// AuthSettings tunes session issuance and the lockout policy.
type AuthSettings struct {
	Secret            []byte
	SessionTTL        time.Duration
	MaxFailedAttempts int
	LockDuration      time.Duration
	CacheTTL          time.Duration
}

// --- Interface ---

type AuthService interface {
	RegisterCompany(ctx context.Context, req RegisterCompanyRequest) (*LoginResponse, error)
	Login(ctx context.Context, req LoginRequest, client ClientInfo) (*LoginResponse, error)
	Authenticate(ctx context.Context, token string) (reqctx.Identity, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*MeResponse, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error
	// RevokeUserSessions ends every session of userID, e.g. after deactivation.
	RevokeUserSessions(ctx context.Context, userID uuid.UUID) error
	// EvictUserSessions drops cached session state so the next request reloads it.
	EvictUserSessions(ctx context.Context, userID uuid.UUID) error
}

type authService struct {
	txManager   repository.TransactionManager
	companyRepo repository.CompanyRepository
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	cache       session.Cache
	audit       AuditService
	settings    AuthSettings
	log         *zap.Logger
	now         func() time.Time
}

func NewAuthService(
	txManager repository.TransactionManager,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	cache session.Cache,
	audit AuditService,
	settings AuthSettings,
	log *zap.Logger,
) AuthService {
	if settings.MaxFailedAttempts < 1 {
		settings.MaxFailedAttempts = 5
	}
	if settings.LockDuration <= 0 {
		settings.LockDuration = 15 * time.Minute
	}
	if settings.SessionTTL <= 0 {
		settings.SessionTTL = 12 * time.Hour
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = time.Minute
	}
	return &authService{
		txManager:   txManager,
		companyRepo: companyRepo,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cache:       cache,
		audit:       audit,
		settings:    settings,
		log:         log.Named("auth"),
		now:         time.Now,
	}
}

// sessionClaims is the payload of an issued bearer token.
type sessionClaims struct {
	SessionID string `json:"sid"`
	CompanyID string `json:"cid"`
	jwt.RegisteredClaims
}

var errInvalidCredentials = apperror.Unauthorized("invalid company code, username or password")

// --- Implementation ---

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperror.Wrap(err, "failed to hash password")
	}
	return string(hashed), nil
}

func (s *authService) RegisterCompany(ctx context.Context, req RegisterCompanyRequest) (*LoginResponse, error) {
	code := normalizeKey(req.CompanyCode)
	username := normalizeKey(req.AdminUsername)
	name := strings.TrimSpace(req.CompanyName)
	if name == "" || code == "" {
		return nil, apperror.Validation("company name and company code are required")
	}
	if username == "" || req.AdminPassword == "" {
		return nil, apperror.Validation("admin username and password are required")
	}

	hashed, err := hashPassword(req.AdminPassword)
	if err != nil {
		return nil, err
	}

	company := &model.Company{
		Name:           name,
		Code:           code,
		RCNumber:       strings.TrimSpace(req.RCNumber),
		TIN:            strings.TrimSpace(req.TIN),
		Address:        strings.TrimSpace(req.Address),
		AuthorizerName: strings.TrimSpace(req.AuthorizerName),
		ApproverName:   strings.TrimSpace(req.ApproverName),
	}
	admin := &model.User{
		Username:     username,
		PasswordHash: hashed,
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	model.PermissionFlags{CreateVoucher: true, ApproveVoucher: true, ManageUsers: true, ManageCRM: true, ManageInvoices: true}.Apply(admin)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, findErr := s.companyRepo.FindByCode(txCtx, code); findErr == nil {
			return apperror.Conflict("a company with code '%s' already exists", code)
		} else if !repository.IsNotFound(findErr) {
			return apperror.Wrap(findErr, "failed to check company code")
		}

		if createErr := s.companyRepo.Create(txCtx, company); createErr != nil {
			if isUniqueViolation(createErr) {
				return apperror.Conflict("a company with code '%s' already exists", code)
			}
			return apperror.Wrap(createErr, "failed to create company")
		}

		admin.CompanyID = company.ID
		if createErr := s.userRepo.Create(txCtx, admin); createErr != nil {
			return apperror.Wrap(createErr, "failed to create admin user")
		}

		s.audit.Record(txCtx, AuditEntry{
			CompanyID: company.ID,
			UserID:    &admin.ID,
			Username:  admin.Username,
			Action:    model.ActionRegisterCompany,
			Entity:    model.EntityCompany,
			EntityRef: company.ID.String(),
			Details:   map[string]interface{}{"company_code": code, "admin": username},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.issueSession(ctx, company, admin, ClientInfo{})
}

func (s *authService) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*LoginResponse, error) {
	code := normalizeKey(req.CompanyCode)
	username := normalizeKey(req.Username)
	if code == "" || username == "" || req.Password == "" {
		return nil, errInvalidCredentials
	}

	company, err := s.companyRepo.FindByCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errInvalidCredentials
		}
		return nil, apperror.Wrap(err, "failed to load company")
	}

	user, err := s.userRepo.GetByUsername(ctx, company.ID, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errInvalidCredentials
		}
		return nil, apperror.Wrap(err, "failed to load user")
	}

	now := s.now()
	if user.IsLocked(now) {
		if !user.IsActive {
			return nil, apperror.Locked("account is deactivated")
		}
		return nil, apperror.Locked("account is locked until %s", user.LockedUntil.Format(time.RFC3339))
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		if lockErr := s.recordFailure(ctx, user, now); lockErr != nil {
			return nil, lockErr
		}
		return nil, errInvalidCredentials
	}

	if err := s.userRepo.RecordSuccessfulLogin(ctx, user.ID, now); err != nil {
		return nil, apperror.Wrap(err, "failed to record login")
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	return s.issueSession(ctx, company, user, client)
}

// recordFailure counts a failed password and locks the account once the threshold is reached.
// The counter restarts after a lock so the next window gets the full allowance.
func (s *authService) recordFailure(ctx context.Context, user *model.User, now time.Time) error {
	attempts := user.FailedAttempts + 1
	var lockedUntil *time.Time
	if attempts >= s.settings.MaxFailedAttempts {
		until := now.Add(s.settings.LockDuration)
		lockedUntil = &until
		attempts = 0
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.RecordFailedLogin(txCtx, user.ID, attempts, lockedUntil); err != nil {
			return apperror.Wrap(err, "failed to record failed login")
		}
		details := map[string]interface{}{"failed_attempts": user.FailedAttempts + 1}
		if lockedUntil != nil {
			details["locked_until"] = lockedUntil.Format(time.RFC3339)
			s.log.Warn("account locked after repeated failed logins",
				zap.String("company_id", user.CompanyID.String()),
				zap.String("username", user.Username),
			)
		}
		s.audit.Record(txCtx, AuditEntry{
			CompanyID: user.CompanyID,
			UserID:    &user.ID,
			Username:  user.Username,
			Action:    model.ActionLoginFailed,
			Entity:    model.EntityUser,
			EntityRef: user.ID.String(),
			Details:   details,
		})
		return nil
	})
}

func (s *authService) issueSession(ctx context.Context, company *model.Company, user *model.User, client ClientInfo) (*LoginResponse, error) {
	now := s.now()
	sess := &model.Session{
		CompanyID: company.ID,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.settings.SessionTTL),
		UserAgent: truncate(client.UserAgent, 255),
		IP:        truncate(client.IP, 64),
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.sessionRepo.Create(txCtx, sess); err != nil {
			return apperror.Wrap(err, "failed to create session")
		}
		s.audit.Record(txCtx, AuditEntry{
			CompanyID: company.ID,
			UserID:    &user.ID,
			Username:  user.Username,
			Action:    model.ActionLogin,
			Entity:    model.EntityUser,
			EntityRef: user.ID.String(),
			Details:   map[string]interface{}{"session_id": sess.ID.String(), "ip": client.IP},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	claims := sessionClaims{
		SessionID: sess.ID.String(),
		CompanyID: company.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.settings.Secret)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to sign token")
	}

	return &LoginResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
		User:      toUserResponse(*user),
		Company:   toCompanyResponse(*company),
	}, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (reqctx.Identity, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.settings.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return reqctx.Identity{}, apperror.Unauthorized("invalid or expired token")
	}

	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return reqctx.Identity{}, apperror.Unauthorized("invalid token claims")
	}

	now := s.now()
	if entry, cacheErr := s.cache.Get(ctx, sid); cacheErr != nil {
		s.log.Warn("session cache read failed", zap.Error(cacheErr))
	} else if entry != nil && entry.ExpiresAt.After(now) {
		return identityFromEntry(*entry), nil
	}

	sess, err := s.sessionRepo.FindByID(ctx, sid)
	if err != nil {
		if repository.IsNotFound(err) {
			return reqctx.Identity{}, apperror.Unauthorized("session not found")
		}
		return reqctx.Identity{}, apperror.Wrap(err, "failed to load session")
	}
	if !sess.Active(now) {
		return reqctx.Identity{}, apperror.Unauthorized("session has ended")
	}
	if sess.UserID.String() != claims.Subject || sess.CompanyID.String() != claims.CompanyID {
		return reqctx.Identity{}, apperror.Unauthorized("token does not match session")
	}

	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return reqctx.Identity{}, lookupError(err, "user")
	}
	if user.CompanyID != sess.CompanyID {
		return reqctx.Identity{}, apperror.Unauthorized("token does not match session")
	}
	if user.IsLocked(now) {
		return reqctx.Identity{}, apperror.Locked("account is locked")
	}

	entry := session.Entry{
		SessionID:   sess.ID,
		UserID:      user.ID,
		CompanyID:   user.CompanyID,
		Username:    user.Username,
		Role:        user.Role,
		Permissions: user.Permissions(),
		ExpiresAt:   sess.ExpiresAt,
	}
	if cacheErr := s.cache.Set(ctx, entry, s.settings.CacheTTL); cacheErr != nil {
		s.log.Warn("session cache write failed", zap.Error(cacheErr))
	}
	return identityFromEntry(entry), nil
}

func identityFromEntry(e session.Entry) reqctx.Identity {
	return reqctx.Identity{
		UserID:      e.UserID,
		Username:    e.Username,
		CompanyID:   e.CompanyID,
		Role:        e.Role,
		SessionID:   e.SessionID,
		Permissions: e.Permissions,
	}
}

func (s *authService) Logout(ctx context.Context) error {
	id, err := requireIdentity(ctx)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.sessionRepo.Revoke(txCtx, id.SessionID, s.now()); err != nil {
			return apperror.Wrap(err, "failed to revoke session")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionLogout, model.EntityUser, id.UserID.String(), nil))
		return nil
	})
	if err != nil {
		return err
	}

	if cacheErr := s.cache.Delete(ctx, id.SessionID); cacheErr != nil {
		s.log.Warn("session cache eviction failed", zap.Error(cacheErr))
	}
	return nil
}

func (s *authService) Me(ctx context.Context) (*MeResponse, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	company, err := s.companyRepo.FindByID(ctx, id.CompanyID)
	if err != nil {
		return nil, lookupError(err, "company")
	}
	return &MeResponse{
		User:        toUserResponse(*user),
		Company:     toCompanyResponse(*company),
		Permissions: user.Permissions(),
	}, nil
}

func (s *authService) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	id, err := requireIdentity(ctx)
	if err != nil {
		return err
	}
	if len(req.NewPassword) < 8 {
		return apperror.Validation("new password must be at least 8 characters")
	}

	user, err := s.userRepo.GetByID(ctx, id.UserID)
	if err != nil {
		return lookupError(err, "user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return apperror.Validation("old password is incorrect")
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Update(txCtx, user); err != nil {
			return apperror.Wrap(err, "failed to update password")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionChangePassword, model.EntityUser, user.ID.String(), nil))
		return nil
	})
}

func (s *authService) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	ids, err := s.sessionRepo.RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return apperror.Wrap(err, "failed to revoke sessions")
	}
	if cacheErr := s.cache.Delete(ctx, ids...); cacheErr != nil {
		s.log.Warn("session cache eviction failed", zap.Error(cacheErr))
	}
	return nil
}

func (s *authService) EvictUserSessions(ctx context.Context, userID uuid.UUID) error {
	ids, err := s.sessionRepo.ActiveIDs(ctx, userID, s.now())
	if err != nil {
		return apperror.Wrap(err, "failed to list sessions")
	}
	if cacheErr := s.cache.Delete(ctx, ids...); cacheErr != nil {
		s.log.Warn("session cache eviction failed", zap.Error(cacheErr))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
