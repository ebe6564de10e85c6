package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User belongs to exactly one company. Users are deactivated, never deleted.
type User struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_users_company_username" json:"company_id"`
	Username          string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_users_company_username" json:"username"`
	PasswordHash      string     `gorm:"type:varchar(255);not null" json:"-"`
	Role              string     `gorm:"type:varchar(20);not null" json:"role"` // admin, user
	CanCreateVoucher  bool       `gorm:"not null" json:"can_create_voucher"`
	CanApproveVoucher bool       `gorm:"not null" json:"can_approve_voucher"`
	CanManageUsers    bool       `gorm:"not null" json:"can_manage_users"`
	CanManageCRM      bool       `gorm:"column:can_manage_crm;not null" json:"can_manage_crm"`
	CanManageInvoices bool       `gorm:"not null" json:"can_manage_invoices"`
	IsActive          bool       `gorm:"not null" json:"is_active"`
	FailedAttempts    int        `gorm:"not null" json:"failed_attempts"`
	LockedUntil       *time.Time `json:"locked_until"`
	LastLoginAt       *time.Time `json:"last_login_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// IsLocked reports whether the account may not log in at now.
// An inactive account is always locked; otherwise the lock holds while locked_until is strictly after now.
func (u *User) IsLocked(now time.Time) bool {
	if !u.IsActive {
		return true
	}
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Permissions lists the permission codes the user holds. Admins hold all of them.
func (u *User) Permissions() []string {
	if u.IsAdmin() {
		return append([]string(nil), AllPermissions...)
	}
	perms := make([]string, 0, len(AllPermissions))
	if u.CanCreateVoucher {
		perms = append(perms, PermCreateVoucher)
	}
	if u.CanApproveVoucher {
		perms = append(perms, PermApproveVoucher)
	}
	if u.CanManageUsers {
		perms = append(perms, PermManageUsers)
	}
	if u.CanManageCRM {
		perms = append(perms, PermManageCRM)
	}
	if u.CanManageInvoices {
		perms = append(perms, PermManageInvoices)
	}
	return perms
}


// Session backs an issued bearer token so it can be revoked before it expires.
type Session struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User       `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
	UserAgent string     `gorm:"type:varchar(255)" json:"user_agent"`
	IP        string     `gorm:"type:varchar(64)" json:"ip"`
	CreatedAt time.Time  `json:"created_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
