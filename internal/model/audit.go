package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionRegisterCompany = "REGISTER_COMPANY"
	ActionUpdateCompany   = "UPDATE_COMPANY"
	ActionLogin           = "LOGIN"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionLogout          = "LOGOUT"

	ActionCreateUser        = "CREATE_USER"
	ActionUpdatePermissions = "UPDATE_PERMISSIONS"
	ActionDeactivateUser    = "DEACTIVATE_USER"
	ActionActivateUser      = "ACTIVATE_USER"
	ActionUnlockUser        = "UNLOCK_USER"
	ActionChangePassword    = "CHANGE_PASSWORD"

	ActionCreateVendor  = "CREATE_VENDOR"
	ActionUpdateVendor  = "UPDATE_VENDOR"
	ActionDeleteVendor  = "DELETE_VENDOR"
	ActionCreateStaff   = "CREATE_STAFF"
	ActionUpdateStaff   = "UPDATE_STAFF"
	ActionDeleteStaff   = "DELETE_STAFF"
	ActionCreateAccount = "CREATE_ACCOUNT"
	ActionUpdateAccount = "UPDATE_ACCOUNT"
	ActionDeleteAccount = "DELETE_ACCOUNT"

	ActionCreateInvoice = "CREATE_INVOICE"

	// Voucher workflow actions
	ActionCreateVoucher       = "CREATE_VOUCHER"
	ActionUpdateVoucher       = "UPDATE_VOUCHER"
	ActionDeleteVoucher       = "DELETE_VOUCHER"
	ActionChangeVoucherStatus = "CHANGE_VOUCHER_STATUS"
)

// Audited entity names
const (
	EntityCompany = "company"
	EntityUser    = "user"
	EntityVendor  = "vendor"
	EntityStaff   = "staff"
	EntityAccount = "account"
	EntityInvoice = "invoice"
	EntityVoucher = "voucher"
)

// AuditLog tracks who did what to which entity. Rows are never updated or deleted.
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Username  string     `gorm:"type:varchar(100)" json:"username"`
	Action    string     `gorm:"type:varchar(50);not null;index" json:"action"`
	Entity    string     `gorm:"type:varchar(50);not null" json:"entity"`
	EntityRef string     `gorm:"type:varchar(100);index" json:"entity_ref"` // id or business number
	Details   string     `gorm:"type:text" json:"details"`                  // JSON payload of the action
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
