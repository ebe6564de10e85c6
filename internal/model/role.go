package model

// Roles a user can hold inside a company.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Permission codes checked by the HTTP layer and the services.
const (
	PermCreateVoucher  = "vouchers.create"
	PermApproveVoucher = "vouchers.approve"
	PermManageUsers    = "users.manage"
	PermManageCRM      = "crm.manage"
	PermManageInvoices = "invoices.manage"
)

var AllPermissions = []string{
	PermCreateVoucher,
	PermApproveVoucher,
	PermManageUsers,
	PermManageCRM,
	PermManageInvoices,
}

// PermissionFlags is the set of grants stored on a user row.
type PermissionFlags struct {
	CreateVoucher  bool `json:"can_create_voucher"`
	ApproveVoucher bool `json:"can_approve_voucher"`
	ManageUsers    bool `json:"can_manage_users"`
	ManageCRM      bool `json:"can_manage_crm"`
	ManageInvoices bool `json:"can_manage_invoices"`
}

// Apply copies the flags onto u.
func (f PermissionFlags) Apply(u *User) {
	u.CanCreateVoucher = f.CreateVoucher
	u.CanApproveVoucher = f.ApproveVoucher
	u.CanManageUsers = f.ManageUsers
	u.CanManageCRM = f.ManageCRM
	u.CanManageInvoices = f.ManageInvoices
}

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}
