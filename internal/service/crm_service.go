package service

import (
	"context"
	"strings"

	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/pkg/apperror"
	"voucherpro/pkg/validation"

	"github.com/google/uuid"
)

// --- DTOs ---

type VendorRequest struct {
	Name          string `json:"name" binding:"required,max=255"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" binding:"omitempty,email"`
	Phone         string `json:"phone"`
	BankName      string `json:"bank_name"`
	BankAccount   string `json:"bank_account"`
	Address       string `json:"address"`
	Notes         string `json:"notes"`
}

type StaffRequest struct {
	Name       string `json:"name" binding:"required,max=255"`
	Email      string `json:"email" binding:"omitempty,email"`
	Phone      string `json:"phone"`
	Position   string `json:"position"`
	Department string `json:"department"`
}

type AccountRequest struct {
	Code string `json:"code" binding:"required,max=50"`
	Name string `json:"name" binding:"required,max=255"`
	Type string `json:"type" binding:"required,accounttype"`
}

type CRMListFilter struct {
	Search string
	Types  []string
	Page   int
	Limit  int
}

// --- Interface ---

// CRMService manages vendors, staff and accounts, and validates references to them.
type CRMService interface {
	CreateVendor(ctx context.Context, req VendorRequest) (*model.Vendor, error)
	UpdateVendor(ctx context.Context, id string, req VendorRequest) (*model.Vendor, error)
	DeleteVendor(ctx context.Context, id string) error
	ListVendors(ctx context.Context, filter CRMListFilter) ([]model.Vendor, int64, error)

	CreateStaff(ctx context.Context, req StaffRequest) (*model.Staff, error)
	UpdateStaff(ctx context.Context, id string, req StaffRequest) (*model.Staff, error)
	DeleteStaff(ctx context.Context, id string) error
	ListStaff(ctx context.Context, filter CRMListFilter) ([]model.Staff, int64, error)

	CreateAccount(ctx context.Context, req AccountRequest) (*model.Account, error)
	UpdateAccount(ctx context.Context, id string, req AccountRequest) (*model.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, filter CRMListFilter) ([]model.Account, int64, error)

	// ValidateInvoiceRefs checks an invoice's vendor and optional accounts against the tenant's master data.
	ValidateInvoiceRefs(ctx context.Context, companyID uuid.UUID, vendor, payableAccount, expenseAccount string) error
	// ValidateVoucherRefs checks a voucher's vendor, requester and line accounts.
	ValidateVoucherRefs(ctx context.Context, companyID uuid.UUID, vendor, requester string, accounts []string) error
}

type crmService struct {
	txManager     repository.TransactionManager
	repo          repository.CRMRepository
	audit         AuditService
	defaultRegion string
}

func NewCRMService(txManager repository.TransactionManager, repo repository.CRMRepository, audit AuditService, defaultRegion string) CRMService {
	if defaultRegion == "" {
		defaultRegion = "NG"
	}
	return &crmService{txManager: txManager, repo: repo, audit: audit, defaultRegion: defaultRegion}
}

// --- Gateway ---

func (s *crmService) ValidateInvoiceRefs(ctx context.Context, companyID uuid.UUID, vendor, payableAccount, expenseAccount string) error {
	if err := s.requireVendor(ctx, companyID, vendor); err != nil {
		return err
	}
	if err := s.optionalAccount(ctx, companyID, payableAccount, model.PayableAccountTypes, "payable account"); err != nil {
		return err
	}
	return s.optionalAccount(ctx, companyID, expenseAccount, model.ExpenseAssetAccountTypes, "expense/asset account")
}

func (s *crmService) ValidateVoucherRefs(ctx context.Context, companyID uuid.UUID, vendor, requester string, accounts []string) error {
	if err := s.requireVendor(ctx, companyID, vendor); err != nil {
		return err
	}

	requester = strings.TrimSpace(requester)
	if requester == "" {
		return apperror.Validation("requester is required")
	}
	ok, err := s.repo.StaffExists(ctx, companyID, requester)
	if err != nil {
		return apperror.Wrap(err, "failed to validate requester")
	}
	if !ok {
		return apperror.Validation("requester '%s' does not exist in staff", requester)
	}

	seen := make(map[string]bool, len(accounts))
	for _, name := range accounts {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if err := s.optionalAccount(ctx, companyID, name, nil, "account"); err != nil {
			return err
		}
	}
	return nil
}

func (s *crmService) requireVendor(ctx context.Context, companyID uuid.UUID, vendor string) error {
	vendor = strings.TrimSpace(vendor)
	if vendor == "" {
		return apperror.Validation("vendor is required")
	}
	if _, err := s.repo.FindVendorByName(ctx, companyID, vendor); err != nil {
		if repository.IsNotFound(err) {
			return apperror.Validation("vendor '%s' does not exist", vendor)
		}
		return apperror.Wrap(err, "failed to validate vendor")
	}
	return nil
}

func (s *crmService) optionalAccount(ctx context.Context, companyID uuid.UUID, name string, types []string, what string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	ok, err := s.repo.AccountExists(ctx, companyID, name, types)
	if err != nil {
		return apperror.Wrap(err, "failed to validate "+what)
	}
	if !ok {
		if len(types) > 0 {
			return apperror.Validation("%s '%s' does not exist or is not of type %s", what, name, strings.Join(types, "/"))
		}
		return apperror.Validation("%s '%s' does not exist", what, name)
	}
	return nil
}

// --- Name uniqueness ---
// Names are unique per company. The unique indexes back this up under concurrency.

func (s *crmService) vendorNameFree(ctx context.Context, companyID uuid.UUID, name string, self uuid.UUID) error {
	existing, err := s.repo.FindVendorByName(ctx, companyID, name)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return apperror.Wrap(err, "failed to check vendor name")
	}
	if existing.ID == self {
		return nil
	}
	return apperror.Conflict("vendor '%s' already exists", name)
}

// staffNameFree checks name unless it equals current, the record's unchanged name.
func (s *crmService) staffNameFree(ctx context.Context, companyID uuid.UUID, name, current string) error {
	if name == current {
		return nil
	}
	exists, err := s.repo.StaffExists(ctx, companyID, name)
	if err != nil {
		return apperror.Wrap(err, "failed to check staff name")
	}
	if exists {
		return apperror.Conflict("staff member '%s' already exists", name)
	}
	return nil
}

func (s *crmService) accountNameFree(ctx context.Context, companyID uuid.UUID, name, current string) error {
	if name == current {
		return nil
	}
	exists, err := s.repo.AccountExists(ctx, companyID, name, nil)
	if err != nil {
		return apperror.Wrap(err, "failed to check account name")
	}
	if exists {
		return apperror.Conflict("account '%s' already exists", name)
	}
	return nil
}

// --- Vendors ---

func (s *crmService) normalizeVendor(req VendorRequest, v *model.Vendor) error {
	phone, err := validation.NormalizePhone(req.Phone, s.defaultRegion)
	if err != nil {
		return apperror.Validation("invalid vendor phone: %v", err)
	}
	v.Name = strings.TrimSpace(req.Name)
	v.ContactPerson = strings.TrimSpace(req.ContactPerson)
	v.Email = strings.TrimSpace(req.Email)
	v.Phone = phone
	v.BankName = strings.TrimSpace(req.BankName)
	v.BankAccount = strings.TrimSpace(req.BankAccount)
	v.Address = strings.TrimSpace(req.Address)
	v.Notes = strings.TrimSpace(req.Notes)
	if v.Name == "" {
		return apperror.Validation("vendor name is required")
	}
	return nil
}

func (s *crmService) CreateVendor(ctx context.Context, req VendorRequest) (*model.Vendor, error) {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return nil, err
	}
	vendor := &model.Vendor{CompanyID: id.CompanyID}
	if err := s.normalizeVendor(req, vendor); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if dupErr := s.vendorNameFree(txCtx, id.CompanyID, vendor.Name, uuid.Nil); dupErr != nil {
			return dupErr
		}
		if createErr := s.repo.CreateVendor(txCtx, vendor); createErr != nil {
			if isUniqueViolation(createErr) {
				return apperror.Conflict("vendor '%s' already exists", vendor.Name)
			}
			return apperror.Wrap(createErr, "failed to create vendor")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionCreateVendor, model.EntityVendor, vendor.ID.String(), map[string]interface{}{"name": vendor.Name}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

func (s *crmService) UpdateVendor(ctx context.Context, rawID string, req VendorRequest) (*model.Vendor, error) {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return nil, err
	}
	vendorID, err := parseID(rawID, "vendor")
	if err != nil {
		return nil, err
	}

	var vendor *model.Vendor
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		if vendor, findErr = s.repo.FindVendorByID(txCtx, vendorID); findErr != nil {
			return lookupError(findErr, "vendor")
		}
		if tenantErr := checkTenant(id, vendor.CompanyID, "vendor"); tenantErr != nil {
			return tenantErr
		}
		before := vendor.Name
		if normErr := s.normalizeVendor(req, vendor); normErr != nil {
			return normErr
		}
		if dupErr := s.vendorNameFree(txCtx, id.CompanyID, vendor.Name, vendor.ID); dupErr != nil {
			return dupErr
		}
		if updateErr := s.repo.UpdateVendor(txCtx, vendor); updateErr != nil {
			if isUniqueViolation(updateErr) {
				return apperror.Conflict("vendor '%s' already exists", vendor.Name)
			}
			return apperror.Wrap(updateErr, "failed to update vendor")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionUpdateVendor, model.EntityVendor, vendor.ID.String(), map[string]interface{}{"before": before, "name": vendor.Name}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

func (s *crmService) DeleteVendor(ctx context.Context, rawID string) error {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return err
	}
	vendorID, err := parseID(rawID, "vendor")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		vendor, findErr := s.repo.FindVendorByID(txCtx, vendorID)
		if findErr != nil {
			return lookupError(findErr, "vendor")
		}
		if tenantErr := checkTenant(id, vendor.CompanyID, "vendor"); tenantErr != nil {
			return tenantErr
		}
		if delErr := s.repo.DeleteVendor(txCtx, vendor.ID); delErr != nil {
			return apperror.Wrap(delErr, "failed to delete vendor")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionDeleteVendor, model.EntityVendor, vendor.ID.String(), map[string]interface{}{"name": vendor.Name}))
		return nil
	})
}

func (s *crmService) ListVendors(ctx context.Context, filter CRMListFilter) ([]model.Vendor, int64, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(filter.Page, filter.Limit)
	vendors, total, err := s.repo.ListVendors(ctx, repository.CRMFilter{CompanyID: id.CompanyID, Search: filter.Search, Page: page, Limit: limit})
	if err != nil {
		return nil, 0, apperror.Wrap(err, "failed to list vendors")
	}
	return vendors, total, nil
}

// --- Staff ---

func (s *crmService) normalizeStaff(req StaffRequest, st *model.Staff) error {
	phone, err := validation.NormalizePhone(req.Phone, s.defaultRegion)
	if err != nil {
		return apperror.Validation("invalid staff phone: %v", err)
	}
	st.Name = strings.TrimSpace(req.Name)
	st.Email = strings.TrimSpace(req.Email)
	st.Phone = phone
	st.Position = strings.TrimSpace(req.Position)
	st.Department = strings.TrimSpace(req.Department)
	if st.Name == "" {
		return apperror.Validation("staff name is required")
	}
	return nil
}

func (s *crmService) CreateStaff(ctx context.Context, req StaffRequest) (*model.Staff, error) {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return nil, err
	}
	staff := &model.Staff{CompanyID: id.CompanyID}
	if err := s.normalizeStaff(req, staff); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if dupErr := s.staffNameFree(txCtx, id.CompanyID, staff.Name, ""); dupErr != nil {
			return dupErr
		}
		if createErr := s.repo.CreateStaff(txCtx, staff); createErr != nil {
			if isUniqueViolation(createErr) {
				return apperror.Conflict("staff member '%s' already exists", staff.Name)
			}
			return apperror.Wrap(createErr, "failed to create staff member")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionCreateStaff, model.EntityStaff, staff.ID.String(), map[string]interface{}{"name": staff.Name}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (s *crmService) UpdateStaff(ctx context.Context, rawID string, req StaffRequest) (*model.Staff, error) {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return nil, err
	}
	staffID, err := parseID(rawID, "staff")
	if err != nil {
		return nil, err
	}

	var staff *model.Staff
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		if staff, findErr = s.repo.FindStaffByID(txCtx, staffID); findErr != nil {
			return lookupError(findErr, "staff member")
		}
		if tenantErr := checkTenant(id, staff.CompanyID, "staff member"); tenantErr != nil {
			return tenantErr
		}
		before := staff.Name
		if normErr := s.normalizeStaff(req, staff); normErr != nil {
			return normErr
		}
		if dupErr := s.staffNameFree(txCtx, id.CompanyID, staff.Name, before); dupErr != nil {
			return dupErr
		}
		if updateErr := s.repo.UpdateStaff(txCtx, staff); updateErr != nil {
			if isUniqueViolation(updateErr) {
				return apperror.Conflict("staff member '%s' already exists", staff.Name)
			}
			return apperror.Wrap(updateErr, "failed to update staff member")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionUpdateStaff, model.EntityStaff, staff.ID.String(), map[string]interface{}{"before": before, "name": staff.Name}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (s *crmService) DeleteStaff(ctx context.Context, rawID string) error {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return err
	}
	staffID, err := parseID(rawID, "staff")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		staff, findErr := s.repo.FindStaffByID(txCtx, staffID)
		if findErr != nil {
			return lookupError(findErr, "staff member")
		}
		if tenantErr := checkTenant(id, staff.CompanyID, "staff member"); tenantErr != nil {
			return tenantErr
		}
		if delErr := s.repo.DeleteStaff(txCtx, staff.ID); delErr != nil {
			return apperror.Wrap(delErr, "failed to delete staff member")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionDeleteStaff, model.EntityStaff, staff.ID.String(), map[string]interface{}{"name": staff.Name}))
		return nil
	})
}

func (s *crmService) ListStaff(ctx context.Context, filter CRMListFilter) ([]model.Staff, int64, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(filter.Page, filter.Limit)
	staff, total, err := s.repo.ListStaff(ctx, repository.CRMFilter{CompanyID: id.CompanyID, Search: filter.Search, Page: page, Limit: limit})
	if err != nil {
		return nil, 0, apperror.Wrap(err, "failed to list staff")
	}
	return staff, total, nil
}

// --- Accounts ---

func normalizeAccount(req AccountRequest, a *model.Account) error {
	a.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	a.Name = strings.TrimSpace(req.Name)
	a.Type = strings.TrimSpace(req.Type)
	if a.Code == "" || a.Name == "" {
		return apperror.Validation("account code and name are required")
	}
	if !model.ValidAccountType(a.Type) {
		return apperror.Validation("invalid account type '%s'", req.Type)
	}
	return nil
}

func (s *crmService) CreateAccount(ctx context.Context, req AccountRequest) (*model.Account, error) {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return nil, err
	}
	account := &model.Account{CompanyID: id.CompanyID}
	if err := normalizeAccount(req, account); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if dupErr := s.accountNameFree(txCtx, id.CompanyID, account.Name, ""); dupErr != nil {
			return dupErr
		}
		if createErr := s.repo.CreateAccount(txCtx, account); createErr != nil {
			if isUniqueViolation(createErr) {
				return apperror.Conflict("account code '%s' or name '%s' already exists", account.Code, account.Name)
			}
			return apperror.Wrap(createErr, "failed to create account")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionCreateAccount, model.EntityAccount, account.ID.String(), map[string]interface{}{
			"code": account.Code, "name": account.Name, "type": account.Type,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *crmService) UpdateAccount(ctx context.Context, rawID string, req AccountRequest) (*model.Account, error) {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return nil, err
	}
	accountID, err := parseID(rawID, "account")
	if err != nil {
		return nil, err
	}

	var account *model.Account
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		if account, findErr = s.repo.FindAccountByID(txCtx, accountID); findErr != nil {
			return lookupError(findErr, "account")
		}
		if tenantErr := checkTenant(id, account.CompanyID, "account"); tenantErr != nil {
			return tenantErr
		}
		before := map[string]interface{}{"code": account.Code, "name": account.Name, "type": account.Type}
		if normErr := normalizeAccount(req, account); normErr != nil {
			return normErr
		}
		if dupErr := s.accountNameFree(txCtx, id.CompanyID, account.Name, before["name"].(string)); dupErr != nil {
			return dupErr
		}
		if updateErr := s.repo.UpdateAccount(txCtx, account); updateErr != nil {
			if isUniqueViolation(updateErr) {
				return apperror.Conflict("account code '%s' or name '%s' already exists", account.Code, account.Name)
			}
			return apperror.Wrap(updateErr, "failed to update account")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionUpdateAccount, model.EntityAccount, account.ID.String(), map[string]interface{}{
			"before": before, "code": account.Code, "name": account.Name, "type": account.Type,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *crmService) DeleteAccount(ctx context.Context, rawID string) error {
	id, err := requirePermission(ctx, model.PermManageCRM)
	if err != nil {
		return err
	}
	accountID, err := parseID(rawID, "account")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		account, findErr := s.repo.FindAccountByID(txCtx, accountID)
		if findErr != nil {
			return lookupError(findErr, "account")
		}
		if tenantErr := checkTenant(id, account.CompanyID, "account"); tenantErr != nil {
			return tenantErr
		}
		if delErr := s.repo.DeleteAccount(txCtx, account.ID); delErr != nil {
			return apperror.Wrap(delErr, "failed to delete account")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionDeleteAccount, model.EntityAccount, account.ID.String(), map[string]interface{}{"code": account.Code, "name": account.Name}))
		return nil
	})
}

func (s *crmService) ListAccounts(ctx context.Context, filter CRMListFilter) ([]model.Account, int64, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, 0, err
	}
	for _, t := range filter.Types {
		if !model.ValidAccountType(t) {
			return nil, 0, apperror.Validation("invalid account type '%s'", t)
		}
	}
	page, limit := normalizePage(filter.Page, filter.Limit)
	accounts, total, err := s.repo.ListAccounts(ctx, repository.CRMFilter{CompanyID: id.CompanyID, Search: filter.Search, Types: filter.Types, Page: page, Limit: limit})
	if err != nil {
		return nil, 0, apperror.Wrap(err, "failed to list accounts")
	}
	return accounts, total, nil
}

