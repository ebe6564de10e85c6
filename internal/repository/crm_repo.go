package repository

import (
	"context"
	"strings"

	"voucherpro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CRMFilter narrows a master-data listing to one tenant.
type CRMFilter struct {
	CompanyID uuid.UUID
	Search    string
	Types     []string // accounts only
	Page      int
	Limit     int
}

// CRMRepository stores vendors, staff and accounts. Name lookups match exactly.
type CRMRepository interface {
	CreateVendor(ctx context.Context, vendor *model.Vendor) error
	UpdateVendor(ctx context.Context, vendor *model.Vendor) error
	DeleteVendor(ctx context.Context, id uuid.UUID) error
	FindVendorByID(ctx context.Context, id uuid.UUID) (*model.Vendor, error)
	FindVendorByName(ctx context.Context, companyID uuid.UUID, name string) (*model.Vendor, error)
	ListVendors(ctx context.Context, filter CRMFilter) ([]model.Vendor, int64, error)
	VendorNames(ctx context.Context, companyID uuid.UUID) ([]string, error)

	CreateStaff(ctx context.Context, staff *model.Staff) error
	UpdateStaff(ctx context.Context, staff *model.Staff) error
	DeleteStaff(ctx context.Context, id uuid.UUID) error
	FindStaffByID(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	ListStaff(ctx context.Context, filter CRMFilter) ([]model.Staff, int64, error)
	StaffExists(ctx context.Context, companyID uuid.UUID, name string) (bool, error)

	CreateAccount(ctx context.Context, account *model.Account) error
	UpdateAccount(ctx context.Context, account *model.Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	FindAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	ListAccounts(ctx context.Context, filter CRMFilter) ([]model.Account, int64, error)
	AccountExists(ctx context.Context, companyID uuid.UUID, name string, types []string) (bool, error)
	AccountNames(ctx context.Context, companyID uuid.UUID, types []string) ([]string, error)
}

type crmRepository struct {
	db *gorm.DB
}

func NewCRMRepository(db *gorm.DB) CRMRepository {
	return &crmRepository{db: db}
}

// searchScope matches a case-insensitive substring on the given columns.
// LOWER(..) LIKE keeps the query portable across PostgreSQL and SQLite.
func searchScope(search string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		search = strings.TrimSpace(search)
		if search == "" {
			return db
		}
		pattern := "%" + strings.ToLower(search) + "%"
		clauses := make([]string, 0, len(columns))
		args := make([]interface{}, 0, len(columns))
		for _, col := range columns {
			clauses = append(clauses, "LOWER("+col+") LIKE ?")
			args = append(args, pattern)
		}
		return db.Where(strings.Join(clauses, " OR "), args...)
	}
}

func typesScope(types []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(types) == 0 {
			return db
		}
		return db.Where("type IN ?", types)
	}
}

// --- Vendors ---

func (r *crmRepository) CreateVendor(ctx context.Context, vendor *model.Vendor) error {
	return GetDB(ctx, r.db).Create(vendor).Error
}

func (r *crmRepository) UpdateVendor(ctx context.Context, vendor *model.Vendor) error {
	return GetDB(ctx, r.db).Save(vendor).Error
}

func (r *crmRepository) DeleteVendor(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Vendor{}).Error
}

func (r *crmRepository) FindVendorByID(ctx context.Context, id uuid.UUID) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := GetDB(ctx, r.db).First(&vendor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *crmRepository) FindVendorByName(ctx context.Context, companyID uuid.UUID, name string) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := GetDB(ctx, r.db).First(&vendor, "company_id = ? AND name = ?", companyID, name).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *crmRepository) ListVendors(ctx context.Context, filter CRMFilter) ([]model.Vendor, int64, error) {
	var vendors []model.Vendor
	var total int64

	db := GetDB(ctx, r.db)
	scopes := []func(*gorm.DB) *gorm.DB{searchScope(filter.Search, "name", "contact_person", "email", "phone")}

	if err := db.Model(&model.Vendor{}).Where("company_id = ?", filter.CompanyID).Scopes(scopes...).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Where("company_id = ?", filter.CompanyID).Scopes(scopes...).
		Order("name ASC").
		Offset(offsetOf(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&vendors).Error; err != nil {
		return nil, 0, err
	}
	return vendors, total, nil
}

func (r *crmRepository) VendorNames(ctx context.Context, companyID uuid.UUID) ([]string, error) {
	var names []string
	err := GetDB(ctx, r.db).Model(&model.Vendor{}).
		Where("company_id = ?", companyID).
		Order("name ASC").
		Pluck("name", &names).Error
	return names, err
}

// --- Staff ---

func (r *crmRepository) CreateStaff(ctx context.Context, staff *model.Staff) error {
	return GetDB(ctx, r.db).Create(staff).Error
}

func (r *crmRepository) UpdateStaff(ctx context.Context, staff *model.Staff) error {
	return GetDB(ctx, r.db).Save(staff).Error
}

func (r *crmRepository) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Staff{}).Error
}

func (r *crmRepository) FindStaffByID(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var staff model.Staff
	if err := GetDB(ctx, r.db).First(&staff, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *crmRepository) ListStaff(ctx context.Context, filter CRMFilter) ([]model.Staff, int64, error) {
	var staff []model.Staff
	var total int64

	db := GetDB(ctx, r.db)
	scopes := []func(*gorm.DB) *gorm.DB{searchScope(filter.Search, "name", "email", "department")}

	if err := db.Model(&model.Staff{}).Where("company_id = ?", filter.CompanyID).Scopes(scopes...).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Where("company_id = ?", filter.CompanyID).Scopes(scopes...).
		Order("name ASC").
		Offset(offsetOf(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&staff).Error; err != nil {
		return nil, 0, err
	}
	return staff, total, nil
}

func (r *crmRepository) StaffExists(ctx context.Context, companyID uuid.UUID, name string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Staff{}).
		Where("company_id = ? AND name = ?", companyID, name).
		Count(&count).Error
	return count > 0, err
}

// --- Accounts ---

func (r *crmRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	return GetDB(ctx, r.db).Create(account).Error
}

func (r *crmRepository) UpdateAccount(ctx context.Context, account *model.Account) error {
	return GetDB(ctx, r.db).Save(account).Error
}

func (r *crmRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Account{}).Error
}

func (r *crmRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var account model.Account
	if err := GetDB(ctx, r.db).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *crmRepository) ListAccounts(ctx context.Context, filter CRMFilter) ([]model.Account, int64, error) {
	var accounts []model.Account
	var total int64

	db := GetDB(ctx, r.db)
	scopes := []func(*gorm.DB) *gorm.DB{
		searchScope(filter.Search, "name", "code"),
		typesScope(filter.Types),
	}

	if err := db.Model(&model.Account{}).Where("company_id = ?", filter.CompanyID).Scopes(scopes...).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Where("company_id = ?", filter.CompanyID).Scopes(scopes...).
		Order("code ASC").
		Offset(offsetOf(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (r *crmRepository) AccountExists(ctx context.Context, companyID uuid.UUID, name string, types []string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Account{}).
		Where("company_id = ? AND name = ?", companyID, name).
		Scopes(typesScope(types)).
		Count(&count).Error
	return count > 0, err
}

func (r *crmRepository) AccountNames(ctx context.Context, companyID uuid.UUID, types []string) ([]string, error) {
	var names []string
	err := GetDB(ctx, r.db).Model(&model.Account{}).
		Where("company_id = ?", companyID).
		Scopes(typesScope(types)).
		Order("name ASC").
		Pluck("name", &names).Error
	return names, err
}
