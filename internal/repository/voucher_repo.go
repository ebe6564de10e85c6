package repository

import (
	"context"
	"fmt"

	"voucherpro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VoucherFilter struct {
	CompanyID uuid.UUID
	Status    string
	Vendor    string
	Search    string
	Page      int
	Limit     int
}

type VoucherRepository interface {
	Create(ctx context.Context, voucher *model.Voucher) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Voucher, error)
	List(ctx context.Context, filter VoucherFilter) ([]model.Voucher, int64, error)
	ListLines(ctx context.Context, voucherID uuid.UUID) ([]model.VoucherLine, error)
	UpdateHeader(ctx context.Context, voucher *model.Voucher) error
	ReplaceLines(ctx context.Context, voucher *model.Voucher, lines []model.VoucherLine) error
	UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus string, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	NumberExists(ctx context.Context, companyID uuid.UUID, number string) (bool, error)
	LastNumberWithPrefix(ctx context.Context, companyID uuid.UUID, prefix string) (string, error)
	LockNumbering(ctx context.Context, companyID uuid.UUID) error
}

type voucherRepository struct {
	db *gorm.DB
}

func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

// Create inserts the header and its lines together.
func (r *voucherRepository) Create(ctx context.Context, voucher *model.Voucher) error {
	return GetDB(ctx, r.db).Create(voucher).Error
}

func (r *voucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Voucher, error) {
	var voucher model.Voucher
	err := GetDB(ctx, r.db).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		First(&voucher, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) List(ctx context.Context, filter VoucherFilter) ([]model.Voucher, int64, error) {
	var vouchers []model.Voucher
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("company_id = ?", filter.CompanyID)
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.Vendor != "" {
			db = db.Where("vendor = ?", filter.Vendor)
		}
		return db.Scopes(searchScope(filter.Search, "voucher_number", "vendor", "requester", "invoice_ref"))
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Voucher{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Omit("file_data").Scopes(scope).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Order("created_at DESC").
		Offset(offsetOf(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&vouchers).Error; err != nil {
		return nil, 0, err
	}
	return vouchers, total, nil
}

func (r *voucherRepository) ListLines(ctx context.Context, voucherID uuid.UUID) ([]model.VoucherLine, error) {
	var lines []model.VoucherLine
	err := GetDB(ctx, r.db).Where("voucher_id = ?", voucherID).Order("line_no ASC").Find(&lines).Error
	return lines, err
}

func (r *voucherRepository) UpdateHeader(ctx context.Context, voucher *model.Voucher) error {
	return GetDB(ctx, r.db).Model(voucher).Select(
		"vendor", "requester", "invoice_ref", "currency", "bank_details", "description", "file_name", "file_data", "last_modified",
	).Updates(voucher).Error
}

// ReplaceLines drops the existing lines of voucher and inserts lines in their place.
func (r *voucherRepository) ReplaceLines(ctx context.Context, voucher *model.Voucher, lines []model.VoucherLine) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("voucher_id = ?", voucher.ID).Delete(&model.VoucherLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].VoucherID = voucher.ID
		lines[i].CompanyID = voucher.CompanyID
	}
	return db.Create(&lines).Error
}

// UpdateStatus applies fields only while the voucher is still in fromStatus.
// The returned row count is zero when a concurrent change got there first.
func (r *voucherRepository) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus string, fields map[string]interface{}) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Voucher{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *voucherRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("voucher_id = ?", id).Delete(&model.VoucherLine{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Voucher{}).Error
}

func (r *voucherRepository) NumberExists(ctx context.Context, companyID uuid.UUID, number string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Voucher{}).
		Where("company_id = ? AND voucher_number = ?", companyID, number).
		Count(&count).Error
	return count > 0, err
}

func (r *voucherRepository) LastNumberWithPrefix(ctx context.Context, companyID uuid.UUID, prefix string) (string, error) {
	var numbers []string
	err := GetDB(ctx, r.db).Model(&model.Voucher{}).
		Where("company_id = ? AND voucher_number LIKE ?", companyID, prefix+"%").
		Order("LENGTH(voucher_number) DESC, voucher_number DESC").
		Limit(1).
		Pluck("voucher_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}

// LockNumbering serialises voucher number generation per company for the rest of the transaction.
func (r *voucherRepository) LockNumbering(ctx context.Context, companyID uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if !isPostgres(db) {
		return nil
	}
	return db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", fmt.Sprintf("vouchers:%s", companyID)).Error
}
