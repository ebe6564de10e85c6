package repository

import (
	"context"

	"voucherpro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceFilter struct {
	CompanyID uuid.UUID
	Vendor    string
	Search    string
	Page      int
	Limit     int
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByNumber(ctx context.Context, companyID uuid.UUID, number string) (*model.Invoice, error)
	NumberExists(ctx context.Context, companyID uuid.UUID, number string) (bool, error)
	List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	Numbers(ctx context.Context, companyID uuid.UUID) ([]string, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByNumber(ctx context.Context, companyID uuid.UUID, number string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "company_id = ? AND invoice_number = ?", companyID, number).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) NumberExists(ctx context.Context, companyID uuid.UUID, number string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("company_id = ? AND invoice_number = ?", companyID, number).
		Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("company_id = ?", filter.CompanyID)
		if filter.Vendor != "" {
			db = db.Where("vendor = ?", filter.Vendor)
		}
		return db.Scopes(searchScope(filter.Search, "invoice_number", "vendor_invoice_number", "summary"))
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Invoice{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Omit("file_data").Scopes(scope).
		Order("created_at DESC").
		Offset(offsetOf(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *invoiceRepository) Numbers(ctx context.Context, companyID uuid.UUID) ([]string, error) {
	var numbers []string
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("company_id = ?", companyID).
		Order("invoice_number ASC").
		Pluck("invoice_number", &numbers).Error
	return numbers, err
}
