package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is a vendor bill. The derived money columns are always recomputed from the inputs.
type Invoice struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_company_number" json:"company_id"`
	InvoiceNumber       string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_company_number" json:"invoice_number"`
	VendorInvoiceNumber string          `gorm:"type:varchar(100)" json:"vendor_invoice_number"`
	Vendor              string          `gorm:"type:varchar(255);not null;index" json:"vendor"`
	Summary             string          `gorm:"type:text" json:"summary"`
	Currency            string          `gorm:"type:varchar(3);not null" json:"currency"`
	InvoiceDate         *time.Time      `json:"invoice_date"`
	DueDate             *time.Time      `json:"due_date"`
	Terms               string          `gorm:"type:varchar(255)" json:"terms"`
	VatableAmount       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"vatable_amount"`
	NonVatableAmount    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"non_vatable_amount"`
	VatRate             decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"vat_rate"`
	WhtRate             decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"wht_rate"`
	VatAmount           decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"vat_amount"`
	WhtAmount           decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"wht_amount"`
	Subtotal            decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"subtotal"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_amount"`
	PayableAccount      string          `gorm:"type:varchar(255)" json:"payable_account"`
	ExpenseAssetAccount string          `gorm:"type:varchar(255)" json:"expense_asset_account"`
	FileName            string          `gorm:"type:varchar(255)" json:"file_name"`
	FileData            []byte          `json:"-"`
	CreatedBy           string          `gorm:"type:varchar(100)" json:"created_by"`
	CreatedAt           time.Time       `json:"created_at"`
	LastModified        time.Time       `gorm:"autoUpdateTime" json:"last_modified"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
