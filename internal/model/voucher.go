package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VoucherStatus enum constants
const (
	VoucherDraft     = "draft"
	VoucherSubmitted = "submitted"
	VoucherApproved  = "approved"
	VoucherRejected  = "rejected"
)

// DefaultCurrency is used when a voucher is created without one.
const DefaultCurrency = "NGN"

var voucherTransitions = map[string][]string{
	VoucherDraft:     {VoucherSubmitted, VoucherRejected},
	VoucherSubmitted: {VoucherApproved, VoucherRejected},
}

func ValidVoucherStatus(status string) bool {
	switch status {
	case VoucherDraft, VoucherSubmitted, VoucherApproved, VoucherRejected:
		return true
	}
	return false
}

// CanTransition reports whether a voucher in status from may move to status to.
// Approved and rejected are terminal.
func CanTransition(from, to string) bool {
	for _, next := range voucherTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Voucher is a payment request header. Totals live on its lines.
type Voucher struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_vouchers_company_number" json:"company_id"`
	VoucherNumber string        `gorm:"type:varchar(50);not null;uniqueIndex:idx_vouchers_company_number" json:"voucher_number"`
	Vendor        string        `gorm:"type:varchar(255);not null;index" json:"vendor"`
	Requester     string        `gorm:"type:varchar(255);not null" json:"requester"`
	InvoiceRef    string        `gorm:"type:varchar(50);index" json:"invoice_ref"`
	Currency      string        `gorm:"type:varchar(3);not null" json:"currency"`
	BankDetails   string        `gorm:"type:text" json:"bank_details"`
	Description   string        `gorm:"type:text" json:"description"`
	Status        string        `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedBy     string        `gorm:"type:varchar(100)" json:"created_by"`
	ApprovedBy    *uuid.UUID    `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt    *time.Time    `json:"approved_at"`
	FileName      string        `gorm:"type:varchar(255)" json:"file_name"`
	FileData      []byte        `json:"-"`
	Lines         []VoucherLine `gorm:"foreignKey:VoucherID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	LastModified  time.Time     `gorm:"autoUpdateTime" json:"last_modified"`
}

func (v *Voucher) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// VoucherLine carries the amounts of a voucher. Derived columns come from finance.LineTotals.
type VoucherLine struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	VoucherID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"voucher_id"`
	LineNo      int             `gorm:"not null" json:"line_no"`
	Description string          `gorm:"type:text" json:"description"`
	AccountName string          `gorm:"type:varchar(255);index" json:"account_name"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	VatPercent  decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"vat_percent"`
	WhtPercent  decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"wht_percent"`
	VatValue    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"vat_value"`
	WhtValue    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"wht_value"`
	Total       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total"`
}

func (l *VoucherLine) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
