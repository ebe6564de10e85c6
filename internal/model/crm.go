package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account type enum constants
const (
	AccountTypeAsset     = "Asset"
	AccountTypeLiability = "Liability"
	AccountTypeEquity    = "Equity"
	AccountTypeIncome    = "Income"
	AccountTypeExpense   = "Expense"
)

var AccountTypes = []string{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeIncome,
	AccountTypeExpense,
}

// Account types accepted for the payable and expense/asset slots of an invoice.
var (
	PayableAccountTypes      = []string{AccountTypeLiability, AccountTypeEquity}
	ExpenseAssetAccountTypes = []string{AccountTypeExpense, AccountTypeAsset}
)

func ValidAccountType(t string) bool {
	for _, v := range AccountTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Vendor is a payee. Vouchers and invoices reference vendors by name.
type Vendor struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_vendors_company_name" json:"company_id"`
	Name          string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_vendors_company_name" json:"name"`
	ContactPerson string    `gorm:"type:varchar(255)" json:"contact_person"`
	Email         string    `gorm:"type:varchar(255)" json:"email"`
	Phone         string    `gorm:"type:varchar(50)" json:"phone"` // E.164
	BankName      string    `gorm:"type:varchar(255)" json:"bank_name"`
	BankAccount   string    `gorm:"type:varchar(100)" json:"bank_account"`
	Address       string    `gorm:"type:text" json:"address"`
	Notes         string    `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// Staff are the people who request vouchers.
type Staff struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_staff_company_name" json:"company_id"`
	Name       string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_staff_company_name" json:"name"`
	Email      string    `gorm:"type:varchar(255)" json:"email"`
	Phone      string    `gorm:"type:varchar(50)" json:"phone"`
	Position   string    `gorm:"type:varchar(100)" json:"position"`
	Department string    `gorm:"type:varchar(100)" json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Staff) TableName() string {
	return "staff"
}

func (s *Staff) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Account is a chart-of-accounts entry.
type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_accounts_company_code;uniqueIndex:idx_accounts_company_name" json:"company_id"`
	Code      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_accounts_company_code" json:"code"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_accounts_company_name" json:"name"`
	Type      string    `gorm:"type:varchar(20);not null;index" json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
