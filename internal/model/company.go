package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is a tenant. Every other row carries its ID as company_id.
type Company struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Code           string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // lower-case login code
	RCNumber       string    `gorm:"type:varchar(50)" json:"rc_number"`
	TIN            string    `gorm:"type:varchar(50)" json:"tin"`
	Address        string    `gorm:"type:text" json:"address"`
	AuthorizerName string    `gorm:"type:varchar(255)" json:"authorizer_name"`
	ApproverName   string    `gorm:"type:varchar(255)" json:"approver_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// ensureID assigns a fresh uuid when the caller has not set one.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
