package database

import (
	"fmt"

	"voucherpro/internal/logger"
	"voucherpro/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection opens the PostgreSQL pool through GORM and migrates the schema.
func NewConnection(dsn string, log *zap.Logger, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLogger(log, logLevel),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the application uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Company{},
		&model.User{},
		&model.Session{},
		&model.Vendor{},
		&model.Staff{},
		&model.Account{},
		&model.Invoice{},
		&model.Voucher{},
		&model.VoucherLine{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}
