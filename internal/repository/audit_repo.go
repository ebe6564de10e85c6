package repository

import (
	"context"

	"voucherpro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditFilter struct {
	CompanyID uuid.UUID
	Action    string
	Entity    string
	EntityRef string
	Page      int
	Limit     int
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log writes entry inside a savepoint of the caller's transaction, so a failed
// insert can be rolled back without aborting the surrounding work.
func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("company_id = ?", filter.CompanyID)
		if filter.Action != "" {
			db = db.Where("action = ?", filter.Action)
		}
		if filter.Entity != "" {
			db = db.Where("entity = ?", filter.Entity)
		}
		if filter.EntityRef != "" {
			db = db.Where("entity_ref = ?", filter.EntityRef)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AuditLog{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Scopes(scope).
		Order("created_at desc").
		Offset(offsetOf(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
