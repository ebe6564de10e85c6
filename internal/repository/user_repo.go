package repository

import (
	"context"
	"time"

	"voucherpro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsername(ctx context.Context, companyID uuid.UUID, username string) (*model.User, error)
	List(ctx context.Context, companyID uuid.UUID, page, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	RecordFailedLogin(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error
	RecordSuccessfulLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, companyID uuid.UUID, username string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "company_id = ? AND username = ?", companyID, username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, companyID uuid.UUID, page, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Where("company_id = ?", companyID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Where("company_id = ?", companyID).
		Order("username ASC").
		Offset(offsetOf(page, limit)).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) RecordFailedLogin(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"failed_attempts": attempts,
		"locked_until":    lockedUntil,
	}).Error
}

func (r *userRepository) RecordSuccessfulLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   at,
	}).Error
}
