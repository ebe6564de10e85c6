package repository

import (
	"context"
	"time"

	"voucherpro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) ([]uuid.UUID, error)
	ActiveIDs(ctx context.Context, userID uuid.UUID, now time.Time) ([]uuid.UUID, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return GetDB(ctx, r.db).Create(session).Error
}

func (r *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	var session model.Session
	if err := GetDB(ctx, r.db).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error
}

// RevokeAllForUser revokes every live session of a user and returns their ids.
func (r *sessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	db := GetDB(ctx, r.db)

	var ids []uuid.UUID
	if err := db.Model(&model.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := db.Model(&model.Session{}).Where("id IN ?", ids).Update("revoked_at", at).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *sessionRepository) ActiveIDs(ctx context.Context, userID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.Session{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Where("expires_at < ?", before).Delete(&model.Session{})
	return res.RowsAffected, res.Error
}
