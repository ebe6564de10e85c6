package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/internal/reqctx"
	"voucherpro/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

// AuditEntry describes one audited action. Details is serialised to JSON.
type AuditEntry struct {
	CompanyID uuid.UUID
	UserID    *uuid.UUID
	Username  string
	Action    string
	Entity    string
	EntityRef string
	Details   map[string]interface{}
}

type AuditFilter struct {
	Action    string
	Entity    string
	EntityRef string
	Page      int
	Limit     int
}

type AuditLogResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Entity    string `json:"entity"`
	EntityRef string `json:"entity_ref"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

// --- Interface ---

type AuditService interface {
	// Record writes entry in the caller's transaction. A failed write is logged
	// as degraded and never fails the caller.
	Record(ctx context.Context, entry AuditEntry)
	GetAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, log *zap.Logger) AuditService {
	return &auditService{repo: repo, log: log.Named("audit")}
}

// --- Implementation ---

func (s *auditService) Record(ctx context.Context, entry AuditEntry) {
	details := ""
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			raw = []byte(fmt.Sprintf(`{"encode_error":%q}`, err.Error()))
		}
		details = string(raw)
	}

	row := &model.AuditLog{
		CompanyID: entry.CompanyID,
		UserID:    entry.UserID,
		Username:  entry.Username,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityRef: entry.EntityRef,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Log(ctx, row); err != nil {
		s.log.Warn("audit write failed, continuing degraded",
			zap.String("action", entry.Action),
			zap.String("entity", entry.Entity),
			zap.String("entity_ref", entry.EntityRef),
			zap.String("company_id", entry.CompanyID.String()),
			zap.Error(err),
		)
	}
}

func (s *auditService) GetAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLogResponse, int64, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(filter.Page, filter.Limit)

	logs, total, err := s.repo.List(ctx, repository.AuditFilter{
		CompanyID: id.CompanyID,
		Action:    filter.Action,
		Entity:    filter.Entity,
		EntityRef: filter.EntityRef,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, apperror.Wrap(err, "failed to fetch audit logs")
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		userID := ""
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		username := l.Username
		if username == "" {
			username = "System"
		}
		res = append(res, AuditLogResponse{
			ID:        l.ID.String(),
			UserID:    userID,
			Username:  username,
			Action:    l.Action,
			Entity:    l.Entity,
			EntityRef: l.EntityRef,
			Details:   l.Details,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}
	return res, total, nil
}

// auditFor fills the actor fields of an entry from the request identity.
func auditFor(id reqctx.Identity, action, entity, ref string, details map[string]interface{}) AuditEntry {
	userID := id.UserID
	return AuditEntry{
		CompanyID: id.CompanyID,
		UserID:    &userID,
		Username:  id.Username,
		Action:    action,
		Entity:    entity,
		EntityRef: ref,
		Details:   details,
	}
}
