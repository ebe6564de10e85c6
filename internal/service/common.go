package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/internal/reqctx"
	"voucherpro/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// requireIdentity returns the caller, or an authorization error for anonymous contexts.
func requireIdentity(ctx context.Context) (reqctx.Identity, error) {
	id, ok := reqctx.FromContext(ctx)
	if !ok || id.CompanyID == uuid.Nil {
		return reqctx.Identity{}, apperror.Unauthorized("authentication required")
	}
	return id, nil
}

// requirePermission returns the caller when they hold perm.
func requirePermission(ctx context.Context, perm string) (reqctx.Identity, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return id, err
	}
	if !id.Has(perm) {
		return id, apperror.Forbidden("missing permission '%s'", perm)
	}
	return id, nil
}

// checkTenant rejects access to a row owned by another company.
func checkTenant(id reqctx.Identity, owner uuid.UUID, what string) error {
	if owner != id.CompanyID {
		return apperror.Forbidden("%s belongs to another company", what)
	}
	return nil
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid %s id", what)
	}
	return id, nil
}

// lookupError maps a repository lookup failure.
func lookupError(err error, what string) error {
	if repository.IsNotFound(err) {
		return apperror.NotFound("%s not found", what)
	}
	return apperror.Wrap(err, "failed to load "+what)
}

// isUniqueViolation recognises duplicate-key errors from PostgreSQL and SQLite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// Attachment is an uploaded file stored alongside a voucher or invoice.
type Attachment struct {
	FileName string
	Data     []byte
}

func parseDate(raw, what string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperror.Validation("invalid %s '%s': expected YYYY-MM-DD", what, raw)
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func normalizeCurrency(raw string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return model.DefaultCurrency, nil
	}
	if len(c) != 3 {
		return "", apperror.Validation("invalid currency '%s'", raw)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", apperror.Validation("invalid currency '%s'", raw)
		}
	}
	return c, nil
}
