package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voucherpro/internal/model"
	"voucherpro/internal/reqctx"
	"voucherpro/pkg/apperror"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	identities map[string]reqctx.Identity
	err        error
}

func (s stubAuth) Authenticate(ctx context.Context, token string) (reqctx.Identity, error) {
	if s.err != nil {
		return reqctx.Identity{}, s.err
	}
	id, ok := s.identities[token]
	if !ok {
		return reqctx.Identity{}, apperror.Unauthorized("invalid or expired token")
	}
	return id, nil
}

func newRouter(auth Authenticator, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireAuth(auth)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, ok := reqctx.FromContext(c.Request.Context())
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": id.Username})
	})
	r.GET("/protected", handlers...)
	return r
}

func do(r *gin.Engine, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var res response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

var clerk = reqctx.Identity{
	UserID:      uuid.New(),
	Username:    "clerk",
	CompanyID:   uuid.New(),
	Role:        model.RoleUser,
	Permissions: []string{model.PermCreateVoucher},
}

func TestRequireAuth(t *testing.T) {
	auth := stubAuth{identities: map[string]reqctx.Identity{"good": clerk}}
	r := newRouter(auth)

	t.Run("missing header", func(t *testing.T) {
		w := do(r, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", decode(t, w).Kind)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Token good") })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") })
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "clerk")
	})

	t.Run("cookie token", func(t *testing.T) {
		w := do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "good"}) })
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAuth_LockedAccount(t *testing.T) {
	r := newRouter(stubAuth{err: apperror.Locked("account is locked")})

	w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer any") })
	assert.Equal(t, http.StatusLocked, w.Code)
	res := decode(t, w)
	assert.Equal(t, "locked", res.Kind)
	assert.Equal(t, "account is locked", res.Error)
}

func TestRequireAuth_InfrastructureErrorIsHidden(t *testing.T) {
	r := newRouter(stubAuth{err: apperror.Wrap(assert.AnError, "failed to load session")})

	w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer any") })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w).Error)
}

func TestRequirePermission(t *testing.T) {
	admin := clerk
	admin.Username = "boss"
	admin.Role = model.RoleAdmin
	admin.Permissions = nil
	auth := stubAuth{identities: map[string]reqctx.Identity{"clerk": clerk, "admin": admin}}

	r := newRouter(auth, RequirePermission(model.PermApproveVoucher))

	w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer clerk") })
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, decode(t, w).Error, model.PermApproveVoucher)

	w = do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer admin") })
	assert.Equal(t, http.StatusOK, w.Code)

	r = newRouter(auth, RequirePermission(model.PermCreateVoucher))
	w = do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer clerk") })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	admin := clerk
	admin.Role = model.RoleAdmin
	auth := stubAuth{identities: map[string]reqctx.Identity{"clerk": clerk, "admin": admin}}
	r := newRouter(auth, RequireAdmin())

	assert.Equal(t, http.StatusForbidden, do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer clerk") }).Code)
	assert.Equal(t, http.StatusOK, do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer admin") }).Code)
}
