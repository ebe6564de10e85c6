package middleware

import (
	"context"
	"net/http"
	"strings"

	"voucherpro/internal/reqctx"
	"voucherpro/pkg/apperror"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenCookie is the cookie a browser client may carry the session token in.
const TokenCookie = "access_token"

// IdentityKey is the gin context key holding the reqctx.Identity of the caller.
const IdentityKey = "identity"

// Authenticator resolves a session token to the caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (reqctx.Identity, error)
}

// SetTokenCookie stores the session token as an HttpOnly cookie
func SetTokenCookie(c *gin.Context, token string, maxAge int, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(TokenCookie, token, maxAge, "/", "", secure, true)
}

// ClearTokenCookie removes the session cookie
func ClearTokenCookie(c *gin.Context, secure bool) {
	SetTokenCookie(c, "", -1, secure)
}

// bearerToken reads the token from the Authorization header, falling back to the session cookie.
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// RequireAuth validates the session token and puts the caller's identity on the request context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorKind(http.StatusUnauthorized, apperror.KindUnauthorized.String(), "Authorization is missing or malformed. Expected 'Bearer <token>'"))
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			status := apperror.HTTPStatus(err)
			c.AbortWithStatusJSON(status, response.ErrorKind(status, apperror.KindOf(err).String(), apperror.PublicMessage(err)))
			return
		}

		c.Request = c.Request.WithContext(reqctx.WithIdentity(c.Request.Context(), identity))
		c.Set(IdentityKey, identity)
		c.Set("userID", identity.UserID.String())
		c.Set("companyID", identity.CompanyID.String())
		c.Next()
	}
}

// RequirePermission rejects callers that lack any of the permission codes. Admins hold every permission.
// It must run after RequireAuth.
func RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := reqctx.FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorKind(http.StatusUnauthorized, apperror.KindUnauthorized.String(), "authentication required"))
			return
		}
		for _, required := range requiredPerms {
			if !identity.Has(required) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorKind(http.StatusForbidden, apperror.KindForbidden.String(), "Access denied: missing permission '"+required+"'"))
				return
			}
		}
		c.Next()
	}
}

// RequireAdmin only lets company admins through. It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := reqctx.FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorKind(http.StatusUnauthorized, apperror.KindUnauthorized.String(), "authentication required"))
			return
		}
		if !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorKind(http.StatusForbidden, apperror.KindForbidden.String(), "Access denied: admin only"))
			return
		}
		c.Next()
	}
}
