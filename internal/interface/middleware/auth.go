package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/domain"
	"github.com/financeai/bff/internal/identity"
)

const (
	// CtxUserIDKey holds the canonical identity for the request. Derived
	// once here; handlers must use it verbatim for every downstream call.
	CtxUserIDKey = "userID"
	// CtxUserKey holds the full identity.User.
	CtxUserKey = "user"
)

// Auth resolves the bearer token into an identity and injects it into the
// Gin context. Failures map to the error taxonomy: 401 for credential
// problems, 500 when trusted mode is missing its key set.
func Auth(resolver *identity.Resolver, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_authorization"})
			return
		}
		token := stripBearer(header)

		user, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			var authErr *domain.AuthError
			var cfgErr *domain.ConfigError
			switch {
			case errors.As(err, &authErr):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authErr.Code})
			case errors.As(err, &cfgErr):
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "jwks_not_configured"})
			default:
				logger.WithField("err", err.Error()).Warn("auth_failed")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			}
			return
		}

		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxUserKey, user)
		c.Next()
	}
}

// stripBearer removes the scheme prefix case-insensitively; a header
// without the scheme is treated as a bare token.
func stripBearer(header string) string {
	header = strings.TrimSpace(header)
	const scheme = "bearer "
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		header = header[len(scheme):]
	}
	return strings.TrimSpace(header)
}

// UserFrom returns the resolved identity stored by Auth.
func UserFrom(c *gin.Context) *identity.User {
	if v, ok := c.Get(CtxUserKey); ok {
		if u, ok := v.(*identity.User); ok {
			return u
		}
	}
	return nil
}
