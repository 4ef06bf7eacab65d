package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/auth"
	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// ContextKeyIdentity is the gin context key for the authenticated staff identity.
const ContextKeyIdentity = "identity"

// Authenticator validates an access token and loads its account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*store.Account, error)
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StaffAuth creates a middleware that only admits staff access tokens.
func StaffAuth(authn Authenticator, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			logger.Debug().Msg("missing access token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing access token"})
			return
		}

		account, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		identity := core.AccountIdentity(account)
		if !identity.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "staff only"})
			return
		}

		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
