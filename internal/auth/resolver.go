package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// AccessTokenCookie is the cookie set by the account service after login.
const AccessTokenCookie = "accessToken"

var (
	// ErrNoToken is returned when the request carries no credentials.
	ErrNoToken = errors.New("no token")
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for any other token failure.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrUnknownAccount is returned when the token names a missing account.
	ErrUnknownAccount = errors.New("unknown account")
)

// Resolver turns handshake credentials into an identity.
type Resolver struct {
	accounts store.AccountStore
	jwt      *JWTConfig
	log      *zerolog.Logger
}

// NewResolver creates a resolver backed by the account store.
func NewResolver(accounts store.AccountStore, jwtConfig *JWTConfig, logger *zerolog.Logger) *Resolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Resolver{accounts: accounts, jwt: jwtConfig, log: logger}
}

// TokenFromRequest extracts an access token from the Authorization header,
// the token query parameter or the access token cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// Authenticate validates token and loads its account.
func (r *Resolver) Authenticate(ctx context.Context, token string) (*store.Account, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims, err := ValidateToken(r.jwt, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	account, err := r.accounts.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("account %d: %w", claims.AccountID, ErrUnknownAccount)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

// Resolve never rejects a connection. Bad credentials degrade to an anonymous
// identity bound to connID, with a failure to report to the client.
func (r *Resolver) Resolve(ctx context.Context, token, connID string) (core.Identity, *core.AuthFailure) {
	anonymous := core.AnonymousIdentity(connID)

	account, err := r.Authenticate(ctx, token)
	switch {
	case err == nil:
		return core.AccountIdentity(account), nil
	case errors.Is(err, ErrNoToken):
		return anonymous, nil
	case errors.Is(err, ErrTokenExpired):
		r.log.Debug().Err(err).Str("client_id", connID).Msg("expired token")
		return anonymous, &core.AuthFailure{
			Type:    "TokenExpiredError",
			Message: "jwt expired",
			Code:    core.AuthCodeTokenExpired,
		}
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrUnknownAccount):
		r.log.Debug().Err(err).Str("client_id", connID).Msg("invalid token")
		return anonymous, &core.AuthFailure{
			Type:    "JsonWebTokenError",
			Message: "invalid token",
			Code:    core.AuthCodeTokenInvalid,
		}
	default:
		r.log.Warn().Err(err).Str("client_id", connID).Msg("resolve identity")
		return anonymous, nil
	}
}
