package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"authsession/internal/domain"
	"authsession/internal/modules/session"
	"authsession/internal/pkg/jwt"
	"authsession/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type TokenValidator interface {
	Validate(ctx context.Context, token string) (*session.Claims, error)
}

// AccountLookup reports whether a validated subject may still act.
type AccountLookup interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
}

// JWTAuth authenticates bearer access tokens. accounts may be nil, in which
// case account status is not consulted.
func JWTAuth(validator TokenValidator, accounts AccountLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			return
		}

		claims, err := validator.Validate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			switch {
			case errors.Is(err, session.ErrStoreUnavailable):
				response.Abort(c, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication temporarily unavailable")
			case errors.Is(err, jwt.ErrTokenExpired):
				response.Abort(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired")
			case errors.Is(err, session.ErrTokenRevoked):
				response.Abort(c, http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
			default:
				response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
			}
			return
		}

		if accounts != nil {
			acct, err := accounts.GetAccount(c.Request.Context(), claims.SubjectID)
			switch {
			case errors.Is(err, domain.ErrAccountNotFound):
				response.Abort(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is not active")
				return
			case err != nil:
				response.Abort(c, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication temporarily unavailable")
				return
			case !acct.CanAuthenticate():
				response.Abort(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is not active")
				return
			}
		}

		c.Set("subject_id", claims.SubjectID)
		c.Set("token_id", claims.TokenID)
		c.Set("claims", claims)
		c.Next()
	}
}
