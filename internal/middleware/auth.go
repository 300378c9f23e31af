package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

// AccessTokenCookie is the cookie carrying the access token. The header is
// only consulted when the cookie is absent.
const AccessTokenCookie = "accessToken"

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (auth.AccessClaims, error)
}

// IdentityStore resolves the authenticated user record.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

type identityCtxKey struct{}

// UserFromContext retrieves the identity attached by Authenticate.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(identityCtxKey{}).(models.User)
	return user, ok
}

// Authenticate gates a handler behind a valid access token. The bearer
// credential is read from the accessToken cookie or the Authorization header,
// cookie first. On success the resolved user (credential fields cleared) is
// attached to the request context; on any failure the request short-circuits
// with 401 and no state is touched.
func Authenticate(tokens TokenVerifier, users IdentityStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token := bearerToken(r)
			if token == "" {
				logger.Warn("missing bearer credential")
				unauthorized(w)
				return
			}

			claims, err := tokens.VerifyAccess(token)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				unauthorized(w)
				return
			}

			user, err := users.FindByID(ctx, claims.Subject)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					logger.Warn("token subject no longer exists", "userId", claims.Subject)
					unauthorized(w)
					return
				}
				// A store failure is not a credential failure.
				logger.Error("resolve token subject", "userId", claims.Subject, "error", err)
				internalError(w)
				return
			}

			ctx = context.WithValue(ctx, identityCtxKey{}, user.Sanitized())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	writeFailure(w, http.StatusUnauthorized, "unauthorized request")
}

func internalError(w http.ResponseWriter) {
	writeFailure(w, http.StatusInternalServerError, "internal server error")
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode": status,
		"message":    message,
		"success":    false,
	})
}
