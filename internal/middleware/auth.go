package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/httpx"
	"github.com/RaviShinde19/StackIt/internal/token"
)

type ctxKey struct{}

// Verifier checks a signed token of the given kind.
type Verifier interface {
	Verify(tokenString string, kind token.Kind) (*token.Claims, error)
}

// RequireAuth is middleware that validates the bearer access token and
// injects the caller's identity into the request context.
func RequireAuth(tokens Verifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httpx.Error(w, r, log, apperr.Unauthorized("authentication required"))
				return
			}

			claims, err := tokens.Verify(raw, token.Access)
			if err != nil {
				httpx.Error(w, r, log, apperr.Wrap(err, apperr.KindUnauthorized, "invalid or expired access token"))
				return
			}

			id := token.Identity{ID: claims.ID, Email: claims.Email, Username: claims.Username, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects authenticated callers whose role is not role. It must
// run after RequireAuth.
func RequireRole(role string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				httpx.Error(w, r, log, apperr.Unauthorized("authentication required"))
				return
			}
			if id.Role != role {
				httpx.Error(w, r, log, apperr.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id token.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity RequireAuth attached to ctx.
func IdentityFrom(ctx context.Context) (token.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(token.Identity)
	return id, ok
}
