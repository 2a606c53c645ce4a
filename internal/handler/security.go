package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodorder/internal/domain/auth"
)

// APIKeyHeader carries the API key of machine clients.
const APIKeyHeader = "api_key"

var errUnauthorized = errors.New("unauthorized")

// APIKeyAuth authenticates machine clients via HMAC-SHA256 hashed API keys.
type APIKeyAuth struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAPIKeyAuth creates an APIKeyAuth with the given API key repository and
// HMAC pepper.
func NewAPIKeyAuth(apikeys auth.Repository, pepper []byte) *APIKeyAuth {
	return &APIKeyAuth{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate looks up the key by its HMAC and re-checks the stored hash
// in constant time.
func (a *APIKeyAuth) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if a == nil || key == "" {
		return nil, errUnauthorized
	}

	info, err := a.apikeys.FindByHash(ctx, auth.HashKey(a.pepper, key))
	if err != nil {
		if !errors.Is(err, auth.ErrKeyNotFound) {
			zctx.From(ctx).Error("API key lookup failed", zap.Error(err))
		}
		return nil, errUnauthorized
	}
	if !info.Matches(a.pepper, key) {
		return nil, errUnauthorized
	}
	return info, nil
}

// Require returns a middleware that admits requests carrying an API key
// granting scope.
func (a *APIKeyAuth) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := a.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "API key lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireUser admits requests with a valid bearer token and stores the
// principal in the request context.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		p, err := h.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			zctx.From(r.Context()).Debug("Token rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		ctx := zctx.With(auth.WithPrincipal(r.Context(), p),
			zap.Int64("user_id", p.UserID),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}
