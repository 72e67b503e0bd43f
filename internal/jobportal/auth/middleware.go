// Package auth authenticates HTTP requests by API key and enforces the
// read, write and admin capabilities of the resulting principal.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"go.uber.org/zap"
)

// HeaderAPIKey carries the caller's key.
const HeaderAPIKey = "X-API-Key"

type contextKey string

const principalContextKey contextKey = "principal"

// Authenticator resolves an API key to an active principal.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*models.Principal, error)
}

// Permission is a capability a route demands.
type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
	PermAdmin Permission = "admin"
)

func (p Permission) grantedTo(perms models.Permissions) bool {
	switch p {
	case PermRead:
		return perms.Read
	case PermWrite:
		return perms.Write
	case PermAdmin:
		return perms.Admin
	}
	return false
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFrom returns the authenticated principal, or nil.
func PrincipalFrom(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalContextKey).(*models.Principal)
	return p
}

// Middleware authenticates requests and checks route permissions.
type Middleware struct {
	authn  Authenticator
	logger *zap.Logger
}

func NewMiddleware(authn Authenticator, logger *zap.Logger) *Middleware {
	return &Middleware{authn: authn, logger: logger.Named("auth")}
}

// Require wraps next so it only runs for principals holding perm, whatever
// the request method.
func (m *Middleware) Require(perm Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.authn.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey))
		if err != nil {
			if errors.Is(err, e.ErrUnauthorized) {
				writeDetail(w, http.StatusUnauthorized, err.Error())
				return
			}
			m.logger.Error("Failed to authenticate request", zap.Error(err))
			writeDetail(w, http.StatusInternalServerError, "internal error")
			return
		}

		if !perm.grantedTo(p.EffectivePermissions()) {
			m.logger.Debug("Permission denied",
				zap.Uint("key_id", p.ID),
				zap.String("permission", string(perm)),
			)
			writeDetail(w, http.StatusForbidden, "This operation requires '"+string(perm)+"' permission")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
