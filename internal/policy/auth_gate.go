// Package policy wires the generic gate to the billing roles: profile
// permissions first, then per-resource rules on loaded records.
package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
)

// AuthGate is the central authorization point of the application.
type AuthGate struct {
	Gate          *gate.Gate[uint]
	CacheResolver *gate.CachedResolver[uint]

	// Deny writes the response for a refused request. It defaults to a JSON
	// or plain text 401/403.
	Deny func(w http.ResponseWriter, r *http.Request, err error)
}

// NewAuthGate builds the gate with a TTL profile cache and registers the
// document and client rules.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) *AuthGate {
	cached := gate.NewCachedResolver[uint](NewDBProfileResolver(db), cacheTTL)
	g := gate.New[uint](cached)
	docs := DocumentPolicy{}
	for _, kind := range models.Kinds {
		g.Register(string(kind), docs)
	}
	g.Register(ResourcePDF, docs)
	g.Register(ResourceClient, ClientPolicy{})
	return &AuthGate{Gate: g, CacheResolver: cached, Deny: DefaultDeny}
}

// Resource types that are not document kinds.
const (
	ResourceClient    = "client"
	ResourcePDF       = "pdf"
	ResourceDashboard = "dashboard"
	ResourceReport    = "report"
	ResourceCompany   = "company"
	ResourceAudit     = "audit"
	ResourceUser      = "user"
	ResourceProfile   = "profile"
)

// Authorize checks the current user against an action. resource may be nil
// for list and create checks.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, userID, action, resourceType, resource)
}

func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string, resource any) bool {
	return ag.Authorize(ctx, action, resourceType, resource) == nil
}

// CanProfile checks only profile permissions, for menus and buttons.
func (ag *AuthGate) CanProfile(ctx context.Context, action gate.Action, resourceType string) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.CanProfile(ctx, userID, action, resourceType)
}

// InvalidateUser drops a cached profile after a role change.
func (ag *AuthGate) InvalidateUser(userID uint) { ag.CacheResolver.Invalidate(userID) }

// InvalidateAll drops every cached profile after permissions change.
func (ag *AuthGate) InvalidateAll() { ag.CacheResolver.InvalidateAll() }

// RequirePermission blocks requests whose profile lacks resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserIDFromContext(r.Context()); !ok {
				ag.Deny(w, r, gate.ErrUnauthorized)
				return
			}
			if !ag.CanProfile(r.Context(), action, resourceType) {
				ag.Deny(w, r, gate.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only lets through profiles holding "*:*".
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				ag.Deny(w, r, gate.ErrUnauthorized)
				return
			}
			profile, err := ag.CacheResolver.Resolve(r.Context(), userID)
			if err != nil || profile == nil || !profile.HasPermission(gate.PermissionSuperAdmin) {
				ag.Deny(w, r, gate.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultDeny answers 401 for anonymous requests and 403 otherwise.
func DefaultDeny(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusForbidden, "forbidden"
	if errors.Is(err, gate.ErrUnauthorized) {
		status, code = http.StatusUnauthorized, "unauthorized"
	}
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, status, code, nil)
		return
	}
	http.Error(w, http.StatusText(status), status)
}
