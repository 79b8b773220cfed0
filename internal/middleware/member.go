package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
)

type memberKey struct{}

// MemberLoader loads users by id with their role and company.
type MemberLoader interface {
	Member(ctx context.Context, id uint) (*models.User, error)
}

// MemberFrom returns the user loaded by Member.
func MemberFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(memberKey{}).(*models.User)
	return u, ok
}

// Member loads the signed-in user and, once they belong to a company, the
// actor used by services and record policies. Stale sessions are cleared.
func Member(users MemberLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			u, err := users.Member(r.Context(), uid)
			if errors.Is(err, services.ErrNotFound) {
				auth.ClearSession(w)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Uint("user_id", uid).Msg("load member")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
				return
			}
			ctx := context.WithValue(r.Context(), memberKey{}, u)
			if u.CompanyID != nil {
				ctx = policy.WithActor(ctx, services.Actor{
					UserID:    u.ID,
					CompanyID: *u.CompanyID,
					Role:      u.Role(),
					IP:        ClientIP(r),
				})
			}
			l := zerolog.Ctx(ctx).With().Uint("user_id", u.ID).Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(ctx)))
		})
	}
}

// RequireCompany sends users without a company to the setup page.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := policy.ActorFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusConflict, "no_company", nil)
			return
		}
		Flash(w, "no_company")
		http.Redirect(w, r, "/company/setup", http.StatusSeeOther)
	})
}
