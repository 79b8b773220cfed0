package policy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/internal/dbtest"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
)

const (
	ownerID uint = 1
	adminID uint = 2
	acctID  uint = 3
	userID  uint = 4
	otherID uint = 5
)

func actor(id uint, role string) services.Actor {
	return services.Actor{UserID: id, CompanyID: 10, Role: role}
}

func doc(createdBy uint, status models.Status) *models.Document {
	return &models.Document{CompanyID: 10, CreatedByID: createdBy, Status: status}
}

func TestCanDocument(t *testing.T) {
	owner := actor(ownerID, models.RoleOwner)
	admin := actor(adminID, models.RoleAdmin)
	acct := actor(acctID, models.RoleAccountant)
	user := actor(userID, models.RoleUser)
	other := actor(otherID, models.RoleUser)

	tests := []struct {
		name   string
		actor  services.Actor
		action gate.Action
		doc    *models.Document
		want   bool
	}{
		{"user views own draft", user, gate.ActionView, doc(userID, models.StatusDraft), true},
		{"user cannot view another's draft", other, gate.ActionView, doc(userID, models.StatusDraft), false},
		{"accountant views any", acct, gate.ActionView, doc(userID, models.StatusDraft), true},
		{"user edits own draft", user, gate.ActionUpdate, doc(userID, models.StatusDraft), true},
		{"user cannot edit own sent", user, gate.ActionUpdate, doc(userID, models.StatusSent), false},
		{"user cannot edit another's sent", other, gate.ActionUpdate, doc(userID, models.StatusSent), false},
		{"owner edits another's sent", owner, gate.ActionUpdate, doc(userID, models.StatusSent), true},
		{"admin edits paid", admin, gate.ActionUpdate, doc(userID, models.StatusPaid), true},
		{"accountant edits viewed", acct, gate.ActionUpdate, doc(userID, models.StatusViewed), true},
		{"accountant cannot edit partially paid", acct, gate.ActionUpdate, doc(userID, models.StatusPartiallyPaid), false},
		{"owner deletes sent", owner, gate.ActionDelete, doc(userID, models.StatusSent), true},
		{"owner cannot delete paid", owner, gate.ActionDelete, doc(userID, models.StatusPaid), false},
		{"admin cannot delete partially paid", admin, gate.ActionDelete, doc(userID, models.StatusPartiallyPaid), false},
		{"accountant cannot delete", acct, gate.ActionDelete, doc(acctID, models.StatusDraft), false},
		{"user cannot delete own draft", user, gate.ActionDelete, doc(userID, models.StatusDraft), false},
		{"user generates own pdf", user, gate.ActionGenerate, doc(userID, models.StatusSent), true},
		{"user cannot download another's pdf", other, gate.ActionDownload, doc(userID, models.StatusSent), false},
		{"other company", services.Actor{UserID: ownerID, CompanyID: 11, Role: models.RoleOwner}, gate.ActionView, doc(ownerID, models.StatusDraft), false},
		{"nil document", owner, gate.ActionView, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.CanDocument(tt.actor, tt.action, tt.doc); got != tt.want {
				t.Errorf("CanDocument() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanClient(t *testing.T) {
	c := &models.Client{CompanyID: 10, CreatedByID: userID}
	if !policy.CanClient(actor(userID, models.RoleUser), gate.ActionUpdate, c) {
		t.Error("creator should update own client")
	}
	if policy.CanClient(actor(otherID, models.RoleUser), gate.ActionDelete, c) {
		t.Error("user should not delete another's client")
	}
	if !policy.CanClient(actor(otherID, models.RoleUser), gate.ActionView, c) {
		t.Error("company members view clients")
	}
	if !policy.CanClient(actor(adminID, models.RoleAdmin), gate.ActionDelete, c) {
		t.Error("admin should delete any client")
	}
	if policy.CanClient(services.Actor{UserID: adminID, CompanyID: 11, Role: models.RoleAdmin}, gate.ActionView, c) {
		t.Error("other company must be denied")
	}
}

func TestOwnDocumentsOnly(t *testing.T) {
	if got := policy.OwnDocumentsOnly(actor(userID, models.RoleUser)); got != userID {
		t.Errorf("user filter = %d, want %d", got, userID)
	}
	if got := policy.OwnDocumentsOnly(actor(acctID, models.RoleAccountant)); got != 0 {
		t.Errorf("accountant filter = %d, want 0", got)
	}
}

func TestAuthGate_WithDatabase(t *testing.T) {
	gdb := dbtest.Open(t)
	company := dbtest.Company(t, gdb, "Acme", "")
	owner := dbtest.User(t, gdb, company, "owner@example.com", models.RoleOwner)
	acct := dbtest.User(t, gdb, company, "acct@example.com", models.RoleAccountant)
	user := dbtest.User(t, gdb, company, "user@example.com", models.RoleUser)

	ag := policy.NewAuthGate(gdb, time.Minute)
	ctxFor := func(u *models.User) context.Context {
		ctx := auth.WithUserID(context.Background(), u.ID)
		return policy.WithActor(ctx, services.Actor{UserID: u.ID, CompanyID: company.ID, Role: u.Role()})
	}
	sent := &models.Invoice{Document: models.Document{CompanyID: company.ID, CreatedByID: owner.ID, Status: models.StatusSent}}

	if err := ag.Authorize(ctxFor(user), gate.ActionUpdate, "invoice", sent); err != gate.ErrForbidden {
		t.Errorf("user update on another's sent invoice: got %v, want ErrForbidden", err)
	}
	if err := ag.Authorize(ctxFor(owner), gate.ActionUpdate, "invoice", sent); err != nil {
		t.Errorf("owner update: %v", err)
	}
	if ag.CanProfile(ctxFor(acct), gate.ActionCreate, "quote") {
		t.Error("accountant must not create quotes")
	}
	if !ag.CanProfile(ctxFor(acct), gate.ActionView, "report") {
		t.Error("accountant views reports")
	}
	if ag.CanProfile(ctxFor(user), gate.ActionDelete, "invoice") {
		t.Error("user lacks invoice:delete")
	}
	if err := ag.Authorize(context.Background(), gate.ActionView, "invoice", nil); err != gate.ErrUnauthorized {
		t.Errorf("anonymous: got %v, want ErrUnauthorized", err)
	}
	if ag.CacheResolver.Len() == 0 {
		t.Error("profiles should be cached")
	}
	ag.InvalidateUser(user.ID)
	ag.InvalidateAll()
	if ag.CacheResolver.Len() != 0 {
		t.Error("cache should be empty after InvalidateAll")
	}
}

func TestAuthGate_Middleware(t *testing.T) {
	gdb := dbtest.Open(t)
	company := dbtest.Company(t, gdb, "Acme", "")
	owner := dbtest.User(t, gdb, company, "owner@example.com", models.RoleOwner)
	user := dbtest.User(t, gdb, company, "user@example.com", models.RoleUser)
	ag := policy.NewAuthGate(gdb, time.Minute)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	tests := []struct {
		name   string
		h      http.Handler
		userID uint
		json   bool
		want   int
	}{
		{"anonymous", ag.RequirePermission("audit", gate.ActionList)(ok), 0, false, http.StatusUnauthorized},
		{"user lacks audit:list", ag.RequirePermission("audit", gate.ActionList)(ok), user.ID, true, http.StatusForbidden},
		{"owner has audit:list", ag.RequirePermission("audit", gate.ActionList)(ok), owner.ID, false, http.StatusNoContent},
		{"user not admin", ag.RequireAdmin()(ok), user.ID, false, http.StatusForbidden},
		{"owner is admin", ag.RequireAdmin()(ok), owner.ID, false, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/audit", nil)
			if tt.userID != 0 {
				req = req.WithContext(auth.WithUserID(req.Context(), tt.userID))
			}
			if tt.json {
				req.Header.Set("Accept", "application/json")
			}
			rr := httptest.NewRecorder()
			tt.h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.json && rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON error body")
			}
		})
	}
}
