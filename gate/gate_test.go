package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-billing/gate"
)

type ownedDoc struct {
	CreatedBy uint
}

// creatorPolicy lets users touch only what they created.
var creatorPolicy = gate.PolicyFunc[uint](func(_ context.Context, uid uint, _ gate.Action, resource any) bool {
	d, ok := resource.(*ownedDoc)
	return ok && d.CreatedBy == uid
})

func newTestGate() *gate.Gate[uint] {
	resolver := gate.NewStaticResolver[uint]()
	user := gate.NewStaticProfile(1, "user",
		gate.NewPermission("invoice", gate.ActionView),
		gate.NewPermission("invoice", gate.ActionUpdate),
	)
	resolver.Set(1, user)
	resolver.Set(2, user)
	resolver.Set(3, gate.NewStaticProfile(2, "owner", gate.PermissionSuperAdmin))
	g := gate.New[uint](resolver)
	g.Register("invoice", creatorPolicy)
	return g
}

func TestGate_Authorize_Subject(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()

	if err := g.Authorize(ctx, 0, gate.ActionView, "invoice", nil); !errors.Is(err, gate.ErrUnauthorized) {
		t.Errorf("zero user: expected ErrUnauthorized, got %v", err)
	}
	if err := g.Authorize(ctx, 42, gate.ActionView, "invoice", nil); !errors.Is(err, gate.ErrUnauthorized) {
		t.Errorf("user without profile: expected ErrUnauthorized, got %v", err)
	}
}

func TestGate_Authorize_ProfileOnly(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()

	if err := g.Authorize(ctx, 1, gate.ActionView, "invoice", nil); err != nil {
		t.Errorf("expected allowed, got %v", err)
	}
	if err := g.Authorize(ctx, 1, gate.ActionDelete, "invoice", nil); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestGate_Authorize_WithPolicy(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()
	doc := &ownedDoc{CreatedBy: 1}

	if !g.Can(ctx, 1, gate.ActionUpdate, "invoice", doc) {
		t.Error("creator should be allowed")
	}
	if g.Can(ctx, 2, gate.ActionUpdate, "invoice", doc) {
		t.Error("non-creator should be denied even with the profile permission")
	}
	// The policy still runs for superadmins; here it denies user 3.
	if g.Can(ctx, 3, gate.ActionUpdate, "invoice", doc) {
		t.Error("policy should apply to every profile")
	}
}

func TestGate_UnregisteredResourceSkipsPolicy(t *testing.T) {
	g := newTestGate()
	if !g.Can(context.Background(), 3, gate.ActionDelete, "client", &ownedDoc{CreatedBy: 99}) {
		t.Error("no policy for client: profile permission decides")
	}
}

func TestGate_CanProfile(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()

	if !g.CanProfile(ctx, 1, gate.ActionView, "invoice") {
		t.Error("CanProfile should return true for user with permission")
	}
	if g.CanProfile(ctx, 1, gate.ActionDelete, "invoice") {
		t.Error("CanProfile should return false for missing permission")
	}
	if g.CanProfile(ctx, 0, gate.ActionView, "invoice") {
		t.Error("zero user should be denied")
	}
}
