package gate_test

import (
	"context"
	"testing"

	"github.com/diewo77/go-billing/gate"
)

func TestStaticProfile_HasPermission(t *testing.T) {
	profile := gate.NewStaticProfile(1, "accountant",
		gate.NewPermission("invoice", gate.ActionCreate),
		gate.Permission("receipt:*"),
	)

	if !profile.HasPermission(gate.NewPermission("invoice", gate.ActionCreate)) {
		t.Error("should have invoice:create permission")
	}
	if !profile.HasPermission(gate.NewPermission("receipt", gate.ActionDelete)) {
		t.Error("receipt:* should grant receipt:delete")
	}
	if profile.HasPermission(gate.NewPermission("invoice", gate.ActionDelete)) {
		t.Error("should not have invoice:delete permission")
	}
}

func TestStaticProfile_PermissionsSorted(t *testing.T) {
	profile := gate.NewStaticProfile(1, "user", "quote:view", "client:list", "invoice:view")
	got := profile.Permissions()
	want := []gate.Permission{"client:list", "invoice:view", "quote:view"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestStaticResolver(t *testing.T) {
	resolver := gate.NewStaticResolver[uint]()
	resolver.Set(1, gate.NewStaticProfile(1, "user", gate.NewPermission("client", gate.ActionView)))

	resolved, err := resolver.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved == nil || resolved.Name() != "user" {
		t.Fatalf("unexpected profile %v", resolved)
	}

	unknown, err := resolver.Resolve(context.Background(), 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unknown != nil {
		t.Error("expected nil for unknown user")
	}
}
