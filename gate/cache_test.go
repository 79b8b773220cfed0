package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-billing/gate"
)

func TestCachedResolver_CachesProfile(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticProfile(1, "user"))
	cached := gate.NewCachedResolver[uint](inner, 5*time.Minute)

	p1, err := cached.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.Name() != "user" {
		t.Errorf("expected 'user', got '%s'", p1.Name())
	}

	inner.Set(1, gate.NewStaticProfile(2, "admin"))
	p2, _ := cached.Resolve(context.Background(), 1)
	if p2.Name() != "user" {
		t.Errorf("expected cached 'user', got '%s'", p2.Name())
	}
}

func TestCachedResolver_Invalidate(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticProfile(1, "user"))
	inner.Set(2, gate.NewStaticProfile(1, "user"))
	cached := gate.NewCachedResolver[uint](inner, 5*time.Minute)
	_, _ = cached.Resolve(context.Background(), 1)
	_, _ = cached.Resolve(context.Background(), 2)

	inner.Set(1, gate.NewStaticProfile(2, "admin"))
	cached.Invalidate(1)
	p, _ := cached.Resolve(context.Background(), 1)
	if p.Name() != "admin" {
		t.Errorf("expected fresh 'admin' after invalidate, got '%s'", p.Name())
	}

	cached.InvalidateAll()
	if cached.Len() != 0 {
		t.Errorf("expected empty cache, got %d", cached.Len())
	}
}

func TestCachedResolver_Expires(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticProfile(1, "user"))
	cached := gate.NewCachedResolver[uint](inner, 10*time.Millisecond)
	_, _ = cached.Resolve(context.Background(), 1)

	inner.Set(1, gate.NewStaticProfile(2, "accountant"))
	time.Sleep(20 * time.Millisecond)
	p, _ := cached.Resolve(context.Background(), 1)
	if p.Name() != "accountant" {
		t.Errorf("expected refreshed profile after ttl, got '%s'", p.Name())
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, uint) (gate.Profile, error) {
	return nil, errors.New("db down")
}

func TestCachedResolver_DoesNotCacheErrors(t *testing.T) {
	cached := gate.NewCachedResolver[uint](failingResolver{}, time.Minute)
	if _, err := cached.Resolve(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
	if cached.Len() != 0 {
		t.Errorf("errors must not be cached")
	}
}
