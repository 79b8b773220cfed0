// Package gate is a small profile plus policy authorization layer.
//
// A user resolves to a Profile through a ProfileResolver. The profile grants
// "resource:action" permissions, optionally with wildcards. Per-resource
// policies then inspect the concrete record (tenant, creator, status) before
// the action is allowed. The package knows nothing about the billing domain.
package gate

import (
	"context"
	"errors"
)

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionList     Action = "list"
	ActionGenerate Action = "generate"
	ActionDownload Action = "download"
)

var (
	// ErrUnauthorized means there is no usable subject (zero user, no profile).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the subject is known but may not perform the action.
	ErrForbidden = errors.New("forbidden")
)

// Policy inspects a loaded resource. resource is nil for list/create checks.
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

// Can calls f.
func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

// Gate combines profile permissions with resource policies.
//
//  1. the user must be non-zero and resolve to a profile
//  2. the profile must grant resource:action
//  3. when a resource is given and a policy is registered, the policy decides
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

// New returns a gate with no policies registered.
func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver, policies: make(map[string]Policy[U])}
}

// Register sets the policy for a resource type, replacing any previous one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

func (g *Gate[U]) profile(ctx context.Context, user U) (Profile, error) {
	var zero U
	if user == zero {
		return nil, ErrUnauthorized
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil {
		return nil, ErrUnauthorized
	}
	return profile, nil
}

// Authorize returns nil when allowed, ErrUnauthorized or ErrForbidden otherwise.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	profile, err := g.profile(ctx, user)
	if err != nil {
		return err
	}
	if !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrForbidden
	}
	if resource == nil {
		return nil
	}
	if p, ok := g.policies[resourceType]; ok && !p.Can(ctx, user, action, resource) {
		return ErrForbidden
	}
	return nil
}

// Can is Authorize as a boolean.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// CanProfile checks the profile permission only. Used before a record is loaded
// and by templates to hide buttons.
func (g *Gate[U]) CanProfile(ctx context.Context, user U, action Action, resourceType string) bool {
	profile, err := g.profile(ctx, user)
	if err != nil {
		return false
	}
	return profile.HasPermission(NewPermission(resourceType, action))
}
