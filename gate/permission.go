package gate

import (
	"fmt"
	"strings"
)

// Permission is "resource:action", e.g. "invoice:update".
type Permission string

const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// NewPermission joins a resource type and an action as "resource:action".
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// ParsePermission validates a "resource:action" code.
func ParsePermission(code string) (Permission, error) {
	code = strings.TrimSpace(code)
	res, act, ok := strings.Cut(code, ":")
	if !ok || res == "" || act == "" || strings.Contains(act, ":") {
		return "", fmt.Errorf("invalid permission %q", code)
	}
	return Permission(code), nil
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Matches reports whether p grants requested. "*:*" grants everything,
// "invoice:*" every invoice action and "*:view" viewing any resource.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, reqAct := requested.Parse()
	if res == "" || reqRes == "" {
		return false
	}
	resOK := res == WildcardAll || res == reqRes
	actOK := string(act) == WildcardAll || act == reqAct
	return resOK && actOK
}
