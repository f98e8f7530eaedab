package auth

import (
	"fmt"
	"strings"

	"Verdantwebserver/internal/domain"
)

// Permission is a parsed "resource:action" pair. Route declarations
// parse once at startup; nothing downstream re-splits strings.
type Permission struct {
	Resource string
	Action   string
}

func ParsePermission(s string) (Permission, error) {
	resource, action, ok := strings.Cut(s, ":")
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if !ok || resource == "" || action == "" {
		return Permission{}, fmt.Errorf("invalid permission %q: want resource:action", s)
	}
	return Permission{Resource: resource, Action: action}, nil
}

// MustParsePermission is for route tables built at startup.
func MustParsePermission(s string) Permission {
	p, err := ParsePermission(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Permission) String() string { return p.Resource + ":" + p.Action }

// AdminAllowed decides access for an admin against a permission list
// with OR semantics: any one match passes. Super-admin always passes.
func AdminAllowed(admin domain.Admin, required ...Permission) bool {
	if admin.IsSuperAdmin() {
		return true
	}
	for _, p := range required {
		if admin.HasPermission(p.Resource, p.Action) {
			return true
		}
	}
	return false
}

// RoleAllowed decides access against a closed role set. Super-admin
// bypasses the check wherever it is combined with a permission guard.
func RoleAllowed(admin domain.Admin, allowed ...domain.AdminRole) bool {
	if admin.IsSuperAdmin() {
		return true
	}
	for _, role := range allowed {
		if admin.Role == role {
			return true
		}
	}
	return false
}
