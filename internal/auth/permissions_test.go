package auth

import (
	"testing"

	"Verdantwebserver/internal/domain"
)

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("orders:view")
	if err != nil {
		t.Fatalf("ParsePermission: %v", err)
	}
	if p.Resource != "orders" || p.Action != "view" {
		t.Fatalf("unexpected permission: %+v", p)
	}

	for _, bad := range []string{"", "orders", "orders:", ":view", " : "} {
		if _, err := ParsePermission(bad); err == nil {
			t.Fatalf("ParsePermission(%q): expected error", bad)
		}
	}
}

func TestAdminAllowedOrSemantics(t *testing.T) {
	admin := domain.Admin{
		Role: domain.RoleStaff,
		Permissions: map[string][]string{
			"orders": {"view"},
		},
	}

	if !AdminAllowed(admin, MustParsePermission("orders:view")) {
		t.Fatalf("expected granted permission to pass")
	}
	if AdminAllowed(admin, MustParsePermission("orders:edit")) {
		t.Fatalf("expected missing action to fail")
	}
	// Any one match among the required set is enough.
	if !AdminAllowed(admin, MustParsePermission("orders:edit"), MustParsePermission("orders:view")) {
		t.Fatalf("expected OR semantics to pass on the second permission")
	}
	if AdminAllowed(admin) {
		t.Fatalf("expected empty requirement to fail for non-super-admin")
	}
}

func TestAdminAllowedSuperAdminBypass(t *testing.T) {
	admin := domain.Admin{Role: domain.RoleSuperAdmin}

	if !AdminAllowed(admin, MustParsePermission("anything:at-all")) {
		t.Fatalf("expected super-admin to bypass permission checks")
	}
	if !RoleAllowed(admin, domain.RoleAdmin) {
		t.Fatalf("expected super-admin to bypass role checks")
	}
}

func TestRoleAllowed(t *testing.T) {
	staff := domain.Admin{Role: domain.RoleStaff}

	if RoleAllowed(staff, domain.RoleAdmin) {
		t.Fatalf("expected staff to fail an admin-only check")
	}
	if !RoleAllowed(staff, domain.RoleAdmin, domain.RoleStaff) {
		t.Fatalf("expected staff to pass when staff is allowed")
	}
}
