package auth

import "testing"

func sessionWithRole(role string) Session {
	return Session{Token: "t", PrincipalID: 1, Username: "u", Role: role, Authenticated: true}
}

func TestHasPermissionMatchesRoleTable(t *testing.T) {
	allPerms := []Permission{
		PermManageAdmissions, PermManageVisitors, PermViewDashboard,
		PermExportData, PermBackupDatabase,
	}

	// For every role and permission the decision must equal table
	// membership, nothing else.
	for role, granted := range Roles {
		inRole := make(map[Permission]bool, len(granted))
		for _, p := range granted {
			inRole[p] = true
		}
		for _, p := range allPerms {
			if got := HasPermission(sessionWithRole(role), p); got != inRole[p] {
				t.Fatalf("HasPermission(%s, %s) = %v, want %v", role, p, got, inRole[p])
			}
		}
	}
}

func TestHasPermissionFailsClosedForUnknownRole(t *testing.T) {
	for _, p := range []Permission{PermViewDashboard, PermManageAdmissions} {
		if HasPermission(sessionWithRole("superuser"), p) {
			t.Fatalf("unknown role must never grant %s", p)
		}
	}
}

func TestHasPermissionFailsClosedForUnauthenticated(t *testing.T) {
	s := sessionWithRole("admin")
	s.Authenticated = false
	if HasPermission(s, PermViewDashboard) {
		t.Fatal("unauthenticated session must be denied")
	}
}

func TestViewerLacksManagePermissions(t *testing.T) {
	s := sessionWithRole("viewer")
	if HasPermission(s, PermManageAdmissions) || HasPermission(s, PermManageVisitors) {
		t.Fatal("viewer must not manage records")
	}
	if !HasPermission(s, PermViewDashboard) {
		t.Fatal("viewer should see the dashboard")
	}
}

func TestValidateRoles(t *testing.T) {
	if err := ValidateRoles(); err != nil {
		t.Fatalf("shipped role table must validate: %v", err)
	}

	Roles["broken"] = []Permission{"manage_everything"}
	defer delete(Roles, "broken")

	if err := ValidateRoles(); err == nil {
		t.Fatal("unknown permission reference must fail validation")
	}
}
