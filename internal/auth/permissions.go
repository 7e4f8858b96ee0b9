package auth

import (
	"fmt"
	"sort"
)

// Permission is an atomic capability token gating one action.
type Permission string

const (
	PermManageAdmissions Permission = "manage_admissions"
	PermManageVisitors   Permission = "manage_visitors"
	PermViewDashboard    Permission = "view_dashboard"
	PermExportData       Permission = "export_data"
	PermBackupDatabase   Permission = "backup_database"
)

// knownPermissions is the closed token set. ValidateRoles rejects any role
// referencing a token outside it.
var knownPermissions = map[Permission]struct{}{
	PermManageAdmissions: {},
	PermManageVisitors:   {},
	PermViewDashboard:    {},
	PermExportData:       {},
	PermBackupDatabase:   {},
}

// Roles maps each role name to its permission set. The table is static
// configuration, loaded once per process and immutable thereafter.
var Roles = map[string][]Permission{
	"admin": {
		PermManageAdmissions,
		PermManageVisitors,
		PermViewDashboard,
		PermExportData,
		PermBackupDatabase,
	},
	"staff": {
		PermManageAdmissions,
		PermManageVisitors,
		PermViewDashboard,
		PermExportData,
	},
	"viewer": {
		PermViewDashboard,
	},
}

// ValidateRoles checks the role table against the closed permission set.
// Called at startup; an unknown token reference is a configuration bug
// worth failing fast on.
func ValidateRoles() error {
	names := make([]string, 0, len(Roles))
	for name := range Roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, perm := range Roles[name] {
			if _, ok := knownPermissions[perm]; !ok {
				return fmt.Errorf("auth: role %q references unknown permission %q", name, perm)
			}
		}
	}
	return nil
}

// HasPermission reports whether the session's role grants the permission.
// Unauthenticated sessions and roles absent from the table fail closed.
func HasPermission(s Session, perm Permission) bool {
	if !s.Authenticated {
		return false
	}
	perms, ok := Roles[s.Role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}
