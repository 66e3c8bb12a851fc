package auth

import (
	"fmt"
	"slices"
)

// Permission is a capability string gating a specific operation.
type Permission string

const (
	PermManageUsers        Permission = "manage_users"
	PermManageOrganization Permission = "manage_organization"
	PermCreateAgents       Permission = "create_agents"
	PermManageTools        Permission = "manage_tools"
	PermViewAnalytics      Permission = "view_analytics"
	PermManageTeamUsers    Permission = "manage_team_users"
	PermViewOwnAgents      Permission = "view_own_agents"
)

// Roles lists every role the permission table must cover.
var Roles = []Role{RoleAdmin, RoleManager, RoleUser}

// Permission sets are spelled out in full per role; there is no inheritance.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermManageUsers,
		PermManageOrganization,
		PermCreateAgents,
		PermManageTools,
		PermViewAnalytics,
	},
	RoleManager: {
		PermCreateAgents,
		PermManageTools,
		PermViewAnalytics,
		PermManageTeamUsers,
	},
	RoleUser: {
		PermCreateAgents,
		PermViewOwnAgents,
	},
}

// ValidatePermissionTable reports a role that has no permission entry.
func ValidatePermissionTable() error {
	for _, r := range Roles {
		if _, ok := rolePermissions[r]; !ok {
			return fmt.Errorf("auth: role %q has no permission entry", r)
		}
	}
	return nil
}

// PermissionsFor returns a copy of the permission set of role. Unknown roles
// get no permissions.
func PermissionsFor(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}

// HasPermission is an exact membership test against the user's derived
// permission set.
func HasPermission(user *User, perm Permission) bool {
	if user == nil {
		return false
	}
	return slices.Contains(user.Permissions, perm)
}

func withPermissions(u User) User {
	u.Permissions = PermissionsFor(u.Role)
	return u
}
