package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionTableCoversEveryRole(t *testing.T) {
	require.NoError(t, ValidatePermissionTable())

	saved := rolePermissions[RoleManager]
	delete(rolePermissions, RoleManager)
	t.Cleanup(func() { rolePermissions[RoleManager] = saved })

	assert.ErrorContains(t, ValidatePermissionTable(), "manager")
}

func TestHasPermission(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleUser, PermManageUsers, false},
		{RoleAdmin, PermManageUsers, true},
		{RoleManager, PermManageUsers, false},
		{RoleManager, PermManageTeamUsers, true},
		{RoleAdmin, PermManageTeamUsers, false},
		{RoleUser, PermViewOwnAgents, true},
		{RoleManager, PermViewOwnAgents, false},
		{RoleUser, PermCreateAgents, true},
	}
	for _, tc := range cases {
		u := withPermissions(User{Role: tc.role})
		assert.Equal(t, tc.want, HasPermission(&u, tc.perm), "%s/%s", tc.role, tc.perm)
	}
	assert.False(t, HasPermission(nil, PermCreateAgents))
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleAdmin)
	perms[0] = "tampered"
	assert.Equal(t, PermManageUsers, PermissionsFor(RoleAdmin)[0])
	assert.Empty(t, PermissionsFor("owner"))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Manager ")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, r)

	_, err = ParseRole("owner")
	assert.ErrorIs(t, err, ErrValidation)
}
