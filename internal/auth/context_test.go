package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerContext(t *testing.T) {
	ctx := context.Background()
	_, ok := UserFromContext(ctx)
	assert.False(t, ok)
	_, ok = TokenFromContext(ctx)
	assert.False(t, ok)

	u := User{ID: "u1", OrganizationID: "o1", Role: RoleUser}
	ctx = ContextWithUser(ctx, u)
	ctx = ContextWithToken(ctx, "tok")
	u.Role = RoleAdmin

	got, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, RoleUser, got.Role)
	token, ok := TokenFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok", token)

	assert.Equal(t, ctx, ContextWithToken(ctx, ""))
}
