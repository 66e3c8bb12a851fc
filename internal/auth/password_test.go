package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("password1")
	require.NoError(t, err)
	assert.NotContains(t, hash, "password1")
	assert.NoError(t, h.Compare(hash, "password1"))
	assert.Error(t, h.Compare(hash, "password2"))

	again, err := h.Hash("password1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ")

	_, err = h.Hash("")
	assert.Error(t, err)
}

func TestBcryptHasherCostFallback(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewBcryptHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewBcryptHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 10, NewBcryptHasher(10).cost)
}

func TestArgon2Hasher(t *testing.T) {
	var h Argon2Hasher

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.Error(t, h.Compare(hash, "battery staple"))

	// Compare dispatches on the stored format.
	assert.NoError(t, NewBcryptHasher(bcrypt.MinCost).Compare(hash, "correct horse"))
}

func TestCompareRejectsMalformedHashes(t *testing.T) {
	for _, hash := range []string{"", "plain", "$argon2id$v=19$garbage", "$2a$04$short"} {
		assert.Error(t, comparePassword(hash, "whatever"), hash)
	}
}

func TestCompareRejectsArgon2ParametersOutOfRange(t *testing.T) {
	const salt, key = "c2FsdHNhbHRzYWx0c2FsdA", "a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5"
	for _, params := range []string{
		"m=65536,t=2,p=0",
		"m=65536,t=0,p=1",
		"m=4,t=2,p=1",
		"m=4294967295,t=2,p=1",
		"m=65536,t=4000000,p=1",
	} {
		hash := "$argon2id$v=19$" + params + "$" + salt + "$" + key
		assert.NotPanics(t, func() {
			assert.Error(t, comparePassword(hash, "x"), params)
		})
	}
}
