package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  RegisterRequest
		msg  string
	}{
		{"missing email", RegisterRequest{Password: "password1", OrganizationName: "Acme"}, "email is required"},
		{"malformed email", RegisterRequest{Email: "nope", Password: "password1", OrganizationName: "Acme"}, "malformed email"},
		{"display form", RegisterRequest{Email: "Ann <a@x.com>", Password: "password1", OrganizationName: "Acme"}, "malformed email"},
		{"short password", RegisterRequest{Email: "a@x.com", Password: "short", OrganizationName: "Acme"}, "password must be at least 8 characters"},
		{"long password", RegisterRequest{Email: "a@x.com", Password: strings.Repeat("x", 73), OrganizationName: "Acme"}, "password must be at most 72 bytes"},
		{"blank org", RegisterRequest{Email: "a@x.com", Password: "password1", OrganizationName: "  "}, "organization name is required"},
		{"long name", RegisterRequest{Email: "a@x.com", Password: "password1", OrganizationName: "Acme", DisplayName: strings.Repeat("n", 256)}, "name must be at most 255 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, ErrValidation.Error()+": "+tc.msg, err.Error())
		})
	}
}

func TestRegisterRequestValidateNormalizes(t *testing.T) {
	req := RegisterRequest{
		Email:            "  Ann@Example.COM ",
		Password:         strings.Repeat("p", maxPasswordBytes),
		DisplayName:      " Ann ",
		OrganizationName: " Acme ",
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "ann@example.com", req.Email)
	assert.Equal(t, "Ann", req.DisplayName)
	assert.Equal(t, "Acme", req.OrganizationName)
}

func TestLoginRequestValidate(t *testing.T) {
	req := LoginRequest{Email: " A@X.com", Password: "anything"}
	require.NoError(t, req.Validate())
	assert.Equal(t, "a@x.com", req.Email)

	err := (&LoginRequest{Email: "a@x.com"}).Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "password is required")
}
