package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		token   string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer   abc  ", "abc", false},
		{"", "", true},
		{"Bearer ", "", true},
		{"Basic dXNlcjpwYXNz", "", true},
		{"Bear", "", true},
	}
	for _, tc := range cases {
		token, err := extractBearerToken(tc.header)
		if tc.wantErr {
			assert.Error(t, err, tc.header)
			continue
		}
		require.NoError(t, err, tc.header)
		assert.Equal(t, tc.token, token)
	}
}

func TestRequestTokenPrefersHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := requestToken(req)
	assert.ErrorIs(t, err, errMissingToken)

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	token, err := requestToken(req)
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", token)

	req.Header.Set(authHeader, "Bearer from-header")
	token, err = requestToken(req)
	require.NoError(t, err)
	assert.Equal(t, "from-header", token)
}
