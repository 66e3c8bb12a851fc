package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                         "/",
		"/metrics":                 "/metrics",
		"/v1/users":                "/v1/users",
		"/v1/users/01HZX":          "/v1/users/:id",
		"/v1/users/01HZX/role":     "/v1/users/:id/role",
		"/v1/users/01HZX/extra":    "/v1/users/01HZX/extra",
		"/v1/auth/login":           "/v1/auth/login",
		"/v1/auth/me?include=org":  "/v1/auth/me",
		"/v1/users/01HZX/role?x=1": "/v1/users/:id/role",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, CanonicalPath(input), "CanonicalPath(%q)", input)
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	Init()
	Init()

	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/users/:id", "418"))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/users/abc", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/users/:id", "418"))
	assert.Equal(t, before+1, after)
	assert.Equal(t, float64(0), testutil.ToFloat64(httpInFlight))
}

func TestRecordAuthAndSweep(t *testing.T) {
	before := testutil.ToFloat64(authOperations.WithLabelValues("login", "invalid_credentials"))
	RecordAuth("login", "invalid_credentials")
	assert.Equal(t, before+1, testutil.ToFloat64(authOperations.WithLabelValues("login", "invalid_credentials")))

	swept := testutil.ToFloat64(sessionsSwept)
	RecordSweep(0)
	RecordSweep(3)
	assert.Equal(t, swept+3, testutil.ToFloat64(sessionsSwept))
}
