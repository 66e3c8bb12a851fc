package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Badshah-h/v0-production-grade-review/internal/audit"
	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
	"github.com/Badshah-h/v0-production-grade-review/internal/obs"
)

const serviceName = "agentdeck-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Pinger is a dependency the readiness probe must reach.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe pings every configured dependency.
type ReadyProbe struct {
	Deps    map[string]Pinger
	Timeout time.Duration
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	timeout := rp.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for name, dep := range rp.Deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// authService is the slice of auth.Service the HTTP layer calls.
type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.AuthResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.AuthResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (auth.User, error)
	CurrentOrganization(ctx context.Context, user auth.User) (auth.Organization, error)
	GetOrganizationUsers(ctx context.Context, organizationID string, page auth.PageRequest) (auth.UserPage, error)
	UpdateUserRole(ctx context.Context, targetID string, role auth.Role, actingID string) (auth.User, error)
	DeactivateUser(ctx context.Context, targetID, actingID string) error
	HasPermission(user *auth.User, perm auth.Permission) bool
}

// API is the HTTP layer.
type API struct {
	router     *mux.Router
	auth       authService
	readyProbe readinessChecker
	version    string
	log        logrus.FieldLogger

	corsOrigins   []string
	maxBodyBytes  int64
	rateBurst     int
	ratePerSec    float64
	secureCookies bool
}

// Option configures API.
type Option func(*API)

// WithCORSOrigins sets the origins allowed to call the API with credentials.
func WithCORSOrigins(origins ...string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

// WithRateLimit sets the per-IP token bucket applied to credential endpoints.
// A zero rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		a.ratePerSec = perSecond
		a.rateBurst = burst
	}
}

// WithSecureCookies marks the auth cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(a *API) { a.secureCookies = secure }
}

// WithLogger overrides the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

func New(svc authService, rp readinessChecker, version string, opts ...Option) *API {
	a := &API{
		router:       mux.NewRouter(),
		auth:         svc,
		readyProbe:   rp,
		version:      version,
		log:          obs.Logger(),
		maxBodyBytes: 1 << 20,
		rateBurst:    10,
		ratePerSec:   5,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.readyProbe == nil {
		a.readyProbe = ReadyProbe{}
	}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router
	notFound := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "resource not found")
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notAllowed

	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	limited := func(h http.HandlerFunc) http.Handler {
		if a.ratePerSec <= 0 {
			return h
		}
		return RateLimit(h, a.rateBurst, a.ratePerSec)
	}
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.NotFoundHandler = notFound
	v1.MethodNotAllowedHandler = notAllowed
	v1.Handle("/auth/register", limited(a.handleRegister)).Methods(http.MethodPost)
	v1.Handle("/auth/login", limited(a.handleLogin)).Methods(http.MethodPost)
	v1.Handle("/auth/logout", a.withAuth(http.HandlerFunc(a.handleLogout))).Methods(http.MethodPost)
	v1.Handle("/auth/me", a.withAuth(http.HandlerFunc(a.handleMe))).Methods(http.MethodGet)

	v1.Handle("/users", a.withAuth(http.HandlerFunc(a.handleListUsers))).Methods(http.MethodGet)
	v1.Handle("/users/{id}/role", a.withAuth(http.HandlerFunc(a.handleUpdateRole))).Methods(http.MethodPatch)
	v1.Handle("/users/{id}", a.withAuth(http.HandlerFunc(a.handleDeactivateUser))).Methods(http.MethodDelete)
}

// Handler returns the router wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		a.log.WithError(err).Warn("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) audit(ctx context.Context, event string, fields logrus.Fields) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		a.log.WithError(err).Warn("audit log failed")
	}
}

// --- helpers ---

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, RequestID: audit.RequestIDFromContext(r.Context())})
}

// writeServiceError maps auth failures onto status codes. The client message
// only carries detail for validation failures.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		a.log.WithError(err).WithField("request_id", audit.RequestIDFromContext(r.Context())).Error("request failed")
	}
	writeError(w, r, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrSessionRevoked):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, auth.ErrCrossTenant):
		return http.StatusForbidden, "cannot modify users from a different organization"
	case errors.Is(err, auth.ErrInsufficientPermission):
		return http.StatusForbidden, "insufficient permission"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, auth.ErrOrganizationNotFound):
		return http.StatusNotFound, "organization not found"
	case errors.Is(err, auth.ErrPersistence):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// validationMessage strips the package prefix from a validation error.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, auth.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(auth.ErrValidation.Error())+2:]
	}
	return "invalid request"
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body too large", auth.ErrValidation)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is required", auth.ErrValidation)
		default:
			return fmt.Errorf("%w: malformed JSON body", auth.ErrValidation)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", auth.ErrValidation)
	}
	return nil
}
