package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// CookieName carries the session token for browser clients.
	CookieName = "auth-token"
)

var errMissingToken = errors.New("missing bearer token")

// withAuth resolves the caller from a bearer header or the auth cookie and
// rejects the request when the token does not map to a live session.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := requestToken(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		user, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrPersistence) {
				a.writeServiceError(w, r, err)
				return
			}
			writeError(w, r, http.StatusUnauthorized, "unauthenticated")
			return
		}

		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission writes a 403 and returns false when the caller lacks every
// one of perms.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, perms ...auth.Permission) (auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return auth.User{}, false
	}
	for _, p := range perms {
		if a.auth.HasPermission(&user, p) {
			return user, true
		}
	}
	writeError(w, r, http.StatusForbidden, "insufficient permission")
	return auth.User{}, false
}

func requestToken(r *http.Request) (string, error) {
	if h := r.Header.Get(authHeader); strings.TrimSpace(h) != "" {
		return extractBearerToken(h)
	}
	if c, err := r.Cookie(CookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), nil
	}
	return "", errMissingToken
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingToken
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
