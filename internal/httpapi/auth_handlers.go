package httpapi

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Badshah-h/v0-production-grade-review/internal/audit"
	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
)

type authResponse struct {
	User         auth.User         `json:"user"`
	Organization auth.Organization `json:"organization"`
	Token        string            `json:"token"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

type meResponse struct {
	User         auth.User         `json:"user"`
	Organization auth.Organization `json:"organization"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	res, err := a.auth.Register(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.setSessionCookie(w, res.Token, res.ExpiresAt)
	ctx := auth.ContextWithUser(r.Context(), res.User)
	a.audit(ctx, audit.EventRegister, logrus.Fields{"organization_slug": res.Organization.Slug})
	writeJSON(w, http.StatusCreated, authResponse(res))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	res, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.setSessionCookie(w, res.Token, res.ExpiresAt)
	a.audit(auth.ContextWithUser(r.Context(), res.User), audit.EventLogin, nil)
	writeJSON(w, http.StatusOK, authResponse(res))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.TokenFromContext(r.Context())
	if err := a.auth.Logout(r.Context(), token); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.clearSessionCookie(w)
	a.audit(r.Context(), audit.EventLogout, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}
	org, err := a.auth.CurrentOrganization(r.Context(), user)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: user, Organization: org})
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
