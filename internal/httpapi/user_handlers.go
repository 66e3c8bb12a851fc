package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Badshah-h/v0-production-grade-review/internal/audit"
	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
)

type updateRoleRequest struct {
	Role string `json:"role"`
}

type userResponse struct {
	User auth.User `json:"user"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requirePermission(w, r, auth.PermManageUsers, auth.PermManageTeamUsers)
	if !ok {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	res, err := a.auth.GetOrganizationUsers(r.Context(), user.OrganizationID, page)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if res.Users == nil {
		res.Users = []auth.User{}
	}
	writeJSON(w, http.StatusOK, res)
}

// pageFromQuery reads ?page= and ?limit=. Absent values take the defaults.
func pageFromQuery(r *http.Request) (auth.PageRequest, error) {
	var page auth.PageRequest
	q := r.URL.Query()
	for name, dst := range map[string]*int{"page": &page.Page, "limit": &page.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return auth.PageRequest{}, fmt.Errorf("%w: %s must be an integer", auth.ErrValidation, name)
		}
		*dst = n
	}
	return page, nil
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	acting, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	targetID := mux.Vars(r)["id"]
	updated, err := a.auth.UpdateUserRole(r.Context(), targetID, role, acting.ID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), audit.EventRoleChange, logrus.Fields{
		"target_user_id": updated.ID,
		"new_role":       string(updated.Role),
	})
	writeJSON(w, http.StatusOK, userResponse{User: updated})
}

func (a *API) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	acting, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}
	targetID := mux.Vars(r)["id"]
	if err := a.auth.DeactivateUser(r.Context(), targetID, acting.ID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), audit.EventUserDeactivate, logrus.Fields{"target_user_id": targetID})
	w.WriteHeader(http.StatusNoContent)
}
