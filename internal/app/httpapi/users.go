package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/recordstore/internal/app/auth"
	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/app/services/users"
	"github.com/R3E-Network/recordstore/internal/errors"
	internalhttputil "github.com/R3E-Network/recordstore/internal/httputil"
	"github.com/R3E-Network/recordstore/internal/middleware"
)

type sessionResponse struct {
	User  user.User  `json:"user"`
	Token auth.Token `json:"token"`
}

func (h *handler) userRoutes(r *mux.Router) {
	r.Handle("/users/register", h.public(h.register)).Methods(http.MethodPost)
	r.Handle("/users/login", h.public(h.login)).Methods(http.MethodPost)
	r.Handle("/users/me", h.user(h.me)).Methods(http.MethodGet)
	r.Handle("/users", h.admin(h.listUsers)).Methods(http.MethodGet)
	r.Handle("/users/{id}", h.user(h.getUser)).Methods(http.MethodGet)
	r.Handle("/users/{id}", h.user(h.updateUser)).Methods(http.MethodPut)
	r.Handle("/users/{id}", h.user(h.deleteUser)).Methods(http.MethodDelete)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.app.Users.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusCreated, u)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.app.Users.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusOK, u)
}

func (h *handler) writeSession(w http.ResponseWriter, r *http.Request, status int, u user.User) {
	token, err := h.auth.Issue(u)
	if err != nil {
		h.fail(w, r, errors.Internal("issue token", err))
		return
	}
	internalhttputil.WriteJSON(w, status, sessionResponse{User: u, Token: token})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Users.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, list)
}

// selfOrAdmin returns the path id when the caller may act on that user.
func selfOrAdmin(r *http.Request) (string, error) {
	id := mux.Vars(r)["id"]
	if id != middleware.GetUserID(r) && !isAdmin(r) {
		return "", errors.Forbidden("cannot access another user")
	}
	return id, nil
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := selfOrAdmin(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.app.Users.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := selfOrAdmin(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var payload users.Update
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.app.Users.Update(r.Context(), id, payload, isAdmin(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := selfOrAdmin(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.app.Users.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
