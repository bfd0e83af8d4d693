package handler

import (
	"errors"
	"net/http"

	"coursehub/internal/auth"
	"coursehub/internal/view"
)

const (
	msgPasswordMismatch = "Passwords don't match. Please check."
	msgUsernameTaken    = "Username has been registered. Please check."
	msgInvalidRole      = "Please choose Student or Teacher as account type."
	msgMissingField     = "Please fill in all fields."
	msgAccountCreated   = "Account has been created. You can login now."
)

type RegistrationHandler struct {
	pages
}

func NewRegistrationHandler(sessions *auth.Manager, views *view.Renderer) *RegistrationHandler {
	return &RegistrationHandler{pages: pages{sessions: sessions, views: views}}
}

func (h *RegistrationHandler) RegisterPage(w http.ResponseWriter, r *http.Request) error {
	s := h.sessions.Load(r)
	return h.render(w, r, s, nil, view.PageRegister, "Register", nil)
}

func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) error {
	s := h.sessions.Load(r)
	if err := r.ParseForm(); err != nil {
		return h.flashRedirect(w, r, s, auth.FlashError, msgMissingField, "/register")
	}

	_, err := h.sessions.Register(r.Context(), auth.RegisterRequest{
		FullName:        r.FormValue("fullname"),
		Username:        r.FormValue("username"),
		Password:        r.FormValue("password"),
		PasswordConfirm: r.FormValue("password2"),
		Role:            r.FormValue("usertype"),
	})
	switch {
	case err == nil:
		return h.flashRedirect(w, r, s, auth.FlashNotice, msgAccountCreated, "/login")
	case errors.Is(err, auth.ErrPasswordMismatch):
		return h.flashRedirect(w, r, s, auth.FlashError, msgPasswordMismatch, "/register")
	case errors.Is(err, auth.ErrUsernameTaken):
		return h.flashRedirect(w, r, s, auth.FlashError, msgUsernameTaken, "/register")
	case errors.Is(err, auth.ErrInvalidRole):
		return h.flashRedirect(w, r, s, auth.FlashError, msgInvalidRole, "/register")
	case errors.Is(err, auth.ErrValidation):
		return h.flashRedirect(w, r, s, auth.FlashError, msgMissingField, "/register")
	}
	return err
}
