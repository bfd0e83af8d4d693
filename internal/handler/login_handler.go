package handler

import (
	"errors"
	"net/http"
	"strings"

	"coursehub/internal/auth"
	"coursehub/internal/metrics"
	"coursehub/internal/view"
)

const (
	msgEmptyCredentials   = "Please enter your username and password."
	msgInvalidCredentials = "Invalid username or password."
)

type LoginHandler struct {
	pages
	metrics *metrics.Metrics
}

func NewLoginHandler(sessions *auth.Manager, views *view.Renderer, m *metrics.Metrics) *LoginHandler {
	return &LoginHandler{pages: pages{sessions: sessions, views: views}, metrics: m}
}

// LoginPage shows the form. A visitor who is already signed in is sent to
// the home page of their role.
func (h *LoginHandler) LoginPage(w http.ResponseWriter, r *http.Request) error {
	s := h.sessions.Load(r)
	ac, err := h.sessions.ResolveIdentity(r.Context(), s)
	if err != nil {
		return err
	}
	if ac.Authenticated() {
		return h.redirect(w, r, s, auth.HomePath(ac.Identity.Role))
	}
	return h.render(w, r, s, nil, view.PageLogin, "Log in", nil)
}

func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) error {
	s := h.sessions.Load(r)
	if err := r.ParseForm(); err != nil {
		return h.flashRedirect(w, r, s, auth.FlashError, msgEmptyCredentials, "/login")
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		return h.flashRedirect(w, r, s, auth.FlashError, msgEmptyCredentials, "/login")
	}

	u, err := h.sessions.Authenticate(r.Context(), username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.metrics.Logins.WithLabelValues("invalid").Inc()
		return h.flashRedirect(w, r, s, auth.FlashError, msgInvalidCredentials, "/login")
	}
	if err != nil {
		h.metrics.Logins.WithLabelValues("error").Inc()
		return err
	}

	h.metrics.Logins.WithLabelValues("ok").Inc()
	s.Begin(u)
	return h.redirect(w, r, s, auth.PostLoginPath(s, u))
}

// Logout ends the session and returns to the start page.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	s := h.sessions.Load(r)
	s.End()
	return h.redirect(w, r, s, "/")
}
