package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"coursehub/internal/auth"
	"coursehub/internal/entity"
	"coursehub/internal/logging"
	"coursehub/internal/view"
)

// MsgLoginFirst is flashed when an anonymous visitor hits a protected page.
const MsgLoginFirst = "Please login first before accessing this page."

// ErrForbiddenRole is logged when an identity reaches a page of another role.
var ErrForbiddenRole = errors.New("forbidden for role")

// AppHandler is an HTTP handler that reports unexpected failures to the
// error boundary instead of writing them itself.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// AuthedHandler additionally receives the resolved authentication context.
type AuthedHandler func(w http.ResponseWriter, r *http.Request, ac auth.Context) error

// Guard enforces authentication and role checks in front of handlers.
type Guard struct {
	sessions *auth.Manager
	views    *view.Renderer
	logger   *slog.Logger
}

func NewGuard(sessions *auth.Manager, views *view.Renderer, logger *slog.Logger) *Guard {
	return &Guard{sessions: sessions, views: views, logger: logger}
}

// RequireAuthenticated resolves the session identity. Anonymous GET and HEAD
// requests have their URL recorded as the return-to target; every anonymous
// request is redirected to /login with a flash.
func (g *Guard) RequireAuthenticated(next AuthedHandler) AppHandler {
	return func(w http.ResponseWriter, r *http.Request) error {
		s := g.sessions.Load(r)
		ac, err := g.sessions.ResolveIdentity(r.Context(), s)
		if err != nil {
			return err
		}

		if !ac.Authenticated() {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				s.CaptureReturnTo(r.URL.RequestURI())
			}
			s.AddFlash(auth.FlashError, MsgLoginFirst)
			if err := g.sessions.Save(w, r, s); err != nil {
				return err
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return nil
		}

		return next(w, r, ac)
	}
}

// RequireRole lets only identities of the given role through and renders the
// 403 page for everyone else.
func (g *Guard) RequireRole(role entity.Role, next AuthedHandler) AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
		if !ac.Authenticated() || !role.Valid() || ac.Identity.Role != role {
			var actual entity.Role
			if ac.Identity != nil {
				actual = ac.Identity.Role
			}
			g.logger.WarnContext(r.Context(), "access denied",
				"error", ErrForbiddenRole,
				"required", string(role),
				"actual", string(actual),
				"path", r.URL.Path,
			)
			return g.views.RenderError(w, http.StatusForbidden, ac.Identity, "This page is not available for your account type.")
		}
		return next(w, r, ac)
	}
}

// SameSite rejects requests a browser marks as cross-site. It guards GET
// routes that change state, where SameSite=Lax cookies are still sent on
// top-level navigation. Requests without Sec-Fetch-Site pass.
func (g *Guard) SameSite(next AuthedHandler) AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
		if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
			g.logger.WarnContext(r.Context(), "cross-site request rejected", "path", r.URL.Path)
			return g.views.RenderError(w, http.StatusForbidden, ac.Identity, "Please use the enroll link on the course search page.")
		}
		return next(w, r, ac)
	}
}

// Protect guards next with authentication and a role check behind the error
// boundary.
func (g *Guard) Protect(role entity.Role, next AuthedHandler) http.Handler {
	return g.Handle(g.RequireAuthenticated(g.RequireRole(role, next)))
}

// Handle adapts h to http.Handler. An error returned by h is logged and
// answered with the generic 500 page.
func (g *Guard) Handle(h AppHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		logging.LogError(r.Context(), g.logger, "request failed", err, "method", r.Method, "path", r.URL.Path)
		if rerr := g.views.RenderError(w, http.StatusInternalServerError, nil, "Something went wrong. Please try again later."); rerr != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})
}
