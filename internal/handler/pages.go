package handler

import (
	"net/http"

	"coursehub/internal/auth"
	"coursehub/internal/entity"
	"coursehub/internal/view"
)

// pages renders views and moves pending flash messages into them.
type pages struct {
	sessions *auth.Manager
	views    *view.Renderer
}

// render pops the session flashes into the page, saves the session and writes
// the view.
func (p pages) render(w http.ResponseWriter, r *http.Request, s *auth.Session, user *entity.Identity, name, title string, data any) error {
	page := view.Page{
		Title:   title,
		User:    user,
		Notices: s.Flashes(auth.FlashNotice),
		Errors:  s.Flashes(auth.FlashError),
		Data:    data,
	}
	if err := p.sessions.Save(w, r, s); err != nil {
		return err
	}
	return p.views.Render(w, http.StatusOK, name, page)
}

// redirect saves the session and sends a 303 to target.
func (p pages) redirect(w http.ResponseWriter, r *http.Request, s *auth.Session, target string) error {
	if err := p.sessions.Save(w, r, s); err != nil {
		return err
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
	return nil
}

// flashRedirect adds a flash of the given kind and redirects.
func (p pages) flashRedirect(w http.ResponseWriter, r *http.Request, s *auth.Session, kind, msg, target string) error {
	s.AddFlash(kind, msg)
	return p.redirect(w, r, s, target)
}
