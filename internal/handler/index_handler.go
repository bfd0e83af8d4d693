package handler

import (
	"net/http"

	"coursehub/internal/auth"
	"coursehub/internal/view"
)

type IndexHandler struct {
	pages
}

func NewIndexHandler(sessions *auth.Manager, views *view.Renderer) *IndexHandler {
	return &IndexHandler{pages: pages{sessions: sessions, views: views}}
}

func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) error {
	s := h.sessions.Load(r)
	ac, err := h.sessions.ResolveIdentity(r.Context(), s)
	if err != nil {
		return err
	}
	return h.render(w, r, s, ac.Identity, view.PageIndex, "Welcome", nil)
}

func (h *IndexHandler) NotFound(w http.ResponseWriter, _ *http.Request) error {
	return h.views.RenderError(w, http.StatusNotFound, nil, "The page you are looking for does not exist.")
}

func (h *IndexHandler) Healthz(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := w.Write([]byte("ok"))
	return err
}
