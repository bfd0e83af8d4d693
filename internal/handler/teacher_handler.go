package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"coursehub/internal/auth"
	"coursehub/internal/enrollment"
	"coursehub/internal/entity"
	"coursehub/internal/view"
)

const (
	msgInvalidDraft  = "Please provide a course name and a non-negative price."
	msgCreateFailed  = "Error with creating your course. Please check with admin."
	msgCourseCreated = "Course has been created."
)

type TeacherHandlers struct {
	pages
	courses entity.CourseCatalog
	coord   *enrollment.Coordinator
}

func NewTeacherHandlers(sessions *auth.Manager, views *view.Renderer, courses entity.CourseCatalog, coord *enrollment.Coordinator) *TeacherHandlers {
	return &TeacherHandlers{pages: pages{sessions: sessions, views: views}, courses: courses, coord: coord}
}

// Index lists the teacher's courses with their roster size.
func (h *TeacherHandlers) Index(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
	courses, err := h.courses.ListByIDs(r.Context(), ac.Identity.Courses)
	if err != nil {
		return err
	}
	return h.render(w, r, ac.Session, ac.Identity, view.PageTeacherIndex, "My courses", courses)
}

func (h *TeacherHandlers) CreatePage(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
	return h.render(w, r, ac.Session, ac.Identity, view.PageTeacherCreate, "New course", nil)
}

func (h *TeacherHandlers) Create(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
	if err := r.ParseForm(); err != nil {
		return h.flashRedirect(w, r, ac.Session, auth.FlashError, msgInvalidDraft, "/teacher/create")
	}

	price := 0.0
	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return h.flashRedirect(w, r, ac.Session, auth.FlashError, msgInvalidDraft, "/teacher/create")
		}
		price = p
	}

	_, err := h.coord.CreateCourse(r.Context(), ac.Identity.ID, enrollment.Draft{
		Name:        r.FormValue("courseName"),
		Description: r.FormValue("description"),
		Price:       price,
	})
	switch {
	case err == nil:
		return h.flashRedirect(w, r, ac.Session, auth.FlashNotice, msgCourseCreated, "/teacher/index")
	case errors.Is(err, enrollment.ErrInvalidDraft):
		return h.flashRedirect(w, r, ac.Session, auth.FlashError, msgInvalidDraft, "/teacher/create")
	case errors.Is(err, enrollment.ErrUserNotFound), errors.Is(err, enrollment.ErrNotTeacher):
		return h.flashRedirect(w, r, ac.Session, auth.FlashError, msgAccountMismatch, "/teacher/create")
	case errors.Is(err, enrollment.ErrCourseCreationFailed):
		return h.flashRedirect(w, r, ac.Session, auth.FlashError, msgCreateFailed, "/teacher/create")
	}
	return err
}
