package handler

import (
	"errors"
	"net/http"
	"strings"

	"coursehub/internal/auth"
	"coursehub/internal/enrollment"
	"coursehub/internal/entity"
	"coursehub/internal/view"
)

const (
	msgEnrollFailed    = "Enrollment failed. Please try again."
	msgCourseNotFound  = "This course does not exist."
	msgAccountMismatch = "Your account cannot perform this action."
)

// FindData is the model of the course search page.
type FindData struct {
	Key      string
	Exact    bool
	Searched bool
	Courses  []*entity.Course
}

type StudentHandlers struct {
	pages
	courses entity.CourseCatalog
	coord   *enrollment.Coordinator
}

func NewStudentHandlers(sessions *auth.Manager, views *view.Renderer, courses entity.CourseCatalog, coord *enrollment.Coordinator) *StudentHandlers {
	return &StudentHandlers{pages: pages{sessions: sessions, views: views}, courses: courses, coord: coord}
}

// Index lists the courses the student is enrolled in.
func (h *StudentHandlers) Index(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
	courses, err := h.courses.ListByIDs(r.Context(), ac.Identity.Courses)
	if err != nil {
		return err
	}
	return h.render(w, r, ac.Session, ac.Identity, view.PageStudentIndex, "My courses", courses)
}

func (h *StudentHandlers) FindPage(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
	return h.render(w, r, ac.Session, ac.Identity, view.PageStudentFind, "Find courses", FindData{})
}

// Find searches the catalog by name. exact=1 switches from substring to
// exact matching.
func (h *StudentHandlers) Find(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
	q := r.URL.Query()
	data := FindData{
		Key:   strings.TrimSpace(q.Get("key")),
		Exact: q.Get("exact") == "1",
	}
	if data.Key != "" {
		filter := entity.CourseFilter{Name: data.Key, Mode: entity.MatchPartial}
		if data.Exact {
			filter.Mode = entity.MatchExact
		}
		courses, err := h.courses.Find(r.Context(), filter)
		if err != nil {
			return err
		}
		data.Searched = true
		data.Courses = courses
	}
	return h.render(w, r, ac.Session, ac.Identity, view.PageStudentFind, "Find courses", data)
}

// Enroll links the signed-in student to the course named in the path.
func (h *StudentHandlers) Enroll(w http.ResponseWriter, r *http.Request, ac auth.Context) error {
	res, err := h.coord.EnrollStudent(r.Context(), ac.Identity.ID, r.PathValue("id"))
	switch {
	case err == nil:
	case errors.Is(err, enrollment.ErrCourseNotFound):
		return h.flashRedirect(w, r, ac.Session, auth.FlashError, msgCourseNotFound, "/student/find")
	case errors.Is(err, enrollment.ErrUserNotFound), errors.Is(err, enrollment.ErrNotStudent):
		return h.flashRedirect(w, r, ac.Session, auth.FlashError, msgAccountMismatch, "/student/find")
	case errors.Is(err, enrollment.ErrEnrollmentFailed):
		return h.flashRedirect(w, r, ac.Session, auth.FlashError, msgEnrollFailed, "/student/find")
	default:
		return err
	}

	msg := "You have enrolled in " + res.Course.Name + "."
	if res.Outcome == enrollment.OutcomeAlreadyEnrolled {
		msg = "You are already enrolled in " + res.Course.Name + "."
	}
	return h.flashRedirect(w, r, ac.Session, auth.FlashNotice, msg, "/student/index")
}
