// Package handler wires the HTTP routes of the site.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"coursehub/internal/auth"
	"coursehub/internal/enrollment"
	"coursehub/internal/entity"
	"coursehub/internal/metrics"
	"coursehub/internal/middleware"
	"coursehub/internal/view"
)

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Sessions    *auth.Manager
	Courses     entity.CourseCatalog
	Coordinator *enrollment.Coordinator
	Views       *view.Renderer
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	Logger      *slog.Logger
}

// NewRouter returns the complete handler chain of the site.
func NewRouter(d Deps) http.Handler {
	guard := middleware.NewGuard(d.Sessions, d.Views, d.Logger)

	index := NewIndexHandler(d.Sessions, d.Views)
	login := NewLoginHandler(d.Sessions, d.Views, d.Metrics)
	registration := NewRegistrationHandler(d.Sessions, d.Views)
	student := NewStudentHandlers(d.Sessions, d.Views, d.Courses, d.Coordinator)
	teacher := NewTeacherHandlers(d.Sessions, d.Views, d.Courses, d.Coordinator)

	mux := http.NewServeMux()

	mux.Handle("GET /{$}", guard.Handle(index.Index))
	mux.Handle("GET /healthz", guard.Handle(index.Healthz))
	mux.Handle("GET /metrics", metrics.Handler(d.Registry))

	mux.Handle("GET /login", guard.Handle(login.LoginPage))
	mux.Handle("POST /login", guard.Handle(login.Login))
	mux.Handle("GET /logout", guard.Handle(login.Logout))
	mux.Handle("GET /register", guard.Handle(registration.RegisterPage))
	mux.Handle("POST /register", guard.Handle(registration.Register))

	mux.Handle("GET /student/index", guard.Protect(entity.RoleStudent, student.Index))
	mux.Handle("GET /student/find", guard.Protect(entity.RoleStudent, student.FindPage))
	mux.Handle("GET /courses/find", guard.Protect(entity.RoleStudent, student.Find))
	// Enrolling is a GET so search results can link to it; cross-site
	// navigations are refused.
	mux.Handle("GET /courses/{id}", guard.Protect(entity.RoleStudent, guard.SameSite(student.Enroll)))

	mux.Handle("GET /teacher/index", guard.Protect(entity.RoleTeacher, teacher.Index))
	mux.Handle("GET /teacher/create", guard.Protect(entity.RoleTeacher, teacher.CreatePage))
	mux.Handle("POST /teacher/create", guard.Protect(entity.RoleTeacher, teacher.Create))

	mux.Handle("/", guard.Handle(index.NotFound))

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(d.Logger, d.Metrics),
		middleware.Recovery(d.Logger),
	)
}
