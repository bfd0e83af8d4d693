// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the custom collectors recorded by the service.
type Metrics struct {
	Enrollments     *prometheus.CounterVec
	CourseCreations *prometheus.CounterVec
	Compensations   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	Logins          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Enrollments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursehub_enrollments_total",
				Help: "Enrollment attempts by outcome",
			},
			[]string{"outcome"},
		),
		CourseCreations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursehub_course_creations_total",
				Help: "Course creation attempts by outcome",
			},
			[]string{"outcome"},
		),
		Compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursehub_compensations_total",
				Help: "Compensating writes by operation and result",
			},
			[]string{"operation", "result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursehub_http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursehub_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.Enrollments, m.CourseCreations, m.Compensations, m.HTTPRequests, m.Logins)
	return m
}

// NewRegistry returns a registry with the Go and process collectors and the
// service metrics registered. A private registry keeps tests independent.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, New(reg)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
