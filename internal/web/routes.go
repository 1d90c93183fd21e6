package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eduvision/attendance/internal/attendance"
	"github.com/eduvision/attendance/internal/store"
	"github.com/eduvision/attendance/internal/web/handlers"
)

func (s *Server) setupRoutes(svc *attendance.Service, st store.Store) {
	identitiesHandler := handlers.NewIdentitiesHandler(svc, st, s.log)
	attendanceHandler := handlers.NewAttendanceHandler(svc, st, s.log)
	reportsHandler := handlers.NewReportsHandler(st, s.log)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/identities", identitiesHandler.Enroll)
		r.Get("/identities", identitiesHandler.List)
		r.Delete("/identities/{id}", identitiesHandler.Delete)
		r.Get("/identities/{id}/similar", identitiesHandler.Similar)

		r.Post("/attendance", attendanceHandler.Take)
		r.Get("/attendance/recent", attendanceHandler.Recent)

		r.Get("/reports/summary", reportsHandler.Summary)
		r.Get("/reports/daily", reportsHandler.Daily)
		r.Get("/reports/identities", reportsHandler.Identities)
		r.Get("/reports/sessions", reportsHandler.Sessions)
	})
}
