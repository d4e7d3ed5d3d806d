package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes(deps Deps) {
	attendanceHandler := handlers.NewAttendanceHandler(deps.Attendance, s.log)
	trackersHandler := handlers.NewTrackersHandler(deps.Trackers)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck(deps.Info))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(deps.APIToken))
			r.Get("/attendance", attendanceHandler.List)
			r.Get("/trackers", trackersHandler.List)
		})
	})
}
