package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// Auth endpoints (no auth required)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Post("/forgot", s.handleForgotPassword)
		r.Post("/reset", s.handleResetPassword)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/api/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}/status", s.handleDeviceStatus)
		})

		r.Get("/api/telemetry", s.handleTelemetry)

		r.Route("/api/strips/{id}", func(r chi.Router) {
			r.Post("/cmd", s.handleSubmitCommand)
			r.Get("/cmds", s.handleCommandHistory)
		})

		r.Get("/api/cmd/{id}", s.handleCommandState)

		r.Get("/api/rooms/{room}/ai_report", s.handleRoomReport)
	})

	// WebSocket event stream (push-only, no auth)
	r.Get("/ws", s.handleWebSocket)

	return r
}
