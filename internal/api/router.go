package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// newRouter builds the full route table: a public group (health, login,
// websocket upgrade) and a bearer-auth-protected group for everything
// else. Middleware order mirrors a typical chi chain — request ID first
// so every subsequent log line carries it, then logging and recovery,
// then CORS and the body-size limit, so a panic in those or any route
// below is still caught.
func (s *Server) newRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/login", s.handleLogin)

		api.Group(func(protected chi.Router) {
			protected.Use(s.authMiddleware)

			protected.Post("/auth/ws-ticket", s.handleIssueWSTicket)

			protected.Get("/devices", s.handleListDevices)
			protected.Get("/devices/stats", s.handleDeviceStats)
			protected.Get("/devices/{id}", s.handleGetDevice)
			protected.Post("/devices/{id}/invoke", s.handleInvokeDevice)

			protected.Get("/products/{id}", s.handleGetProduct)

			protected.Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth reports readiness of the server's core dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": s.version})
}
