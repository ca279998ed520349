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

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	// State stream (read-only, no auth)
	r.Get(s.wsCfg.Path, s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/state", s.handleGetState)
		r.Get("/unknown", s.handleListUnknown)

		r.Route("/manufacturers", func(r chi.Router) {
			r.Get("/", s.handleListManufacturers)
			r.Get("/{id}", s.handleGetManufacturer)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{address}", s.handleGetDevice)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Put("/{address}", s.handleProvisionDevice)
				r.Put("/{address}/config", s.handleUpdateDeviceConfig)
			})
		})

		r.Get("/events", s.handleListEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/advertisements", s.handleIngestAdvertisement)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.mqtt != nil {
		resp["mqtt_connected"] = s.mqtt.IsConnected()
	}
	writeJSON(w, http.StatusOK, resp)
}
