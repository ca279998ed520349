package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/bosun-core/internal/device"
)

// deviceView is a device as returned by the API: secrets masked, plus the
// stale flag.
type deviceView struct {
	*device.Device
	Stale bool `json:"stale"`
}

func (s *Server) view(d *device.Device, now time.Time) deviceView {
	return deviceView{Device: d.Redacted(), Stale: s.pipeline.Store().IsStale(d, now)}
}

// handleListDevices returns all devices in discovery order.
//
// Query parameters:
//   - stale: "true" returns only stale devices, "false" only fresh ones
//   - type: filter by device type
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	q := r.URL.Query()
	staleFilter := q.Get("stale")
	if staleFilter != "" && staleFilter != "true" && staleFilter != "false" {
		writeBadRequest(w, "stale must be true or false")
		return
	}
	typeFilter := q.Get("type")

	devices := s.pipeline.Store().List()
	views := make([]deviceView, 0, len(devices))
	for i := range devices {
		v := s.view(&devices[i], now)
		if staleFilter != "" && v.Stale != (staleFilter == "true") {
			continue
		}
		if typeFilter != "" && v.Type != typeFilter {
			continue
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device by address.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.pipeline.Store().Get(chi.URLParam(r, "address"))
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(dev, time.Now()))
}

// provisionRequest is the body of PUT /devices/{address}.
type provisionRequest struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// handleProvisionDevice creates or renames a device ahead of its first
// advertisement.
func (s *Server) handleProvisionDevice(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	address := chi.URLParam(r, "address")
	_, existsErr := s.pipeline.Store().Get(address)

	err := s.pipeline.Provision(r.Context(), address, device.Metadata{Name: req.Name, Type: req.Type}, req.Config)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	dev, err := s.pipeline.Store().Get(address)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}

	s.logger.Info("device provisioned", "address", dev.Address, "subject", r.Context().Value(ctxKeySubject))
	status := http.StatusOK
	if errors.Is(existsErr, device.ErrDeviceNotFound) {
		status = http.StatusCreated
	}
	writeJSON(w, status, s.view(dev, time.Now()))
}

// handleUpdateDeviceConfig merges the request body into the device config.
// A null value removes a key. The next advertisement is decoded with the
// new config; earlier failed payloads are not replayed.
func (s *Server) handleUpdateDeviceConfig(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(partial) == 0 {
		writeBadRequest(w, "config body must not be empty")
		return
	}

	address := chi.URLParam(r, "address")
	created, err := s.pipeline.UpdateConfig(r.Context(), address, partial)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	dev, err := s.pipeline.Store().Get(address)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	s.logger.Info("device config updated via API",
		"address", dev.Address,
		"keys", keys,
		"subject", r.Context().Value(ctxKeySubject),
	)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, s.view(dev, time.Now()))
}

func (s *Server) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, device.ErrInvalidAddress),
		errors.Is(err, device.ErrInvalidName),
		errors.Is(err, device.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("device operation failed", "error", err)
		writeInternalError(w, "device operation failed")
	}
}
