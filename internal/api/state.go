package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/bosun-core/internal/action"
	"github.com/nerrad567/bosun-core/internal/decoder"
	"github.com/nerrad567/bosun-core/internal/ingest"
	"github.com/nerrad567/bosun-core/internal/manufacturer"
	"github.com/nerrad567/bosun-core/internal/pipeline"
)

// handleGetState returns the current public snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Publisher().Snapshot())
}

// handleListManufacturers returns the catalog sorted by identifier.
func (s *Server) handleListManufacturers(w http.ResponseWriter, _ *http.Request) {
	entries := s.catalog.Entries()
	writeJSON(w, http.StatusOK, map[string]any{"manufacturers": entries, "count": len(entries)})
}

// handleGetManufacturer returns one entry and its parent chain. The id may
// be decimal or 0x-prefixed hex.
func (s *Server) handleGetManufacturer(w http.ResponseWriter, r *http.Request) {
	id, err := manufacturer.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid manufacturer id")
		return
	}
	family := s.catalog.Family(id)
	if len(family) == 0 {
		writeNotFound(w, "manufacturer not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"manufacturer": family[0], "family": family})
}

// handleListUnknown lists addresses advertising manufacturers without a decoder.
func (s *Server) handleListUnknown(w http.ResponseWriter, _ *http.Request) {
	unknown := s.pipeline.Unknown()
	writeJSON(w, http.StatusOK, map[string]any{"unknown": unknown, "count": len(unknown)})
}

// handleListEvents returns recorded rule events.
//
// Query parameters: rule, type, limit.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event recording is disabled")
		return
	}
	q := r.URL.Query()
	filter := action.EventFilter{Rule: q.Get("rule"), Type: q.Get("type")}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	events, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// ingestResponse reports what happened to a posted advertisement.
type ingestResponse struct {
	Status         string          `json:"status"`
	Address        string          `json:"address"`
	ManufacturerID uint16          `json:"manufacturer_id"`
	Decoder        string          `json:"decoder,omitempty"`
	Created        bool            `json:"created,omitempty"`
	Metrics        decoder.Metrics `json:"metrics,omitempty"`
}

// handleIngestAdvertisement runs one scanner message through the pipeline.
// An unknown manufacturer is accepted (202); a decode failure is 422.
func (s *Server) handleIngestAdvertisement(w http.ResponseWriter, r *http.Request) {
	var msg ingest.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	adv, err := msg.Advertisement()
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	out, err := s.pipeline.Ingest(r.Context(), adv)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ingestResponse{
			Status:         "decoded",
			Address:        out.Address,
			ManufacturerID: out.ManufacturerID,
			Decoder:        out.Decoder,
			Created:        out.Created,
			Metrics:        out.Metrics,
		})
	case errors.Is(err, decoder.ErrNoDecoder):
		writeJSON(w, http.StatusAccepted, ingestResponse{
			Status:         "unknown_manufacturer",
			Address:        out.Address,
			ManufacturerID: out.ManufacturerID,
		})
	case errors.Is(err, decoder.ErrDecodeFailure):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeDecodeFailure, err.Error())
	case errors.Is(err, pipeline.ErrInvalidAdvertisement):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.writeDeviceError(w, err)
	}
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	Site          string         `json:"site"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Subscribers   int            `json:"subscribers"`
	MQTTConnected *bool          `json:"mqtt_connected,omitempty"`
	Devices       DeviceCounts   `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DeviceCounts summarises the store.
type DeviceCounts struct {
	Total   int `json:"total"`
	Stale   int `json:"stale"`
	Unknown int `json:"unknown"`
}

// handleStatus returns runtime and pipeline statistics.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	now := time.Now()

	resp := StatusResponse{
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       s.version,
		Site:          s.site.ID,
		UptimeSeconds: int64(now.Sub(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Subscribers: s.pipeline.Publisher().SubscriberCount(),
		Devices: DeviceCounts{
			Total:   s.pipeline.Store().Count(),
			Stale:   len(s.pipeline.Store().Stale(now)),
			Unknown: len(s.pipeline.Unknown()),
		},
	}
	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		resp.MQTTConnected = &connected
	}
	writeJSON(w, http.StatusOK, resp)
}
