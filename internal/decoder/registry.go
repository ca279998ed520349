package decoder

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// idLength is the size of the company identifier prefix.
const idLength = 2

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result is a successful decode.
type Result struct {
	ManufacturerID uint16
	Decoder        string
	Metrics        Metrics
}

// Registry maps manufacturer identifiers to decoders. It is owned by the
// pipeline that created it; there is no package-level registry.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	decoders map[uint16]Decoder
	logger   Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[uint16]Decoder),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register associates d with id. A later registration for the same id
// replaces the earlier one without error.
func (r *Registry) Register(id uint16, d Decoder) {
	r.mu.Lock()
	prev, replaced := r.decoders[id]
	r.decoders[id] = d
	r.mu.Unlock()

	if replaced {
		r.logger.Debug("decoder replaced",
			"manufacturer_id", fmt.Sprintf("0x%04X", id),
			"previous", prev.Name(),
			"decoder", d.Name(),
		)
	}
}

// Lookup returns the decoder registered for id.
func (r *Registry) Lookup(id uint16) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[id]
	return d, ok
}

// IDs returns the registered identifiers in ascending order.
func (r *Registry) IDs() []uint16 {
	r.mu.RLock()
	ids := make([]uint16, 0, len(r.decoders))
	for id := range r.decoders {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ManufacturerID reads the little-endian company identifier.
func ManufacturerID(payload []byte) (uint16, bool) {
	if len(payload) < idLength {
		return 0, false
	}
	return binary.LittleEndian.Uint16(payload), true
}

// DecodeFor decodes a full manufacturer-data payload with cfg.
//
// It returns an error wrapping ErrNoDecoder when nothing is registered for
// the identifier and a *DecodeError when the payload is too short or the
// decoder fails. Result.ManufacturerID is set whenever the payload carried
// an identifier, including on error.
func (r *Registry) DecodeFor(payload []byte, cfg map[string]any) (Result, error) {
	id, ok := ManufacturerID(payload)
	if !ok {
		return Result{}, &DecodeError{Reason: "payload too short", Err: ErrPayloadTooShort}
	}
	res := Result{ManufacturerID: id}

	d, ok := r.Lookup(id)
	if !ok {
		return res, fmt.Errorf("%w: 0x%04X", ErrNoDecoder, id)
	}
	res.Decoder = d.Name()

	data := payload[idLength:]
	if len(data) < d.MinLength() {
		return res, &DecodeError{
			ManufacturerID: id,
			Decoder:        d.Name(),
			Reason:         fmt.Sprintf("payload too short: %d < %d bytes", len(data), d.MinLength()),
			Err:            ErrPayloadTooShort,
		}
	}

	metrics, err := safeDecode(d, data, cfg)
	if err != nil {
		return res, &DecodeError{ManufacturerID: id, Decoder: d.Name(), Reason: err.Error(), Err: err}
	}

	res.Metrics = r.declared(d, metrics)
	return res, nil
}

// safeDecode runs d.Decode on a private copy of data, converting panics
// into ErrPanic.
func safeDecode(d Decoder, data []byte, cfg map[string]any) (m Metrics, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			m = nil
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()

	buf := make([]byte, len(data))
	copy(buf, data)

	m, err = d.Decode(buf, cfg)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = Metrics{}
	}
	return m, nil
}

// declared drops metrics not listed in d.Fields.
func (r *Registry) declared(d Decoder, m Metrics) Metrics {
	allowed := make(map[string]struct{}, len(d.Fields()))
	for _, f := range d.Fields() {
		allowed[f] = struct{}{}
	}

	out := make(Metrics, len(m))
	for k, v := range m {
		if _, ok := allowed[k]; !ok {
			r.logger.Debug("undeclared metric dropped", "decoder", d.Name(), "metric", k)
			continue
		}
		out[k] = v
	}
	return out
}
