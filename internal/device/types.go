package device

import (
	"strings"
	"time"
)

// Device is one sensor known to the store, keyed by its hardware address.
type Device struct {
	Address        string         `json:"address"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	ManufacturerID uint16         `json:"manufacturer_id"`
	LastSeen       *time.Time     `json:"last_seen,omitempty"`
	Metrics        map[string]any `json:"metrics"`
	Config         map[string]any `json:"config,omitempty"`

	// MetricSeen records when each metric was last decoded.
	MetricSeen map[string]time.Time `json:"-"`

	DecodeFailures int    `json:"decode_failures"`
	LastError      string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Metadata is the descriptive part of a device.
type Metadata struct {
	Name           string `json:"name,omitempty"`
	Type           string `json:"type,omitempty"`
	ManufacturerID uint16 `json:"manufacturer_id,omitempty"`
}

// DeepCopy creates a deep copy of the device.
// Nested maps and slices in Metrics and Config are copied too, so the
// result shares nothing mutable with the original.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Metrics = deepCopyMap(d.Metrics)
	cpy.Config = deepCopyMap(d.Config)

	if d.MetricSeen != nil {
		cpy.MetricSeen = make(map[string]time.Time, len(d.MetricSeen))
		for k, v := range d.MetricSeen {
			cpy.MetricSeen[k] = v
		}
	}
	if d.LastSeen != nil {
		t := *d.LastSeen
		cpy.LastSeen = &t
	}
	return &cpy
}

// Redacted returns a copy with secret config values masked, for API output.
func (d *Device) Redacted() *Device {
	cpy := d.DeepCopy()
	if cpy == nil {
		return nil
	}
	for k := range cpy.Config {
		if isSecretKey(k) {
			cpy.Config[k] = redactedValue
		}
	}
	return cpy
}

const redactedValue = "********"

var secretMarkers = []string{"key", "secret", "password", "token"}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	for _, m := range secretMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	case []byte:
		cpy := make([]byte, len(val))
		copy(cpy, val)
		return cpy
	default:
		return v
	}
}
