package transform

import (
	"github.com/nerrad567/bosun-core/internal/decoder"
	"github.com/nerrad567/bosun-core/internal/device"
	"github.com/nerrad567/bosun-core/internal/patch"
)

// DeviceTypeAnchor is the device type the anchor view is built from. The
// pipeline records the decoder name as the type, so discovered sensors match.
const DeviceTypeAnchor = decoder.AnchorName

// Anchor projects the anchor watch subsystem under "anchor".
//
// The source is the first device whose type is DeviceType. Without a typed
// device, the first device reporting rode_length is used. When no device
// qualifies the key is left out.
type Anchor struct {
	DeviceType string
}

// Name implements Transformer.
func (Anchor) Name() string { return "anchor" }

// Project implements Transformer.
func (t Anchor) Project(devices []device.Device) *patch.Object {
	out := patch.NewObject()
	src := t.source(devices)
	if src == nil {
		return out
	}

	m := src.Metrics
	view := patch.NewObject().Set("source", src.Address)
	for _, flag := range []string{"deployed", "dragging", "critical_range"} {
		if v, ok := m[flag]; ok {
			view.Set(flag, v)
		}
	}
	if v, ok := m["rode_length"]; ok {
		view.Set("rode_length", v)
	}
	if loc := location(m, "latitude", "longitude"); loc != nil {
		view.Set("current_location", loc)
	}
	if loc := location(m, "drop_latitude", "drop_longitude"); loc != nil {
		view.Set("drop_location", loc)
	}
	return out.Set("anchor", view)
}

func (t Anchor) source(devices []device.Device) *device.Device {
	want := t.DeviceType
	if want == "" {
		want = DeviceTypeAnchor
	}
	for i := range devices {
		if devices[i].Type == want {
			return &devices[i]
		}
	}
	for i := range devices {
		if _, ok := devices[i].Metrics["rode_length"]; ok {
			return &devices[i]
		}
	}
	return nil
}

func location(m map[string]any, latKey, lonKey string) *patch.Object {
	lat, okLat := m[latKey]
	lon, okLon := m[lonKey]
	if !okLat || !okLon {
		return nil
	}
	return patch.NewObject().Set("latitude", lat).Set("longitude", lon)
}
