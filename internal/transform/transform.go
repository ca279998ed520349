package transform

import (
	"sort"
	"time"

	"github.com/nerrad567/bosun-core/internal/device"
	"github.com/nerrad567/bosun-core/internal/patch"
)

// Transformer builds part of the public snapshot from the device list.
type Transformer interface {
	Name() string
	Project(devices []device.Device) *patch.Object
}

// Namer resolves manufacturer names. *manufacturer.Catalog satisfies it.
type Namer interface {
	Name(id uint16) string
}

// Devices projects every device under "devices", keyed by address, in
// store order.
type Devices struct {
	Manufacturers Namer
}

// Name implements Transformer.
func (Devices) Name() string { return "devices" }

// Project implements Transformer.
func (t Devices) Project(devices []device.Device) *patch.Object {
	all := patch.NewObject()
	for i := range devices {
		d := &devices[i]
		view := patch.NewObject().
			Set("name", d.Name).
			Set("type", d.Type).
			Set("manufacturer_id", int(d.ManufacturerID))
		if t.Manufacturers != nil {
			view.Set("manufacturer", t.Manufacturers.Name(d.ManufacturerID))
		}
		if d.LastSeen != nil {
			view.Set("last_seen", d.LastSeen.UTC().Format(time.RFC3339))
		}
		view.Set("metrics", metricsObject(d.Metrics))
		all.Set(d.Address, view)
	}
	return patch.NewObject().Set("devices", all)
}

// metricsObject orders metric keys alphabetically so that map iteration
// order never leaks into the snapshot.
func metricsObject(m map[string]any) *patch.Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	o := patch.NewObject()
	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			o.Set(k, patch.FromMap(nested))
			continue
		}
		o.Set(k, v)
	}
	return o
}

// Composite merges the output of several transformers. Top-level keys
// appear in transformer order; a later transformer overwrites an earlier
// one's key.
type Composite []Transformer

// Name implements Transformer.
func (Composite) Name() string { return "composite" }

// Project implements Transformer.
func (c Composite) Project(devices []device.Device) *patch.Object {
	out := patch.NewObject()
	for _, t := range c {
		part := t.Project(devices)
		for _, k := range part.Keys() {
			v, _ := part.Get(k)
			out.Set(k, v)
		}
	}
	return out
}
