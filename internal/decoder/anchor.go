package decoder

import (
	"encoding/binary"
	"fmt"
)

// Anchor rode sensor frame, little-endian:
//
//	0      version (1)
//	1      flags: bit0 deployed, bit1 dragging, bit2 critical range
//	2-9    current latitude, longitude (int32, 1e-7 degrees)
//	10-17  drop latitude, longitude (int32, 1e-7 degrees)
//	18-19  rode length out (uint16, cm)
const (
	anchorVersion = 1
	anchorLength  = 20

	anchorFlagDeployed = 1 << 0
	anchorFlagDragging = 1 << 1
	anchorFlagCritical = 1 << 2

	coordinateScale = 1e-7

	// anchorNoFix marks a coordinate the sensor has no fix for.
	anchorNoFix = int32(0x7FFFFFFF)
)

var anchorFields = []string{
	"version", "deployed", "dragging", "critical_range",
	"latitude", "longitude", "drop_latitude", "drop_longitude", "rode_length",
}

// AnchorName is the decoder name, stored as the device type of every
// auto-discovered anchor sensor.
const AnchorName = "anchor-rode-sensor"

// Anchor decodes the ESP32 anchor rode sensor.
type Anchor struct{}

func (Anchor) Name() string     { return AnchorName }
func (Anchor) Fields() []string { return anchorFields }
func (Anchor) MinLength() int   { return anchorLength }

// Decode ignores cfg. Coordinates without a fix are omitted, as are drop
// coordinates while the anchor is not deployed.
func (Anchor) Decode(data []byte, _ map[string]any) (Metrics, error) {
	r := newFieldReader(data, binary.LittleEndian)

	version, err := r.u8()
	if err != nil {
		return nil, err
	}
	if version != anchorVersion {
		return nil, fmt.Errorf("%w: anchor frame version %d", ErrUnsupportedFormat, version)
	}

	flags, _ := r.u8()
	lat, _ := r.i32()
	lon, _ := r.i32()
	dropLat, _ := r.i32()
	dropLon, _ := r.i32()
	rode, err := r.u16()
	if err != nil {
		return nil, err
	}

	deployed := flags&anchorFlagDeployed != 0
	m := Metrics{
		"version":        int(version),
		"deployed":       deployed,
		"dragging":       flags&anchorFlagDragging != 0,
		"critical_range": flags&anchorFlagCritical != 0,
		"rode_length":    float64(rode) / 100,
	}
	if lat != anchorNoFix && lon != anchorNoFix {
		m["latitude"] = float64(lat) * coordinateScale
		m["longitude"] = float64(lon) * coordinateScale
	}
	if deployed && dropLat != anchorNoFix && dropLon != anchorNoFix {
		m["drop_latitude"] = float64(dropLat) * coordinateScale
		m["drop_longitude"] = float64(dropLon) * coordinateScale
	}
	return m, nil
}
