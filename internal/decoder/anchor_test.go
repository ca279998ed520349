package decoder

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func anchorFrame(flags byte, lat, lon, dropLat, dropLon int32, rodeCM uint16) []byte {
	b := make([]byte, anchorLength)
	b[0] = anchorVersion
	b[1] = flags
	binary.LittleEndian.PutUint32(b[2:], uint32(lat))
	binary.LittleEndian.PutUint32(b[6:], uint32(lon))
	binary.LittleEndian.PutUint32(b[10:], uint32(dropLat))
	binary.LittleEndian.PutUint32(b[14:], uint32(dropLon))
	binary.LittleEndian.PutUint16(b[18:], rodeCM)
	return b
}

func TestAnchor_Deployed(t *testing.T) {
	frame := anchorFrame(anchorFlagDeployed|anchorFlagDragging, 501234567, -41234567, 501230000, -41230000, 3250)
	m, err := Anchor{}.Decode(frame, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if m["deployed"] != true || m["dragging"] != true || m["critical_range"] != false {
		t.Errorf("flags = %v %v %v", m["deployed"], m["dragging"], m["critical_range"])
	}
	if m["rode_length"] != 32.5 {
		t.Errorf("rode_length = %v", m["rode_length"])
	}
	for key, want := range map[string]float64{
		"latitude":       50.1234567,
		"longitude":      -4.1234567,
		"drop_latitude":  50.123,
		"drop_longitude": -4.123,
	} {
		got, ok := m[key].(float64)
		if !ok || math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", key, m[key], want)
		}
	}
}

func TestAnchor_Stowed(t *testing.T) {
	frame := anchorFrame(0, anchorNoFix, anchorNoFix, 501230000, -41230000, 0)
	m, err := Anchor{}.Decode(frame, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	for _, key := range []string{"latitude", "longitude", "drop_latitude", "drop_longitude"} {
		if _, ok := m[key]; ok {
			t.Errorf("%s present without fix or deployment", key)
		}
	}
	if m["version"] != anchorVersion || m["deployed"] != false {
		t.Errorf("metrics = %v", m)
	}
}

func TestAnchor_Version(t *testing.T) {
	frame := anchorFrame(0, 0, 0, 0, 0, 0)
	frame[0] = 2
	if _, err := (Anchor{}).Decode(frame, nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Decode() error = %v, want ErrUnsupportedFormat", err)
	}
}
