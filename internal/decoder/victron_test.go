package decoder

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"
)

const testVictronKey = "0df4d0395b7d1a876c0c33ecb9e70dcd"

// victronPayload encrypts plain and frames it as a full advertisement
// including the Victron company id.
func victronPayload(t *testing.T, recordType byte, nonce uint16, plain []byte) []byte {
	t.Helper()
	key, err := hex.DecodeString(testVictronKey)
	if err != nil {
		t.Fatal(err)
	}
	cipher, err := victronDecrypt(key, nonce, plain)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte{0xE1, 0x02, victronPrefix, 0xA3, 0xA3, recordType, 0, 0, key[0]}
	binary.LittleEndian.PutUint16(payload[6:8], nonce)
	return append(payload, cipher...)
}

func batteryPlaintext(auxMode uint64, aux uint64) []byte {
	w := &bitWriter{}
	w.put(540, 16)        // remaining minutes
	w.putSigned(1284, 16) // 12.84 V
	w.put(0, 16)          // alarm
	w.put(aux, 16)
	w.put(auxMode, 2)
	w.putSigned(-3500, 22) // -3.5 A
	w.put(125, 20)         // 12.5 Ah consumed
	w.put(875, 10)         // 87.5 %
	for len(w.data) < victronBatteryLength {
		w.data = append(w.data, 0)
	}
	return w.data
}

func TestVictron_BatteryMonitor(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	cfg := map[string]any{ConfigEncryptionKey: testVictronKey}

	res, err := r.DecodeFor(victronPayload(t, victronBatteryMonitor, 0x1234, batteryPlaintext(auxStarterVoltage, 1250)), cfg)
	if err != nil {
		t.Fatalf("DecodeFor() error = %v", err)
	}
	if res.ManufacturerID != ManufacturerVictron {
		t.Errorf("ManufacturerID = 0x%04X", res.ManufacturerID)
	}

	want := Metrics{
		"model_id":        0xA3A3,
		"record_type":     victronBatteryMonitor,
		"remaining_mins":  540,
		"voltage":         12.84,
		"alarm":           0,
		"aux_mode":        auxStarterVoltage,
		"starter_voltage": 12.5,
		"current":         -3.5,
		"consumed_ah":     -12.5,
		"soc":             87.5,
	}
	assertMetrics(t, res.Metrics, want)
}

func TestVictron_BatteryTemperature(t *testing.T) {
	cfg := map[string]any{ConfigEncryptionKey: testVictronKey}
	payload := victronPayload(t, victronBatteryMonitor, 7, batteryPlaintext(auxTemperature, 29815))

	m, err := Victron{}.Decode(payload[idLength:], cfg)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m["temperature"] != 25.0 {
		t.Errorf("temperature = %v, want 25", m["temperature"])
	}
	if _, ok := m["starter_voltage"]; ok {
		t.Error("starter_voltage present in temperature mode")
	}
}

func TestVictron_SolarCharger(t *testing.T) {
	w := &bitWriter{}
	w.put(3, 8)           // bulk
	w.put(0, 8)           // no error
	w.putSigned(1352, 16) // 13.52 V
	w.putSigned(84, 16)   // 8.4 A
	w.put(0xFFFF, 16)     // yield unavailable
	w.put(115, 16)        // 115 W
	w.put(0x1FF, 9)       // no load output
	for len(w.data) < victronSolarLength {
		w.data = append(w.data, 0)
	}

	cfg := map[string]any{ConfigEncryptionKey: testVictronKey}
	payload := victronPayload(t, victronSolarCharger, 0xFFFF, w.data)
	m, err := Victron{}.Decode(payload[idLength:], cfg)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	assertMetrics(t, m, Metrics{
		"model_id":        0xA3A3,
		"record_type":     victronSolarCharger,
		"charge_state":    3,
		"charger_error":   0,
		"battery_voltage": 13.52,
		"battery_current": 8.4,
		"solar_power":     115,
	})
}

func TestVictron_Errors(t *testing.T) {
	payload := victronPayload(t, victronBatteryMonitor, 1, batteryPlaintext(auxStarterVoltage, 0))
	data := payload[idLength:]

	tests := []struct {
		name string
		data []byte
		cfg  map[string]any
		want error
	}{
		{"missing key", data, nil, ErrMissingKey},
		{"blank key", data, map[string]any{ConfigEncryptionKey: "  "}, ErrMissingKey},
		{"non-string key", data, map[string]any{ConfigEncryptionKey: 42}, ErrInvalidKey},
		{"short key", data, map[string]any{ConfigEncryptionKey: "0df4"}, ErrInvalidKey},
		{"non-hex key", data, map[string]any{ConfigEncryptionKey: "zzf4d0395b7d1a876c0c33ecb9e70dcd"}, ErrInvalidKey},
		{"wrong key", data, map[string]any{ConfigEncryptionKey: "ffffd0395b7d1a876c0c33ecb9e70dcd"}, ErrKeyMismatch},
		{"bad prefix", append([]byte{0x11}, data[1:]...), map[string]any{ConfigEncryptionKey: testVictronKey}, ErrUnsupportedFormat},
		{"truncated record", data[:victronHeaderLength+4], map[string]any{ConfigEncryptionKey: testVictronKey}, ErrPayloadTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Victron{}.Decode(tt.data, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVictron_KeyLifecycle(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	payload := victronPayload(t, victronBatteryMonitor, 99, batteryPlaintext(auxStarterVoltage, 1250))

	if _, err := r.DecodeFor(payload, map[string]any{}); !errors.Is(err, ErrMissingKey) || !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("without key error = %v", err)
	}
	if _, err := r.DecodeFor(payload, map[string]any{ConfigEncryptionKey: "00f4d0395b7d1a876c0c33ecb9e70dcd"}); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("wrong key error = %v", err)
	}
	res, err := r.DecodeFor(payload, map[string]any{ConfigEncryptionKey: testVictronKey})
	if err != nil {
		t.Fatalf("correct key error = %v", err)
	}
	if res.Metrics["soc"] != 87.5 {
		t.Errorf("soc = %v", res.Metrics["soc"])
	}
}

func assertMetrics(t *testing.T, got, want Metrics) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got %d metrics %v, want %d", len(got), got, len(want))
	}
	for k, w := range want {
		g, ok := got[k]
		if !ok {
			t.Errorf("metric %q missing", k)
			continue
		}
		if g != w {
			t.Errorf("metric %q = %v (%T), want %v (%T)", k, g, g, w, w)
		}
	}
}
