package decoder

import (
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Victron Instant Readout layout (vendor bytes after the company id):
//
//	0     record prefix, always 0x10
//	1-2   model id (LE)
//	3     readout record type
//	4-5   nonce / data counter (LE)
//	6     first byte of the device encryption key
//	7..   AES-128-CTR ciphertext
const (
	victronPrefix       = 0x10
	victronHeaderLength = 7

	victronSolarCharger   = 0x01
	victronBatteryMonitor = 0x02

	// Plaintext bit widths summed and rounded up to bytes.
	victronSolarLength   = 12
	victronBatteryLength = 15
)

// ConfigEncryptionKey is the device config key holding the 32 hex digit
// Instant Readout key.
const ConfigEncryptionKey = "encryption_key"

// Auxiliary input modes of a battery monitor.
const (
	auxStarterVoltage  = 0
	auxMidpointVoltage = 1
	auxTemperature     = 2
)

const kelvinOffset = 273.15

var victronFields = []string{
	"model_id", "record_type",
	// battery monitor
	"remaining_mins", "voltage", "alarm", "aux_mode", "starter_voltage",
	"midpoint_voltage", "temperature", "current", "consumed_ah", "soc",
	// solar charger
	"charge_state", "charger_error", "battery_voltage", "battery_current",
	"yield_today", "solar_power", "load_current",
}

// Victron decodes Victron Energy Instant Readout advertisements.
type Victron struct{}

func (Victron) Name() string     { return "victron-instant-readout" }
func (Victron) Fields() []string { return victronFields }
func (Victron) MinLength() int   { return victronHeaderLength + 1 }

// Decode decrypts the record with cfg["encryption_key"].
func (Victron) Decode(data []byte, cfg map[string]any) (Metrics, error) {
	if data[0] != victronPrefix {
		return nil, fmt.Errorf("%w: prefix 0x%02X", ErrUnsupportedFormat, data[0])
	}

	key, err := victronKey(cfg)
	if err != nil {
		return nil, err
	}
	if key[0] != data[6] {
		return nil, ErrKeyMismatch
	}

	modelID := binary.LittleEndian.Uint16(data[1:3])
	recordType := data[3]
	nonce := binary.LittleEndian.Uint16(data[4:6])

	plain, err := victronDecrypt(key, nonce, data[victronHeaderLength:])
	if err != nil {
		return nil, err
	}

	var m Metrics
	switch recordType {
	case victronBatteryMonitor:
		m, err = decodeBatteryMonitor(plain)
	case victronSolarCharger:
		m, err = decodeSolarCharger(plain)
	default:
		return nil, fmt.Errorf("%w: record type 0x%02X", ErrUnsupportedFormat, recordType)
	}
	if err != nil {
		return nil, err
	}

	m["model_id"] = int(modelID)
	m["record_type"] = int(recordType)
	return m, nil
}

func victronKey(cfg map[string]any) ([]byte, error) {
	raw, ok := cfg[ConfigEncryptionKey]
	if !ok || raw == nil {
		return nil, ErrMissingKey
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: expected hex string, got %T", ErrInvalidKey, raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrMissingKey
	}
	key, err := hex.DecodeString(s)
	if err != nil || len(key) != aes.BlockSize {
		return nil, fmt.Errorf("%w: want %d hex digits", ErrInvalidKey, aes.BlockSize*2)
	}
	return key, nil
}

// victronDecrypt applies AES-128-CTR where the counter block is the nonce
// as a little-endian 128-bit integer, incremented little-endian per block.
func victronDecrypt(key []byte, nonce uint16, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	out := make([]byte, len(ciphertext))
	var counter, stream [aes.BlockSize]byte
	for off := 0; off < len(ciphertext); off += aes.BlockSize {
		binary.LittleEndian.PutUint32(counter[:4], uint32(nonce)+uint32(off/aes.BlockSize))
		block.Encrypt(stream[:], counter[:])

		end := min(off+aes.BlockSize, len(ciphertext))
		for i := off; i < end; i++ {
			out[i] = ciphertext[i] ^ stream[i-off]
		}
	}
	return out, nil
}

func decodeBatteryMonitor(plain []byte) (Metrics, error) {
	if len(plain) < victronBatteryLength {
		return nil, fmt.Errorf("%w: battery monitor record %d < %d bytes",
			ErrPayloadTooShort, len(plain), victronBatteryLength)
	}

	r := newBitReader(plain)
	remaining, _ := r.unsigned(16)
	voltage, _ := r.signed(16)
	alarm, _ := r.unsigned(16)
	aux, _ := r.unsigned(16)
	auxMode, _ := r.unsigned(2)
	current, _ := r.signed(22)
	consumed, _ := r.unsigned(20)
	soc, err := r.unsigned(10)
	if err != nil {
		return nil, err
	}

	m := Metrics{
		"alarm":    int(alarm),
		"aux_mode": int(auxMode),
	}
	if remaining != 0xFFFF {
		m["remaining_mins"] = int(remaining)
	}
	if voltage != 0x7FFF {
		m["voltage"] = float64(voltage) / 100
	}
	switch auxMode {
	case auxStarterVoltage:
		m["starter_voltage"] = float64(int16(aux)) / 100
	case auxMidpointVoltage:
		m["midpoint_voltage"] = float64(aux) / 100
	case auxTemperature:
		m["temperature"] = round2(float64(aux)/100 - kelvinOffset)
	}
	if current != 0x1FFFFF {
		m["current"] = float64(current) / 1000
	}
	if consumed != 0xFFFFF {
		m["consumed_ah"] = -float64(consumed) / 10
	}
	if soc != 0x3FF {
		m["soc"] = float64(soc) / 10
	}
	return m, nil
}

func decodeSolarCharger(plain []byte) (Metrics, error) {
	if len(plain) < victronSolarLength {
		return nil, fmt.Errorf("%w: solar charger record %d < %d bytes",
			ErrPayloadTooShort, len(plain), victronSolarLength)
	}

	r := newBitReader(plain)
	state, _ := r.unsigned(8)
	chargerErr, _ := r.unsigned(8)
	voltage, _ := r.signed(16)
	current, _ := r.signed(16)
	yield, _ := r.unsigned(16)
	power, _ := r.unsigned(16)
	load, err := r.unsigned(9)
	if err != nil {
		return nil, err
	}

	m := Metrics{
		"charge_state":  int(state),
		"charger_error": int(chargerErr),
	}
	if voltage != 0x7FFF {
		m["battery_voltage"] = float64(voltage) / 100
	}
	if current != 0x7FFF {
		m["battery_current"] = float64(current) / 10
	}
	if yield != 0xFFFF {
		m["yield_today"] = float64(yield) / 100
	}
	if power != 0xFFFF {
		m["solar_power"] = int(power)
	}
	if load != 0x1FF {
		m["load_current"] = float64(load) / 10
	}
	return m, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
