package decoder

import (
	"encoding/binary"
	"fmt"
	"net"
)

// RuuviTag data format 5 (RAWv2), all fields big-endian.
const (
	ruuviFormat5 = 0x05
	ruuviLength  = 24

	ruuviVoltageOffsetMV = 1600
	ruuviTxPowerOffset   = -40
)

var ruuviFields = []string{
	"temperature", "humidity", "pressure",
	"acceleration_x", "acceleration_y", "acceleration_z",
	"battery_voltage", "tx_power", "movement_counter", "measurement_sequence", "mac",
}

// Ruuvi decodes RuuviTag RAWv2 advertisements.
type Ruuvi struct{}

func (Ruuvi) Name() string     { return "ruuvi-rawv2" }
func (Ruuvi) Fields() []string { return ruuviFields }
func (Ruuvi) MinLength() int   { return ruuviLength }

// Decode ignores cfg. Fields carrying the format's "not available" value
// are omitted.
func (Ruuvi) Decode(data []byte, _ map[string]any) (Metrics, error) {
	r := newFieldReader(data, binary.BigEndian)

	format, err := r.u8()
	if err != nil {
		return nil, err
	}
	if format != ruuviFormat5 {
		return nil, fmt.Errorf("%w: ruuvi data format %d", ErrUnsupportedFormat, format)
	}

	temp, _ := r.i16()
	humidity, _ := r.u16()
	pressure, _ := r.u16()
	ax, _ := r.i16()
	ay, _ := r.i16()
	az, _ := r.i16()
	power, _ := r.u16()
	movement, _ := r.u8()
	seq, _ := r.u16()
	mac, err := r.bytes(6)
	if err != nil {
		return nil, err
	}

	m := Metrics{}
	if temp != -0x8000 {
		m["temperature"] = round2(float64(temp) * 0.005)
	}
	if humidity != 0xFFFF {
		m["humidity"] = round2(float64(humidity) * 0.0025)
	}
	if pressure != 0xFFFF {
		m["pressure"] = int(pressure) + 50000
	}
	for name, v := range map[string]int16{"acceleration_x": ax, "acceleration_y": ay, "acceleration_z": az} {
		if v != -0x8000 {
			m[name] = int(v)
		}
	}

	voltage := power >> 5
	txPower := power & 0x1F
	if voltage != 0x7FF {
		m["battery_voltage"] = float64(int(voltage)+ruuviVoltageOffsetMV) / 1000
	}
	if txPower != 0x1F {
		m["tx_power"] = int(txPower)*2 + ruuviTxPowerOffset
	}
	if movement != 0xFF {
		m["movement_counter"] = int(movement)
	}
	if seq != 0xFFFF {
		m["measurement_sequence"] = int(seq)
	}
	m["mac"] = net.HardwareAddr(mac).String()

	return m, nil
}
