package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementBLE is the measurement every decoded advertisement is written to.
const MeasurementBLE = "ble_metrics"

// DeviceSample is the telemetry for one decoded advertisement.
type DeviceSample struct {
	Address        string
	Type           string
	ManufacturerID uint16
	Metrics        map[string]any
	ObservedAt     time.Time
}

// WriteDeviceSample queues one point for s. Non-numeric metrics are skipped;
// a sample with no numeric metric writes nothing.
func (c *Client) WriteDeviceSample(s DeviceSample) {
	if !c.IsConnected() {
		return
	}
	if point := devicePoint(s); point != nil {
		c.writeAPI.WritePoint(point)
	}
}

// WritePoint queues a point with arbitrary tags and fields stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func devicePoint(s DeviceSample) *write.Point {
	fields := make(map[string]any, len(s.Metrics))
	for name, v := range s.Metrics {
		if f, ok := numeric(v); ok {
			fields[name] = f
		}
	}
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{
		"address":      s.Address,
		"manufacturer": fmt.Sprintf("0x%04X", s.ManufacturerID),
	}
	if s.Type != "" {
		tags["type"] = s.Type
	}

	ts := s.ObservedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementBLE, tags, fields, ts)
}

// numeric converts metric values to float64. Booleans become 0 or 1 so
// alarm flags can be graphed.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
