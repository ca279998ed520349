package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/bosun-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Token:   "t",
		Org:     "o",
		Bucket:  "b",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestUnconnectedClient(t *testing.T) {
	c := &Client{}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	// Writes on a closed client are dropped silently.
	c.WriteDeviceSample(DeviceSample{Address: "AA", Metrics: map[string]any{"v": 1.0}})
	c.WritePoint("m", nil, map[string]any{"v": 1})
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDevicePoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	point := devicePoint(DeviceSample{
		Address:        "AA:BB:CC:DD:EE:FF",
		Type:           "battery",
		ManufacturerID: 0x02E1,
		Metrics: map[string]any{
			"voltage":   12.84,
			"alarm":     true,
			"model":     "SmartShunt",
			"remaining": 540,
		},
		ObservedAt: at,
	})
	if point == nil {
		t.Fatal("devicePoint() = nil")
	}

	if point.Name() != MeasurementBLE {
		t.Errorf("Name() = %q", point.Name())
	}
	if !point.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", point.Time(), at)
	}

	tags := map[string]string{}
	for _, tag := range point.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["address"] != "AA:BB:CC:DD:EE:FF" || tags["type"] != "battery" || tags["manufacturer"] != "0x02E1" {
		t.Errorf("tags = %v", tags)
	}

	fields := map[string]any{}
	for _, f := range point.FieldList() {
		fields[f.Key] = f.Value
	}
	if len(fields) != 3 {
		t.Errorf("fields = %v, want voltage, alarm and remaining", fields)
	}
	if fields["alarm"] != 1.0 {
		t.Errorf("alarm = %v, want 1", fields["alarm"])
	}
	if _, ok := fields["model"]; ok {
		t.Error("string metric written as field")
	}
}

func TestDevicePoint_NoNumericFields(t *testing.T) {
	if p := devicePoint(DeviceSample{Metrics: map[string]any{"model": "x"}}); p != nil {
		t.Error("expected nil point when no numeric metrics")
	}
}
