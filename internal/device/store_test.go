package device

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

const testAddr = "AA:BB:CC:DD:EE:FF"

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := NewStore(opts)
	s.now = func() time.Time { return t0 }
	return s
}

func TestStore_UpsertFirstWriteWins(t *testing.T) {
	s := newTestStore(t, Options{})

	created, err := s.Upsert("aa:bb:cc:dd:ee:ff", Metadata{Name: "House bank", ManufacturerID: 0x02E1})
	if err != nil || !created {
		t.Fatalf("Upsert() = %v, %v; want created", created, err)
	}
	created, err = s.Upsert(testAddr, Metadata{Name: "Renamed", Type: "battery", ManufacturerID: 0x0499})
	if err != nil || created {
		t.Fatalf("second Upsert() = %v, %v; want existing", created, err)
	}

	d, err := s.Get(testAddr)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Name != "House bank" {
		t.Errorf("Name = %q, want first write to win", d.Name)
	}
	if d.Type != "battery" {
		t.Errorf("Type = %q, want unset field filled", d.Type)
	}
	if d.ManufacturerID != 0x02E1 {
		t.Errorf("ManufacturerID = 0x%04X", d.ManufacturerID)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d", s.Count())
	}
}

func TestStore_Reconfigure(t *testing.T) {
	s := newTestStore(t, Options{})

	if err := s.Reconfigure(testAddr, Metadata{Name: "x"}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Reconfigure(unknown) error = %v", err)
	}

	s.Upsert(testAddr, Metadata{Name: "old", Type: "battery"})
	if err := s.Reconfigure(testAddr, Metadata{Name: "new"}); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	d, _ := s.Get(testAddr)
	if d.Name != "new" || d.Type != "battery" {
		t.Errorf("device = %+v", d)
	}
}

func TestStore_MergeMetrics(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Upsert(testAddr, Metadata{})

	if err := s.MergeMetrics(testAddr, map[string]any{"soc": 80.0, "voltage": 12.6}, t0); err != nil {
		t.Fatalf("MergeMetrics() error = %v", err)
	}
	later := t0.Add(time.Minute)
	if err := s.MergeMetrics(testAddr, map[string]any{"soc": 79.5}, later); err != nil {
		t.Fatalf("MergeMetrics() error = %v", err)
	}

	d, _ := s.Get(testAddr)
	want := map[string]any{"soc": 79.5, "voltage": 12.6}
	if !reflect.DeepEqual(d.Metrics, want) {
		t.Errorf("Metrics = %v, want %v", d.Metrics, want)
	}
	if d.LastSeen == nil || !d.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", d.LastSeen, later)
	}

	// An out-of-order observation does not move LastSeen backwards.
	s.MergeMetrics(testAddr, map[string]any{"voltage": 12.5}, t0)
	d, _ = s.Get(testAddr)
	if !d.LastSeen.Equal(later) {
		t.Errorf("LastSeen moved back to %v", d.LastSeen)
	}

	if err := s.MergeMetrics("11:22:33:44:55:66", map[string]any{"x": 1}, t0); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("MergeMetrics(unknown) error = %v", err)
	}
}

func TestStore_MergeMetricsIdempotent(t *testing.T) {
	metrics := map[string]any{"soc": 87.5, "nested": map[string]any{"a": []any{1, 2}}}

	once := newTestStore(t, Options{})
	once.Upsert(testAddr, Metadata{Name: "bank"})
	once.MergeMetrics(testAddr, metrics, t0)

	twice := newTestStore(t, Options{})
	twice.Upsert(testAddr, Metadata{Name: "bank"})
	twice.MergeMetrics(testAddr, metrics, t0)
	twice.MergeMetrics(testAddr, metrics, t0.Add(time.Second))

	a, _ := once.Get(testAddr)
	b, _ := twice.Get(testAddr)
	a.LastSeen, b.LastSeen = nil, nil
	a.MetricSeen, b.MetricSeen = nil, nil
	if !reflect.DeepEqual(a, b) {
		t.Errorf("merge not idempotent:\n once  %+v\n twice %+v", a, b)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Upsert(testAddr, Metadata{})
	s.MergeMetrics(testAddr, map[string]any{"list": []any{1}}, t0)

	d, _ := s.Get(testAddr)
	d.Metrics["list"].([]any)[0] = 99
	d.Metrics["extra"] = true

	again, _ := s.Get(testAddr)
	if again.Metrics["list"].([]any)[0] != 1 {
		t.Error("nested metric mutated through copy")
	}
	if _, ok := again.Metrics["extra"]; ok {
		t.Error("metric added through copy")
	}
}

func TestStore_UpdateConfig(t *testing.T) {
	s := newTestStore(t, Options{})

	created, err := s.UpdateConfig(testAddr, map[string]any{"encryption_key": "abc"})
	if err != nil || !created {
		t.Fatalf("UpdateConfig(unknown) = %v, %v; want created", created, err)
	}
	s.MergeMetrics(testAddr, map[string]any{"soc": 50.0}, t0)

	created, err = s.UpdateConfig(testAddr, map[string]any{"alias": "bank", "encryption_key": nil})
	if err != nil || created {
		t.Fatalf("UpdateConfig() = %v, %v", created, err)
	}

	d, _ := s.Get(testAddr)
	if !reflect.DeepEqual(d.Config, map[string]any{"alias": "bank"}) {
		t.Errorf("Config = %v", d.Config)
	}
	if d.Metrics["soc"] != 50.0 {
		t.Errorf("Metrics changed by config update: %v", d.Metrics)
	}
	if cfg := s.Config(testAddr); cfg["alias"] != "bank" {
		t.Errorf("Config() = %v", cfg)
	}
	if s.Config("00:00:00:00:00:00") != nil {
		t.Error("Config(unknown) != nil")
	}

	if _, err := s.UpdateConfig(testAddr, map[string]any{"bad": struct{}{}}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("UpdateConfig(bad) error = %v", err)
	}
}

func TestStore_RecordFailure(t *testing.T) {
	s := newTestStore(t, Options{})
	if s.RecordFailure(testAddr, errors.New("x")) {
		t.Error("RecordFailure(unknown) = true")
	}

	s.Upsert(testAddr, Metadata{})
	s.RecordFailure(testAddr, errors.New("key mismatch"))
	s.RecordFailure(testAddr, errors.New("missing key"))

	d, _ := s.Get(testAddr)
	if d.DecodeFailures != 2 || d.LastError != "missing key" {
		t.Errorf("failures = %d, last = %q", d.DecodeFailures, d.LastError)
	}

	s.MergeMetrics(testAddr, map[string]any{"soc": 1.0}, t0)
	d, _ = s.Get(testAddr)
	if d.LastError != "" {
		t.Errorf("LastError = %q after successful merge", d.LastError)
	}
}

func TestStore_ListCreationOrder(t *testing.T) {
	s := newTestStore(t, Options{})
	addrs := []string{"03", "01", "02"}
	for _, a := range addrs {
		s.Upsert(a, Metadata{})
	}

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d", len(list))
	}
	for i, d := range list {
		if d.Address != addrs[i] {
			t.Errorf("List()[%d] = %s, want %s", i, d.Address, addrs[i])
		}
	}
}

func TestStore_ExpireMetrics(t *testing.T) {
	s := newTestStore(t, Options{MetricTTL: 10 * time.Minute})
	s.Upsert(testAddr, Metadata{})
	s.MergeMetrics(testAddr, map[string]any{"old": 1}, t0)
	s.MergeMetrics(testAddr, map[string]any{"new": 2}, t0.Add(8*time.Minute))

	changed := s.ExpireMetrics(t0.Add(12 * time.Minute))
	if !reflect.DeepEqual(changed, []string{testAddr}) {
		t.Errorf("ExpireMetrics() = %v", changed)
	}
	d, _ := s.Get(testAddr)
	if !reflect.DeepEqual(d.Metrics, map[string]any{"new": 2}) {
		t.Errorf("Metrics = %v", d.Metrics)
	}

	if changed := s.ExpireMetrics(t0.Add(12 * time.Minute)); changed != nil {
		t.Errorf("second ExpireMetrics() = %v", changed)
	}

	disabled := newTestStore(t, Options{})
	disabled.Upsert(testAddr, Metadata{})
	disabled.MergeMetrics(testAddr, map[string]any{"old": 1}, t0)
	if changed := disabled.ExpireMetrics(t0.Add(24 * time.Hour)); changed != nil {
		t.Errorf("ExpireMetrics() with TTL 0 = %v", changed)
	}
}

func TestStore_Stale(t *testing.T) {
	s := newTestStore(t, Options{StaleAfter: 5 * time.Minute})
	s.Upsert("01", Metadata{})
	s.Upsert("02", Metadata{})
	s.Upsert("03", Metadata{}) // never seen
	s.MergeMetrics("01", map[string]any{"a": 1}, t0)
	s.MergeMetrics("02", map[string]any{"a": 1}, t0.Add(4*time.Minute))

	stale := s.Stale(t0.Add(6 * time.Minute))
	if !reflect.DeepEqual(stale, []string{"01"}) {
		t.Errorf("Stale() = %v", stale)
	}

	d, _ := s.Get("01")
	if !s.IsStale(d, t0.Add(6*time.Minute)) {
		t.Error("IsStale() = false")
	}
}

func TestStore_InvalidAddress(t *testing.T) {
	s := newTestStore(t, Options{})
	if _, err := s.Upsert("  ", Metadata{}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Upsert(blank) error = %v", err)
	}
	if _, err := s.Get(""); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Get(blank) error = %v", err)
	}
}

// Concurrent writers to different devices and to the same device, with
// readers checking that two metrics always written together never tear.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore(Options{})
	const devices = 8
	const writes = 200
	for i := 0; i < devices; i++ {
		s.Upsert(fmt.Sprintf("DEV-%d", i), Metadata{})
	}

	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		addr := fmt.Sprintf("DEV-%d", i)
		for w := 0; w < 2; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < writes; n++ {
					s.MergeMetrics(addr, map[string]any{"a": n, "b": n}, time.Now())
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < writes; n++ {
				d, err := s.Get(addr)
				if err != nil {
					t.Errorf("Get() error = %v", err)
					return
				}
				if d.Metrics["a"] != d.Metrics["b"] {
					t.Errorf("torn read: a=%v b=%v", d.Metrics["a"], d.Metrics["b"])
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; n < writes; n++ {
			_ = s.List()
		}
	}()
	wg.Wait()

	if s.Count() != devices {
		t.Errorf("Count() = %d", s.Count())
	}
}

type memoryRepo struct {
	mu      sync.Mutex
	devices map[string]Device
	order   []string
	failOn  string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{devices: map[string]Device{}}
}

func (m *memoryRepo) List(context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Device, 0, len(m.order))
	for _, a := range m.order {
		d := m.devices[a]
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (m *memoryRepo) GetByAddress(_ context.Context, address string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[address]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *memoryRepo) Save(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Address == m.failOn {
		return errors.New("disk full")
	}
	if _, ok := m.devices[d.Address]; !ok {
		m.order = append(m.order, d.Address)
	}
	m.devices[d.Address] = *d.DeepCopy()
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[address]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, address)
	return nil
}

func TestStore_FlushAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()

	s := newTestStore(t, Options{})
	if _, err := s.Flush(ctx); !errors.Is(err, ErrNoRepository) {
		t.Errorf("Flush() without repo error = %v", err)
	}
	s.SetRepository(repo)

	s.Upsert(testAddr, Metadata{Name: "bank"})
	s.UpdateConfig(testAddr, map[string]any{"encryption_key": "k"})
	s.MergeMetrics(testAddr, map[string]any{"soc": 90.0}, t0)
	s.Upsert("11:22:33:44:55:66", Metadata{})

	n, err := s.Flush(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Flush() = %d, %v; want 2", n, err)
	}
	if n, _ := s.Flush(ctx); n != 0 {
		t.Errorf("second Flush() saved %d clean devices", n)
	}

	s.MergeMetrics(testAddr, map[string]any{"soc": 89.0}, t0.Add(time.Minute))
	repo.failOn = testAddr
	if _, err := s.Flush(ctx); err == nil {
		t.Error("Flush() error = nil with failing repo")
	}
	repo.failOn = ""
	if n, err := s.Flush(ctx); err != nil || n != 1 {
		t.Errorf("retry Flush() = %d, %v; want 1", n, err)
	}

	restored := newTestStore(t, Options{MetricTTL: time.Hour})
	restored.SetRepository(repo)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if restored.Count() != 2 {
		t.Fatalf("Count() = %d", restored.Count())
	}
	d, _ := restored.Get(testAddr)
	if d.Name != "bank" || d.Metrics["soc"] != 89.0 || d.Config["encryption_key"] != "k" {
		t.Errorf("restored device = %+v", d)
	}
	// Restored metrics take LastSeen as their observation time.
	if changed := restored.ExpireMetrics(t0.Add(30 * time.Minute)); changed != nil {
		t.Errorf("ExpireMetrics() = %v", changed)
	}
}

func TestDevice_Redacted(t *testing.T) {
	d := &Device{Config: map[string]any{"encryption_key": "secret", "alias": "bank"}}
	r := d.Redacted()
	if r.Config["encryption_key"] != redactedValue || r.Config["alias"] != "bank" {
		t.Errorf("Redacted().Config = %v", r.Config)
	}
	if d.Config["encryption_key"] != "secret" {
		t.Error("Redacted mutated the original")
	}
	var nilDev *Device
	if nilDev.Redacted() != nil {
		t.Error("nil.Redacted() != nil")
	}
}
