package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures freshness handling.
type Options struct {
	// StaleAfter flags a device as stale when nothing was decoded for it
	// for this long. Zero disables staleness.
	StaleAfter time.Duration

	// MetricTTL drops a metric that has not been refreshed for this long.
	// Zero keeps metrics until overwritten.
	MetricTTL time.Duration
}

// record is one device plus its own lock.
type record struct {
	mu    sync.RWMutex
	dev   *Device
	dirty bool
}

// Store holds every known device.
//
// All public methods are thread-safe. Returned devices are deep copies;
// callers can safely modify them.
type Store struct {
	mu      sync.RWMutex // guards records and order
	records map[string]*record
	order   []string

	opts   Options
	repo   Repository
	logger Logger
	now    func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore(opts Options) *Store {
	return &Store{
		records: make(map[string]*record),
		opts:    opts,
		logger:  noopLogger{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetRepository attaches persistence used by Load and Flush.
func (s *Store) SetRepository(repo Repository) {
	s.repo = repo
}

// lookup returns the record for a normalized address.
func (s *Store) lookup(address string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[address]
	return rec, ok
}

// getOrCreate returns the record for address, creating an empty device if
// needed. created reports whether this call added it.
func (s *Store) getOrCreate(address string) (rec *record, created bool) {
	if rec, ok := s.lookup(address); ok {
		return rec, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[address]; ok {
		return rec, false
	}

	now := s.now()
	rec = &record{
		dev: &Device{
			Address:    address,
			Metrics:    map[string]any{},
			MetricSeen: map[string]time.Time{},
			Config:     map[string]any{},
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		dirty: true,
	}
	s.records[address] = rec
	s.order = append(s.order, address)
	return rec, true
}

// Upsert creates the device on first sight. For an existing device only
// fields that are still unset are filled in; set fields are first-write-wins.
// Use Reconfigure to overwrite them.
func (s *Store) Upsert(address string, meta Metadata) (bool, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return false, err
	}
	if err := ValidateMetadata(meta); err != nil {
		return false, err
	}

	rec, created := s.getOrCreate(addr)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	changed := false
	if rec.dev.Name == "" && meta.Name != "" {
		rec.dev.Name = meta.Name
		changed = true
	}
	if rec.dev.Type == "" && meta.Type != "" {
		rec.dev.Type = meta.Type
		changed = true
	}
	if rec.dev.ManufacturerID == 0 && meta.ManufacturerID != 0 {
		rec.dev.ManufacturerID = meta.ManufacturerID
		changed = true
	}
	if changed {
		rec.touch(s.now())
	}

	if created {
		s.logger.Info("device discovered", "address", addr, "manufacturer_id", meta.ManufacturerID)
	}
	return created, nil
}

// Reconfigure overwrites metadata with the non-empty fields of meta.
func (s *Store) Reconfigure(address string, meta Metadata) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	if err := ValidateMetadata(meta); err != nil {
		return err
	}
	rec, ok := s.lookup(addr)
	if !ok {
		return ErrDeviceNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if meta.Name != "" {
		rec.dev.Name = meta.Name
	}
	if meta.Type != "" {
		rec.dev.Type = meta.Type
	}
	if meta.ManufacturerID != 0 {
		rec.dev.ManufacturerID = meta.ManufacturerID
	}
	rec.touch(s.now())

	s.logger.Info("device reconfigured", "address", addr, "name", rec.dev.Name, "type", rec.dev.Type)
	return nil
}

// MergeMetrics writes metrics key by key into the device, refreshes
// LastSeen and clears the last decode error. Metrics absent from the update
// keep their previous value.
func (s *Store) MergeMetrics(address string, metrics map[string]any, observedAt time.Time) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	rec, ok := s.lookup(addr)
	if !ok {
		return ErrDeviceNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	d := rec.dev
	for k, v := range metrics {
		d.Metrics[k] = deepCopyValue(v)
		d.MetricSeen[k] = observedAt
	}
	if d.LastSeen == nil || observedAt.After(*d.LastSeen) {
		t := observedAt
		d.LastSeen = &t
	}
	d.LastError = ""
	rec.touch(s.now())
	return nil
}

// Get returns a copy of the device at address.
func (s *Store) Get(address string) (*Device, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	rec, ok := s.lookup(addr)
	if !ok {
		return nil, ErrDeviceNotFound
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.dev.DeepCopy(), nil
}

// Config returns a copy of the device config, or nil for an unknown address.
func (s *Store) Config(address string) map[string]any {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil
	}
	rec, ok := s.lookup(addr)
	if !ok {
		return nil
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return deepCopyMap(rec.dev.Config)
}

// UpdateConfig merges partial into the device config without touching
// metrics. A nil value removes the key. Unknown addresses are created so
// secrets can be provisioned before the first sighting.
func (s *Store) UpdateConfig(address string, partial map[string]any) (bool, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return false, err
	}
	if err := ValidateConfig(partial); err != nil {
		return false, err
	}

	rec, created := s.getOrCreate(addr)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	merged := deepCopyMap(rec.dev.Config)
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range partial {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = deepCopyValue(v)
	}
	if err := ValidateConfig(merged); err != nil {
		return created, err
	}
	rec.dev.Config = merged
	rec.touch(s.now())

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.logger.Info("device config updated", "address", addr, "keys", keys, "created", created)
	return created, nil
}

// RecordFailure notes a decode failure against a known device. It reports
// false when the address is unknown.
func (s *Store) RecordFailure(address string, cause error) bool {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return false
	}
	rec, ok := s.lookup(addr)
	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.dev.DecodeFailures++
	if cause != nil {
		rec.dev.LastError = cause.Error()
	}
	rec.dirty = true
	return true
}

// List returns copies of every device in creation order. Each copy is
// taken under that device's read lock.
func (s *Store) List() []Device {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.order))
	for _, addr := range s.order {
		recs = append(recs, s.records[addr])
	}
	s.mu.RUnlock()

	devices := make([]Device, 0, len(recs))
	for _, rec := range recs {
		rec.mu.RLock()
		devices = append(devices, *rec.dev.DeepCopy())
		rec.mu.RUnlock()
	}
	return devices
}

// Count returns the number of known devices.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ExpireMetrics removes metrics older than the metric TTL and returns the
// addresses that lost at least one metric.
func (s *Store) ExpireMetrics(now time.Time) []string {
	if s.opts.MetricTTL <= 0 {
		return nil
	}
	cutoff := now.Add(-s.opts.MetricTTL)

	var changed []string
	s.each(func(addr string, rec *record) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		removed := 0
		for k, seen := range rec.dev.MetricSeen {
			if seen.Before(cutoff) {
				delete(rec.dev.Metrics, k)
				delete(rec.dev.MetricSeen, k)
				removed++
			}
		}
		if removed > 0 {
			rec.touch(s.now())
			changed = append(changed, addr)
			s.logger.Debug("metrics expired", "address", addr, "count", removed)
		}
	})
	return changed
}

// Stale returns the addresses not seen within StaleAfter, in creation
// order. Devices never seen are not stale.
func (s *Store) Stale(now time.Time) []string {
	if s.opts.StaleAfter <= 0 {
		return nil
	}
	cutoff := now.Add(-s.opts.StaleAfter)

	var stale []string
	s.each(func(addr string, rec *record) {
		rec.mu.RLock()
		defer rec.mu.RUnlock()
		if rec.dev.LastSeen != nil && rec.dev.LastSeen.Before(cutoff) {
			stale = append(stale, addr)
		}
	})
	return stale
}

// IsStale reports whether d has not been seen within StaleAfter.
func (s *Store) IsStale(d *Device, now time.Time) bool {
	if s.opts.StaleAfter <= 0 || d == nil || d.LastSeen == nil {
		return false
	}
	return d.LastSeen.Before(now.Add(-s.opts.StaleAfter))
}

// each calls fn for every record in creation order without holding the
// index lock during fn.
func (s *Store) each(fn func(addr string, rec *record)) {
	s.mu.RLock()
	addrs := make([]string, len(s.order))
	copy(addrs, s.order)
	recs := make([]*record, len(addrs))
	for i, a := range addrs {
		recs[i] = s.records[a]
	}
	s.mu.RUnlock()

	for i, rec := range recs {
		fn(addrs[i], rec)
	}
}

// Load replaces the store contents with the devices in the repository.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return ErrNoRepository
	}
	devices, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	records := make(map[string]*record, len(devices))
	order := make([]string, 0, len(devices))
	for i := range devices {
		d := devices[i].DeepCopy()
		if d.Metrics == nil {
			d.Metrics = map[string]any{}
		}
		if d.Config == nil {
			d.Config = map[string]any{}
		}
		d.MetricSeen = make(map[string]time.Time, len(d.Metrics))
		if d.LastSeen != nil {
			for k := range d.Metrics {
				d.MetricSeen[k] = *d.LastSeen
			}
		}
		records[d.Address] = &record{dev: d}
		order = append(order, d.Address)
	}

	s.mu.Lock()
	s.records = records
	s.order = order
	s.mu.Unlock()

	s.logger.Info("devices loaded", "count", len(devices))
	return nil
}

// Flush writes every dirty device to the repository and returns how many
// were saved. A device that fails to save stays dirty for the next call.
func (s *Store) Flush(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, ErrNoRepository
	}

	saved := 0
	var firstErr error
	s.each(func(addr string, rec *record) {
		if ctx.Err() != nil {
			return
		}
		rec.mu.Lock()
		if !rec.dirty {
			rec.mu.Unlock()
			return
		}
		snapshot := rec.dev.DeepCopy()
		rec.dirty = false
		rec.mu.Unlock()

		if err := s.repo.Save(ctx, snapshot); err != nil {
			rec.mu.Lock()
			rec.dirty = true
			rec.mu.Unlock()
			if firstErr == nil {
				firstErr = fmt.Errorf("saving device %s: %w", addr, err)
			}
			return
		}
		saved++
	})
	if firstErr == nil {
		firstErr = ctx.Err()
	}
	return saved, firstErr
}

// touch marks the record changed. Caller holds rec.mu.
func (rec *record) touch(now time.Time) {
	rec.dev.UpdatedAt = now
	rec.dirty = true
}
