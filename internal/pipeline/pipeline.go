package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/bosun-core/internal/action"
	"github.com/nerrad567/bosun-core/internal/decoder"
	"github.com/nerrad567/bosun-core/internal/device"
	"github.com/nerrad567/bosun-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/bosun-core/internal/infrastructure/metrics"
	"github.com/nerrad567/bosun-core/internal/patch"
	"github.com/nerrad567/bosun-core/internal/publisher"
	"github.com/nerrad567/bosun-core/internal/rules"
	"github.com/nerrad567/bosun-core/internal/transform"
)

// Logger defines the logging interface used by the Pipeline.
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

// Telemetry receives every successfully decoded sample.
// *influxdb.Client satisfies it.
type Telemetry interface {
	WriteDeviceSample(s influxdb.DeviceSample)
}

// Namer resolves manufacturer names for log and metric labels.
type Namer interface {
	Name(id uint16) string
}

// Advertisement is one manufacturer-data payload seen from a device.
type Advertisement struct {
	Address string
	// Name is the advertised local name, used as the device name on first sight.
	Name string
	RSSI int
	// Payload is the manufacturer data including the 2-byte identifier.
	Payload    []byte
	ObservedAt time.Time
}

// Outcome reports what Ingest did with an advertisement. The resulting
// patch and rule actions are produced later by the refresher.
type Outcome struct {
	Address        string
	ManufacturerID uint16
	Decoder        string
	Created        bool
	Metrics        decoder.Metrics
}

// Unknown is an address whose manufacturer has no decoder.
type Unknown struct {
	Address        string    `json:"address"`
	ManufacturerID uint16    `json:"manufacturer_id"`
	Count          int       `json:"count"`
	LastSeen       time.Time `json:"last_seen"`
}

// Config wires the pipeline's collaborators. Decoders, Store, Transformer,
// Engine and Publisher are required.
type Config struct {
	Decoders    *decoder.Registry
	Store       *device.Store
	Transformer transform.Transformer
	Engine      *rules.Engine
	Publisher   *publisher.Publisher

	// Sink receives rule actions from Run. Nil discards them.
	Sink action.Sink
	// Env is passed to every rule evaluation.
	Env rules.Env

	Manufacturers Namer
	Telemetry     Telemetry
	Metrics       *metrics.Metrics
	Logger        Logger

	// ActionQueue is the capacity of the action queue (default 128).
	ActionQueue int
	// SweepInterval is how often Run expires metrics and flushes the store
	// (default one minute).
	SweepInterval time.Duration
}

// Pipeline is the running core.
//
// Thread Safety: all methods are safe for concurrent use.
type Pipeline struct {
	decoders    *decoder.Registry
	store       *device.Store
	transformer transform.Transformer
	engine      *rules.Engine
	publisher   *publisher.Publisher
	sink        action.Sink
	env         rules.Env
	names       Namer
	telemetry   Telemetry
	metrics     *metrics.Metrics
	logger      Logger

	actions chan rules.Action
	sweep   time.Duration

	// pending holds at most one refresh request; requests made while a
	// refresh runs collapse into the next one.
	pending chan struct{}

	// publishMu serializes project, evaluate and publish.
	publishMu sync.Mutex

	unknownMu sync.Mutex
	unknown   map[string]*Unknown

	now func() time.Time
}

// New validates cfg and builds a Pipeline.
//
// Parameters:
//   - cfg: Collaborators; Decoders, Store, Transformer, Engine and Publisher
//     must be set
//
// Returns:
//   - *Pipeline: Ready to Ingest; call Run to dispatch actions and publish
//   - error: ErrMissingComponent naming the first absent collaborator
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Decoders == nil:
		return nil, fmt.Errorf("%w: decoders", ErrMissingComponent)
	case cfg.Store == nil:
		return nil, fmt.Errorf("%w: store", ErrMissingComponent)
	case cfg.Transformer == nil:
		return nil, fmt.Errorf("%w: transformer", ErrMissingComponent)
	case cfg.Engine == nil:
		return nil, fmt.Errorf("%w: engine", ErrMissingComponent)
	case cfg.Publisher == nil:
		return nil, fmt.Errorf("%w: publisher", ErrMissingComponent)
	}

	p := &Pipeline{
		decoders:    cfg.Decoders,
		store:       cfg.Store,
		transformer: cfg.Transformer,
		engine:      cfg.Engine,
		publisher:   cfg.Publisher,
		sink:        cfg.Sink,
		env:         cfg.Env,
		names:       cfg.Manufacturers,
		telemetry:   cfg.Telemetry,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		sweep:       cfg.SweepInterval,
		unknown:     make(map[string]*Unknown),
		pending:     make(chan struct{}, 1),
		now:         time.Now,
	}
	if p.sink == nil {
		p.sink = action.Multi()
	}
	if p.env == nil {
		p.env = rules.Env{}
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	if p.sweep <= 0 {
		p.sweep = time.Minute
	}
	size := cfg.ActionQueue
	if size <= 0 {
		size = 128
	}
	p.actions = make(chan rules.Action, size)
	return p, nil
}

// Ingest decodes one advertisement and merges it into the store. A decode
// failure or an unknown manufacturer is reported in the error but leaves
// every other device untouched.
//
// Ingest does not wait for projection or rule evaluation. It signals the
// refresher started by Run, which republishes the whole fleet once for any
// number of merges that arrive while it is busy.
//
// Parameters:
//   - ctx: Request context
//   - adv: The advertisement; Address and Payload are required
//
// Returns:
//   - *Outcome: Decode result; non-nil whenever the address was valid
//   - error: ErrInvalidAdvertisement, decoder.ErrNoDecoder,
//     decoder.ErrDecodeFailure or a store error
func (p *Pipeline) Ingest(ctx context.Context, adv Advertisement) (*Outcome, error) {
	start := p.now()
	defer p.metrics.ObserveIngest(start)

	addr, err := device.NormalizeAddress(adv.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAdvertisement, err)
	}
	if len(adv.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidAdvertisement)
	}
	observed := adv.ObservedAt
	if observed.IsZero() {
		observed = p.now()
	}

	res, err := p.decoders.DecodeFor(adv.Payload, p.store.Config(addr))
	out := &Outcome{Address: addr, ManufacturerID: res.ManufacturerID, Decoder: res.Decoder}
	if err != nil {
		return out, p.decodeFailed(addr, res, err, observed)
	}

	created, err := p.store.Upsert(addr, device.Metadata{
		Name:           adv.Name,
		Type:           res.Decoder,
		ManufacturerID: res.ManufacturerID,
	})
	if err != nil {
		return out, err
	}
	if err := p.store.MergeMetrics(addr, res.Metrics, observed); err != nil {
		return out, err
	}
	out.Created = created
	out.Metrics = res.Metrics

	p.metrics.Advertisement(metrics.ResultDecoded)
	if created {
		p.metrics.SetDevices(p.store.Count())
	}
	p.writeTelemetry(addr, res, observed)

	p.requestRefresh()
	return out, nil
}

func (p *Pipeline) decodeFailed(addr string, res decoder.Result, err error, observed time.Time) error {
	if errors.Is(err, decoder.ErrNoDecoder) {
		p.metrics.Advertisement(metrics.ResultUnknown)
		p.rememberUnknown(addr, res.ManufacturerID, observed)
		p.logger.Debug("no decoder for manufacturer", "address", addr, "manufacturer_id", res.ManufacturerID)
		return err
	}

	p.metrics.Advertisement(metrics.ResultFailed)
	p.metrics.DecodeFailure(fmt.Sprintf("0x%04X", res.ManufacturerID))
	known := p.store.RecordFailure(addr, err)
	p.logger.Warn("decode failed",
		"address", addr,
		"manufacturer_id", res.ManufacturerID,
		"manufacturer", p.manufacturerName(res.ManufacturerID),
		"decoder", res.Decoder,
		"known", known,
		"reason", err.Error(),
	)
	return err
}

func (p *Pipeline) writeTelemetry(addr string, res decoder.Result, observed time.Time) {
	if p.telemetry == nil {
		return
	}
	p.telemetry.WriteDeviceSample(influxdb.DeviceSample{
		Address:        addr,
		Type:           res.Decoder,
		ManufacturerID: res.ManufacturerID,
		Metrics:        res.Metrics,
		ObservedAt:     observed,
	})
}

// requestRefresh wakes the refresher without blocking.
func (p *Pipeline) requestRefresh() {
	select {
	case p.pending <- struct{}{}:
	default:
	}
}

// Refresh re-projects the store and publishes any difference before
// returning. External callers use it after direct store edits.
func (p *Pipeline) Refresh(ctx context.Context) []patch.Operation {
	ops, _ := p.refresh(ctx)
	return ops
}

// refresh takes one frozen copy of the store, evaluates rules against its
// projection and publishes the diff.
func (p *Pipeline) refresh(ctx context.Context) ([]patch.Operation, []rules.Action) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	snapshot := p.transformer.Project(p.store.List())

	actions, failures := p.engine.EvaluateDetailed(snapshot, p.env)
	for _, f := range failures {
		p.metrics.RuleFailure(f.Rule)
	}
	for _, a := range actions {
		p.enqueue(ctx, a)
	}

	ops := p.publisher.Advance(snapshot)
	p.metrics.Patch(len(ops))
	return ops, actions
}

func (p *Pipeline) enqueue(ctx context.Context, a rules.Action) {
	select {
	case <-ctx.Done():
		p.metrics.Action(a.Type, metrics.ActionDropped)
		return
	default:
	}
	select {
	case p.actions <- a:
	default:
		p.metrics.Action(a.Type, metrics.ActionDropped)
		p.logger.Warn("action queue full, action dropped", "rule", a.Rule, "type", a.Type)
	}
}

// Run delivers queued actions to the sink and periodically expires metrics
// and flushes the store until ctx is cancelled. On return the store is
// flushed one last time.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.sweep)
	defer ticker.Stop()

	refresherDone := make(chan struct{})
	go p.refresher(ctx, refresherDone)

	for {
		select {
		case <-ctx.Done():
			<-refresherDone
			p.drain()
			p.flush(context.WithoutCancel(ctx))
			return nil
		case a := <-p.actions:
			p.dispatch(ctx, a)
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// refresher serves requestRefresh until ctx is cancelled.
func (p *Pipeline) refresher(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.pending:
			p.refresh(ctx)
		}
	}
}

// drain discards actions still queued at shutdown.
func (p *Pipeline) drain() {
	for {
		select {
		case a := <-p.actions:
			p.metrics.Action(a.Type, metrics.ActionDropped)
		default:
			return
		}
	}
}

func (p *Pipeline) dispatch(ctx context.Context, a rules.Action) {
	if err := p.sink.Dispatch(ctx, a); err != nil {
		p.metrics.Action(a.Type, metrics.ActionFailed)
		p.logger.Error("action dispatch failed", "rule", a.Rule, "type", a.Type, "error", err)
		return
	}
	p.metrics.Action(a.Type, metrics.ActionDispatched)
}

// Sweep expires old metrics, republishes if anything changed and flushes
// dirty devices to the repository.
func (p *Pipeline) Sweep(ctx context.Context) {
	now := p.now()
	if expired := p.store.ExpireMetrics(now); len(expired) > 0 {
		p.logger.Debug("metrics expired", "devices", len(expired))
		p.refresh(ctx)
	}
	if stale := p.store.Stale(now); len(stale) > 0 {
		p.logger.Debug("stale devices", "addresses", stale)
	}
	p.flush(ctx)
}

func (p *Pipeline) flush(ctx context.Context) {
	n, err := p.store.Flush(ctx)
	if err != nil {
		if errors.Is(err, device.ErrNoRepository) {
			return
		}
		p.logger.Error("flushing devices failed", "saved", n, "error", err)
		return
	}
	if n > 0 {
		p.logger.Debug("devices flushed", "saved", n)
	}
}

// UpdateConfig merges partial into a device's config. Earlier failed
// payloads are not replayed; the next advertisement is decoded with the new
// config.
func (p *Pipeline) UpdateConfig(ctx context.Context, address string, partial map[string]any) (bool, error) {
	created, err := p.store.UpdateConfig(address, partial)
	if err != nil {
		return created, err
	}
	if created {
		p.metrics.SetDevices(p.store.Count())
		p.refresh(ctx)
	}
	return created, nil
}

// Provision registers a device before it is first seen, with its name,
// type and config. Existing metadata is overwritten.
func (p *Pipeline) Provision(ctx context.Context, address string, meta device.Metadata, cfg map[string]any) error {
	if _, err := p.store.Upsert(address, device.Metadata{}); err != nil {
		return err
	}
	if err := p.store.Reconfigure(address, meta); err != nil {
		return err
	}
	if len(cfg) > 0 {
		if _, err := p.store.UpdateConfig(address, cfg); err != nil {
			return err
		}
	}
	p.metrics.SetDevices(p.store.Count())
	p.refresh(ctx)
	return nil
}

func (p *Pipeline) rememberUnknown(addr string, id uint16, seen time.Time) {
	p.unknownMu.Lock()
	defer p.unknownMu.Unlock()
	u, ok := p.unknown[addr]
	if !ok {
		u = &Unknown{Address: addr}
		p.unknown[addr] = u
	}
	u.ManufacturerID = id
	u.Count++
	if seen.After(u.LastSeen) {
		u.LastSeen = seen
	}
}

// Unknown returns addresses seen with unsupported manufacturers, sorted by
// address.
func (p *Pipeline) Unknown() []Unknown {
	p.unknownMu.Lock()
	defer p.unknownMu.Unlock()
	out := make([]Unknown, 0, len(p.unknown))
	for _, u := range p.unknown {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Store returns the device store.
func (p *Pipeline) Store() *device.Store { return p.store }

// Publisher returns the patch publisher.
func (p *Pipeline) Publisher() *publisher.Publisher { return p.publisher }

func (p *Pipeline) manufacturerName(id uint16) string {
	if p.names == nil {
		return fmt.Sprintf("0x%04X", id)
	}
	return p.names.Name(id)
}
