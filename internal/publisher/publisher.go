package publisher

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/bosun-core/internal/patch"
)

// Logger defines the logging interface used by the Publisher.
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

// Drop reasons passed to the drop hook.
const (
	DropQueueFull      = "queue_full"
	DropDeliveryFailed = "delivery_failed"
)

// DefaultBufferSize is the per-subscriber queue length when none is set.
const DefaultBufferSize = 256

// Publisher owns the current snapshot and the subscriber set.
type Publisher struct {
	mu       sync.Mutex // serializes publish, subscribe and resync
	snapshot *patch.Object
	subs     map[uint64]*Subscription
	nextID   uint64
	closed   bool

	bufferSize int
	logger     Logger
	onDrop     func(reason string)
	onCount    func(n int)
}

// New creates a publisher with an empty snapshot.
func New(bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Publisher{
		snapshot:   patch.NewObject(),
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetDropHook registers a callback invoked once per dropped message.
func (p *Publisher) SetDropHook(fn func(reason string)) {
	p.onDrop = fn
}

// SetCountHook registers a callback invoked with the subscriber count
// whenever it changes.
func (p *Publisher) SetCountHook(fn func(n int)) {
	p.onCount = fn
}

// Snapshot returns a copy of the current snapshot.
func (p *Publisher) Snapshot() *patch.Object {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot.Clone()
}

// Publish diffs prev against next, broadcasts the operations as a
// state:patch when there are any, and makes next the current snapshot.
// Neither argument is modified.
func (p *Publisher) Publish(prev, next *patch.Object) []patch.Operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishLocked(prev, next)
}

// Advance publishes next against the current snapshot.
func (p *Publisher) Advance(next *patch.Object) []patch.Operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishLocked(p.snapshot, next)
}

func (p *Publisher) publishLocked(prev, next *patch.Object) []patch.Operation {
	ops := patch.Diff(prev, next)
	p.snapshot = next.Clone()
	if p.snapshot == nil {
		p.snapshot = patch.NewObject()
	}
	if len(ops) == 0 {
		return ops
	}

	msg := Patch(ops)
	for _, sub := range p.ordered() {
		if sub.needsResync.Load() {
			// The subscriber missed a patch; a full update supersedes this one.
			if err := sub.enqueue(FullUpdate(p.snapshot.Clone())); err != nil {
				p.dropped(sub, err)
				continue
			}
			sub.needsResync.Store(false)
			continue
		}
		if err := sub.enqueue(msg); err != nil {
			p.dropped(sub, err)
		}
	}
	p.logger.Debug("patch published", "operations", len(ops), "subscribers", len(p.subs))
	return ops
}

// dropped records a failed enqueue. Caller holds p.mu.
func (p *Publisher) dropped(sub *Subscription, err error) {
	if errors.Is(err, ErrSubscriberQueueFull) {
		sub.needsResync.Store(true)
		sub.drops.Add(1)
		p.logger.Warn("subscriber queue full, message dropped", "subscriber", sub.id)
		if p.onDrop != nil {
			p.onDrop(DropQueueFull)
		}
	}
}

// ordered returns subscriptions by id so fan-out order is stable.
func (p *Publisher) ordered() []*Subscription {
	subs := make([]*Subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	return subs
}

// Subscribe registers o and starts its delivery goroutine. The preamble
// messages (such as system:welcome) are queued first, then a
// state:full-update of the current snapshot.
//
// Parameters:
//   - o: Receives messages in order on a dedicated goroutine
//   - preamble: Messages delivered before the full update
//
// Returns:
//   - *Subscription: Handle for Resync and Close
//   - error: ErrPublisherClosed after Close
func (p *Publisher) Subscribe(o Observer, preamble ...Message) (*Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPublisherClosed
	}

	p.nextID++
	size := p.bufferSize
	if need := len(preamble) + 1; size < need {
		size = need
	}
	sub := &Subscription{
		id:       p.nextID,
		pub:      p,
		observer: o,
		queue:    make(chan Message, size),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, m := range preamble {
		sub.queue <- m
	}
	sub.queue <- FullUpdate(p.snapshot.Clone())
	p.subs[sub.id] = sub
	n := len(p.subs)
	p.mu.Unlock()

	go sub.run()

	p.logger.Debug("subscriber added", "subscriber", sub.id, "subscribers", n)
	p.countChanged(n)
	return sub, nil
}

// Resync queues a fresh full update for sub.
func (p *Publisher) Resync(sub *Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subs[sub.id]; !ok {
		return ErrSubscriberClosed
	}
	if err := sub.enqueue(FullUpdate(p.snapshot.Clone())); err != nil {
		p.dropped(sub, err)
		return err
	}
	sub.needsResync.Store(false)
	return nil
}

// Unsubscribe removes sub and stops its delivery goroutine. It is safe to
// call more than once.
func (p *Publisher) Unsubscribe(sub *Subscription) {
	p.mu.Lock()
	_, ok := p.subs[sub.id]
	delete(p.subs, sub.id)
	n := len(p.subs)
	p.mu.Unlock()

	sub.stop()
	if ok {
		p.logger.Debug("subscriber removed", "subscriber", sub.id, "subscribers", n)
		p.countChanged(n)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Close removes every subscriber and rejects new ones.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	subs := p.ordered()
	p.subs = make(map[uint64]*Subscription)
	p.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	p.countChanged(0)
}

func (p *Publisher) countChanged(n int) {
	if p.onCount != nil {
		p.onCount(n)
	}
}

// Subscription is one observer's delivery path.
type Subscription struct {
	id       uint64
	pub      *Publisher
	observer Observer
	queue    chan Message

	done     chan struct{} // closed to stop delivery
	finished chan struct{} // closed when the goroutine exits
	stopOnce sync.Once

	needsResync atomic.Bool
	drops       atomic.Uint64
}

// ID returns the subscription id.
func (s *Subscription) ID() uint64 { return s.id }

// Dropped returns how many messages were dropped for this subscriber.
func (s *Subscription) Dropped() uint64 { return s.drops.Load() }

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.finished }

// Close unsubscribes.
func (s *Subscription) Close() {
	s.pub.Unsubscribe(s)
}

func (s *Subscription) enqueue(m Message) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}
	select {
	case s.queue <- m:
		return nil
	default:
		return ErrSubscriberQueueFull
	}
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Subscription) run() {
	defer close(s.finished)
	for {
		select {
		case <-s.done:
			return
		case m := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			if err := s.observer.Deliver(m); err != nil {
				s.pub.logger.Warn("subscriber delivery failed, dropping subscriber",
					"subscriber", s.id, "type", m.Type, "error", err)
				if s.pub.onDrop != nil {
					s.pub.onDrop(DropDeliveryFailed)
				}
				go s.pub.Unsubscribe(s)
				return
			}
			s.catchUp()
		}
	}
}

// catchUp queues a full update once the queue has drained after a drop,
// so the replica converges even when no further change is published.
func (s *Subscription) catchUp() {
	if !s.needsResync.Load() || len(s.queue) > 0 {
		return
	}
	if err := s.pub.Resync(s); err != nil && !errors.Is(err, ErrSubscriberClosed) {
		s.pub.logger.Warn("subscriber resync failed", "subscriber", s.id, "error", err)
	}
}
