package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bosun"

// Advertisement outcomes.
const (
	ResultDecoded = "decoded"
	ResultUnknown = "unknown"
	ResultFailed  = "failed"
)

// Action dispatch outcomes.
const (
	ActionDispatched = "dispatched"
	ActionFailed     = "failed"
	ActionDropped    = "dropped"
)

// Metrics holds every Bosun collector.
type Metrics struct {
	Advertisements   *prometheus.CounterVec
	DecodeFailures   *prometheus.CounterVec
	Devices          prometheus.Gauge
	RuleFailures     *prometheus.CounterVec
	Actions          *prometheus.CounterVec
	PatchesPublished prometheus.Counter
	PatchOperations  prometheus.Counter
	Subscribers      prometheus.Gauge
	DroppedMessages  *prometheus.CounterVec
	IngestDuration   prometheus.Histogram
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		Advertisements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "advertisements_total",
				Help:      "Advertisements received, by outcome (decoded, unknown, failed).",
			},
			[]string{"result"},
		),
		DecodeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decoder",
				Name:      "failures_total",
				Help:      "Decode failures by manufacturer identifier.",
			},
			[]string{"manufacturer"},
		),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "devices",
			Help:      "Devices currently held in the store.",
		}),
		RuleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rules",
				Name:      "evaluation_failures_total",
				Help:      "Rule predicates that failed to evaluate.",
			},
			[]string{"rule"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rules",
				Name:      "actions_total",
				Help:      "Rule actions by type and dispatch status.",
			},
			[]string{"type", "status"},
		),
		PatchesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "patches_total",
			Help:      "Non-empty state patches broadcast.",
		}),
		PatchOperations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "patch_operations_total",
			Help:      "Operations contained in broadcast patches.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "subscribers",
			Help:      "Connected state subscribers.",
		}),
		DroppedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "publisher",
				Name:      "dropped_messages_total",
				Help:      "Subscriber messages dropped, by reason (queue_full, closed).",
			},
			[]string{"reason"},
		),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time from advertisement receipt to patch broadcast.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Advertisements, m.DecodeFailures, m.Devices, m.RuleFailures, m.Actions,
		m.PatchesPublished, m.PatchOperations, m.Subscribers, m.DroppedMessages,
		m.IngestDuration,
	}
}

// Registry pairs a private Prometheus registry with Bosun's metrics.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry registers Bosun metrics plus Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	reg.MustRegister(m.collectors()...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{prometheusRegistry: reg, Metrics: m}
}

// PrometheusRegistry returns the underlying registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}

// Advertisement counts one advertisement with the given outcome.
func (m *Metrics) Advertisement(result string) {
	if m == nil {
		return
	}
	m.Advertisements.WithLabelValues(result).Inc()
}

// DecodeFailure counts a decode failure for manufacturer (formatted 0xNNNN).
func (m *Metrics) DecodeFailure(manufacturer string) {
	if m == nil {
		return
	}
	m.DecodeFailures.WithLabelValues(manufacturer).Inc()
}

// SetDevices records the store size.
func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.Devices.Set(float64(n))
}

// RuleFailure counts a rule evaluation failure.
func (m *Metrics) RuleFailure(rule string) {
	if m == nil {
		return
	}
	m.RuleFailures.WithLabelValues(rule).Inc()
}

// Action counts an action of actionType with the given dispatch status.
func (m *Metrics) Action(actionType, status string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(actionType, status).Inc()
}

// Patch counts one broadcast patch of ops operations.
func (m *Metrics) Patch(ops int) {
	if m == nil || ops == 0 {
		return
	}
	m.PatchesPublished.Inc()
	m.PatchOperations.Add(float64(ops))
}

// SetSubscribers records the subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

// Dropped counts a subscriber message dropped for reason.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedMessages.WithLabelValues(reason).Inc()
}

// ObserveIngest records the duration of one ingest pass starting at start.
func (m *Metrics) ObserveIngest(start time.Time) {
	if m == nil {
		return
	}
	m.IngestDuration.Observe(time.Since(start).Seconds())
}
