// Package metrics exposes Bosun's Prometheus instrumentation.
//
// A Registry owns a private prometheus.Registry (never the global default)
// carrying the pipeline metrics plus Go runtime and process collectors.
// Recorder methods on *Metrics are nil-safe so components can run without
// instrumentation in tests.
package metrics
