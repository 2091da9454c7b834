// Package metrics exposes tracker counters and gauges to Prometheus.
//
// Collector satisfies engine.Recorder, counts roster reloads, instruments
// gRPC handlers through a unary interceptor and serves /metrics.
package metrics
