package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/oshokin/uwb-tracker/internal/engine"
)

// namespace prefixes every metric name.
const namespace = "uwb_tracker"

// Collector bundles the tracker metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Observations  *prometheus.CounterVec
	Solves        *prometheus.CounterVec
	RosterReloads *prometheus.CounterVec
	RPCRequests   *prometheus.CounterVec
	RPCDurations  *prometheus.HistogramVec

	RosterTags    prometheus.Gauge
	RosterAnchors prometheus.Gauge
	TrackedTags   prometheus.Gauge
	OnlineAnchors prometheus.Gauge
}

// NewCollector registers tracker metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		Observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Inbound messages processed by the engine, labeled by outcome.",
		}, []string{"outcome"}),
		Solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Position solve attempts, labeled by result.",
		}, []string{"result"}),
		RosterReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_reloads_total",
			Help:      "Roster reload attempts, labeled by result.",
		}, []string{"result"}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Handled gRPC requests, labeled by method and status code.",
		}, []string{"method", "code"}),
		RPCDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
		RosterTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_tags",
			Help:      "Tags in the current roster.",
		}),
		RosterAnchors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_anchors",
			Help:      "Anchors in the current roster.",
		}),
		TrackedTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_tags",
			Help:      "Tags with at least one buffered observation.",
		}),
		OnlineAnchors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_anchors",
			Help:      "Anchors currently marked online.",
		}),
	}

	collectors := []prometheus.Collector{
		c.Observations, c.Solves, c.RosterReloads, c.RPCRequests, c.RPCDurations,
		c.RosterTags, c.RosterAnchors, c.TrackedTags, c.OnlineAnchors,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}

			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return c, nil
}

// ObservationProcessed implements engine.Recorder.
func (c *Collector) ObservationProcessed(outcome engine.Outcome) {
	c.Observations.WithLabelValues(string(outcome)).Inc()
}

// PositionSolved implements engine.Recorder.
func (c *Collector) PositionSolved(ok bool) {
	result := "solved"
	if !ok {
		result = "insufficient"
	}

	c.Solves.WithLabelValues(result).Inc()
}

// RosterApplied implements engine.Recorder.
func (c *Collector) RosterApplied(tags, anchors int) {
	c.RosterTags.Set(float64(tags))
	c.RosterAnchors.Set(float64(anchors))
}

// StateSize implements engine.Recorder.
func (c *Collector) StateSize(trackedTags, onlineAnchors int) {
	c.TrackedTags.Set(float64(trackedTags))
	c.OnlineAnchors.Set(float64(onlineAnchors))
}

// RosterReloaded counts a reload attempt.
func (c *Collector) RosterReloaded(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	c.RosterReloads.WithLabelValues(result).Inc()
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		method := ""
		if info != nil {
			method = info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]
		}

		c.RPCRequests.WithLabelValues(method, status.Code(err).String()).Inc()
		c.RPCDurations.WithLabelValues(method).Observe(time.Since(start).Seconds())

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

var _ engine.Recorder = (*Collector)(nil)
