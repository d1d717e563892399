package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/heartbeat/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered on first use, so constructing one
// that is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	heartbeats    *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepEntities prometheus.Gauge
	sweepsSkipped prometheus.Counter
	entities      *prometheus.GaugeVec
	transitions   *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	deliveryTime  prometheus.Histogram
	subscribers   prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "heartbeat" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "heartbeat"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "heartbeats_total",
			Help:      "Heartbeat submissions by result.",
		}, []string{"result"})

		p.sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent evaluating all entities in one sweep.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		})

		p.sweepEntities = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "sweep_entities",
			Help:      "Entities evaluated by the most recent sweep.",
		})

		p.sweepsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "sweeps_skipped_total",
			Help:      "Periodic sweeps suppressed because a sweep was still running.",
		})

		p.entities = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "entities",
			Help:      "Registered entities by liveness state.",
		}, []string{"state"})

		p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "detector",
			Name:      "transitions_total",
			Help:      "Liveness transitions by source and target state.",
		}, []string{"from", "to"})

		p.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Subscriber notifications by result.",
		}, []string{"result"})

		p.deliveryTime = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "dispatch",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent in a single subscriber notification.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		})

		p.subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "dispatch",
			Name:      "subscribers",
			Help:      "Active subscriptions.",
		})

		p.reg.MustRegister(p.heartbeats)
		p.reg.MustRegister(p.sweepDuration)
		p.reg.MustRegister(p.sweepEntities)
		p.reg.MustRegister(p.sweepsSkipped)
		p.reg.MustRegister(p.entities)
		p.reg.MustRegister(p.transitions)
		p.reg.MustRegister(p.deliveries)
		p.reg.MustRegister(p.deliveryTime)
		p.reg.MustRegister(p.subscribers)
	})
}

// CoordinatorMetrics implementation

// RecordHeartbeat increments the heartbeat counter for result.
func (p *PrometheusCollector) RecordHeartbeat(result string) {
	p.ensureRegistered()
	p.heartbeats.WithLabelValues(result).Inc()
}

// RecordSweep observes sweep duration and entity count.
func (p *PrometheusCollector) RecordSweep(duration float64, entities int) {
	p.ensureRegistered()
	p.sweepDuration.Observe(duration)
	p.sweepEntities.Set(float64(entities))
}

// RecordSweepSkipped increments the skipped sweep counter.
func (p *PrometheusCollector) RecordSweepSkipped() {
	p.ensureRegistered()
	p.sweepsSkipped.Inc()
}

// RecordEntities sets the entity gauge for state.
func (p *PrometheusCollector) RecordEntities(state types.LivenessState, count int) {
	p.ensureRegistered()
	p.entities.WithLabelValues(state.String()).Set(float64(count))
}

// DetectorMetrics implementation

// RecordTransition increments the transition counter.
func (p *PrometheusCollector) RecordTransition(from, to types.LivenessState) {
	p.ensureRegistered()
	p.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// DispatchMetrics implementation

// RecordDelivery counts a delivery attempt and observes its latency.
func (p *PrometheusCollector) RecordDelivery(success bool, duration float64) {
	p.ensureRegistered()
	p.deliveries.WithLabelValues(deliveryResult(success)).Inc()
	p.deliveryTime.Observe(duration)
}

// RecordSubscribers sets the subscriber gauge.
func (p *PrometheusCollector) RecordSubscribers(count int) {
	p.ensureRegistered()
	p.subscribers.Set(float64(count))
}

func deliveryResult(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}
