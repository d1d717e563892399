package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arloliu/heartbeat/types"
)

// OTelCollector implements types.MetricsCollector on the OpenTelemetry metric API.
//
// Instrument names mirror the Prometheus collector with dots as separators,
// e.g. "heartbeat.coordinator.heartbeats".
type OTelCollector struct {
	heartbeats    metric.Int64Counter
	sweepDuration metric.Float64Histogram
	sweepEntities metric.Int64Gauge
	sweepsSkipped metric.Int64Counter
	entities      metric.Int64Gauge
	transitions   metric.Int64Counter
	deliveries    metric.Int64Counter
	deliveryTime  metric.Float64Histogram
	subscribers   metric.Int64Gauge
}

// Compile-time assertion that OTelCollector implements MetricsCollector.
var _ types.MetricsCollector = (*OTelCollector)(nil)

// NewOTel creates instruments on meter.
//
// Parameters:
//   - meter: OpenTelemetry meter, typically provider.Meter("github.com/arloliu/heartbeat")
//
// Returns:
//   - *OTelCollector: Collector recording through meter
//   - error: Instrument creation failure
func NewOTel(meter metric.Meter) (*OTelCollector, error) {
	var (
		c   OTelCollector
		err error
	)

	if c.heartbeats, err = meter.Int64Counter("heartbeat.coordinator.heartbeats",
		metric.WithDescription("Heartbeat submissions by result.")); err != nil {
		return nil, fmt.Errorf("create heartbeats counter: %w", err)
	}
	if c.sweepDuration, err = meter.Float64Histogram("heartbeat.coordinator.sweep.duration",
		metric.WithDescription("Time spent evaluating all entities in one sweep."),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create sweep duration histogram: %w", err)
	}
	if c.sweepEntities, err = meter.Int64Gauge("heartbeat.coordinator.sweep.entities",
		metric.WithDescription("Entities evaluated by the most recent sweep.")); err != nil {
		return nil, fmt.Errorf("create sweep entities gauge: %w", err)
	}
	if c.sweepsSkipped, err = meter.Int64Counter("heartbeat.coordinator.sweeps.skipped",
		metric.WithDescription("Periodic sweeps suppressed because a sweep was still running.")); err != nil {
		return nil, fmt.Errorf("create skipped sweeps counter: %w", err)
	}
	if c.entities, err = meter.Int64Gauge("heartbeat.coordinator.entities",
		metric.WithDescription("Registered entities by liveness state.")); err != nil {
		return nil, fmt.Errorf("create entities gauge: %w", err)
	}
	if c.transitions, err = meter.Int64Counter("heartbeat.detector.transitions",
		metric.WithDescription("Liveness transitions by source and target state.")); err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}
	if c.deliveries, err = meter.Int64Counter("heartbeat.dispatch.deliveries",
		metric.WithDescription("Subscriber notifications by result.")); err != nil {
		return nil, fmt.Errorf("create deliveries counter: %w", err)
	}
	if c.deliveryTime, err = meter.Float64Histogram("heartbeat.dispatch.delivery.duration",
		metric.WithDescription("Time spent in a single subscriber notification."),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create delivery duration histogram: %w", err)
	}
	if c.subscribers, err = meter.Int64Gauge("heartbeat.dispatch.subscribers",
		metric.WithDescription("Active subscriptions.")); err != nil {
		return nil, fmt.Errorf("create subscribers gauge: %w", err)
	}

	return &c, nil
}

// Collector methods have no caller context; measurements are recorded
// against the background context.

// RecordHeartbeat increments the heartbeat counter for result.
func (c *OTelCollector) RecordHeartbeat(result string) {
	c.heartbeats.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordSweep records sweep duration and entity count.
func (c *OTelCollector) RecordSweep(duration float64, entities int) {
	ctx := context.Background()
	c.sweepDuration.Record(ctx, duration)
	c.sweepEntities.Record(ctx, int64(entities))
}

// RecordSweepSkipped increments the skipped sweep counter.
func (c *OTelCollector) RecordSweepSkipped() {
	c.sweepsSkipped.Add(context.Background(), 1)
}

// RecordEntities records the entity gauge for state.
func (c *OTelCollector) RecordEntities(state types.LivenessState, count int) {
	c.entities.Record(context.Background(), int64(count),
		metric.WithAttributes(attribute.String("state", state.String())))
}

// RecordTransition increments the transition counter.
func (c *OTelCollector) RecordTransition(from, to types.LivenessState) {
	c.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

// RecordDelivery counts a delivery attempt and records its latency.
func (c *OTelCollector) RecordDelivery(success bool, duration float64) {
	ctx := context.Background()
	c.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("result", deliveryResult(success))))
	c.deliveryTime.Record(ctx, duration)
}

// RecordSubscribers records the subscriber gauge.
func (c *OTelCollector) RecordSubscribers(count int) {
	c.subscribers.Record(context.Background(), int64(count))
}
