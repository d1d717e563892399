// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/heartbeat/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	coord := heartbeat.New(heartbeat.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// CoordinatorMetrics implementation

// RecordHeartbeat discards the heartbeat metric.
func (n *NopMetrics) RecordHeartbeat(_ /* result */ string) {}

// RecordSweep discards the sweep metric.
func (n *NopMetrics) RecordSweep(_ /* duration */ float64, _ /* entities */ int) {}

// RecordSweepSkipped discards the skipped sweep metric.
func (n *NopMetrics) RecordSweepSkipped() {}

// RecordEntities discards the entity gauge.
func (n *NopMetrics) RecordEntities(_ /* state */ types.LivenessState, _ /* count */ int) {}

// DetectorMetrics implementation

// RecordTransition discards the transition metric.
func (n *NopMetrics) RecordTransition(_ /* from */, _ /* to */ types.LivenessState) {}

// DispatchMetrics implementation

// RecordDelivery discards the delivery metric.
func (n *NopMetrics) RecordDelivery(_ /* success */ bool, _ /* duration */ float64) {}

// RecordSubscribers discards the subscriber gauge.
func (n *NopMetrics) RecordSubscribers(_ /* count */ int) {}
