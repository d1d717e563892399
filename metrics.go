package heartbeat

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"

	"github.com/arloliu/heartbeat/internal/metrics"
)

// NewPrometheusMetrics creates a MetricsCollector backed by Prometheus.
//
// Parameters:
//   - reg: Registerer to register collectors with (prometheus.DefaultRegisterer if nil)
//   - namespace: Metric namespace ("heartbeat" if empty)
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	coord := heartbeat.New(heartbeat.WithMetrics(heartbeat.NewPrometheusMetrics(reg, "")))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}

// NewOTelMetrics creates a MetricsCollector recording through an OpenTelemetry meter.
func NewOTelMetrics(meter metric.Meter) (MetricsCollector, error) {
	c, err := metrics.NewOTel(meter)
	if err != nil {
		return nil, err
	}

	return c, nil
}
