package heartbeat

import "go.opentelemetry.io/otel/trace"

// Option configures a Coordinator with optional dependencies.
type Option func(*coordinatorOptions)

// coordinatorOptions holds optional Coordinator configuration.
type coordinatorOptions struct {
	clock          Clock
	hooks          *Hooks
	metrics        MetricsCollector
	logger         Logger
	tracerProvider trace.TracerProvider
}

// WithClock sets the time source.
//
// Tests pass a clock.Manual to drive sweeps deterministically.
//
// Example:
//
//	clk := clock.NewManual(0)
//	coord := heartbeat.New(heartbeat.WithClock(clk))
func WithClock(clock Clock) Option {
	return func(o *coordinatorOptions) {
		o.clock = clock
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	hooks := &heartbeat.Hooks{
//	    OnSweep: func(ctx context.Context, stats heartbeat.SweepStats) error {
//	        log.Printf("swept %d entities", stats.Entities)
//	        return nil
//	    },
//	}
//	coord := heartbeat.New(heartbeat.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *coordinatorOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Example:
//
//	coord := heartbeat.New(heartbeat.WithMetrics(heartbeat.NewPrometheusMetrics(nil, "")))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *coordinatorOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for New
func WithLogger(logger Logger) Option {
	return func(o *coordinatorOptions) {
		o.logger = logger
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for sweep spans.
//
// Defaults to a no-op provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *coordinatorOptions) {
		o.tracerProvider = tp
	}
}
