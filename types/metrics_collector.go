package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	CoordinatorMetrics
	DetectorMetrics
	DispatchMetrics
}

// CoordinatorMetrics defines metrics for heartbeat intake and sweeps.
type CoordinatorMetrics interface {
	// RecordHeartbeat records a heartbeat submission.
	//
	// Parameters:
	//   - result: "accepted", "stale", "rejected" or "registered"
	RecordHeartbeat(result string)

	// RecordSweep records a completed sweep.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	//   - entities: Number of entities evaluated
	RecordSweep(duration float64, entities int)

	// RecordSweepSkipped records a periodic tick suppressed by a running sweep.
	RecordSweepSkipped()

	// RecordEntities sets the number of registered entities in a state (gauge metric).
	RecordEntities(state LivenessState, count int)
}

// DetectorMetrics defines metrics for liveness verdicts.
type DetectorMetrics interface {
	// RecordTransition records a liveness transition.
	RecordTransition(from, to LivenessState)
}

// DispatchMetrics defines metrics for event delivery.
type DispatchMetrics interface {
	// RecordDelivery records a delivery attempt to one subscriber.
	//
	// Parameters:
	//   - success: true if the subscriber accepted the event
	//   - duration: Time taken in seconds
	RecordDelivery(success bool, duration float64)

	// RecordSubscribers sets the current subscriber count (gauge metric).
	RecordSubscribers(count int)
}
