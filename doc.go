// Package heartbeat provides a heartbeat-based failure detector.
//
// External signal sources report "heartbeat received for entity E". A
// periodic sweep judges every registered entity Alive, Suspect or Dead and
// publishes a transition event to subscribers whenever a judgement changes.
//
// # Quick Start
//
//	coord := heartbeat.New()
//
//	cfg := heartbeat.DefaultConfig()
//	if err := coord.Start(ctx, &cfg); err != nil {
//	    log.Fatal(err)
//	}
//	defer coord.Stop(context.Background())
//
//	events, _, _ := coord.SubscribeChan(64)
//	_ = coord.Register("node-1")
//	_ = coord.Heartbeat("node-1")
//
//	for ev := range events {
//	    fmt.Printf("%s: %s -> %s\n", ev.EntityID, ev.From, ev.To)
//	}
//
// # Detection Policies
//
// PolicyFixedTimeout compares the silence since the last heartbeat against
// SuspectAfter and DeadAfter. PolicyAccrual computes a phi suspicion score
// from the distribution of each entity's recent heartbeat intervals and
// compares it against Accrual.SuspectThreshold and Accrual.DeadThreshold.
//
// # State Machine
//
//	Alive -> Suspect -> Dead
//	  ^         |        |
//	  +---------+--------+   (on the next sweep after a fresh heartbeat)
//
// Heartbeats never change state directly; only sweeps do. An entity that
// crosses both thresholds between two sweeps emits Alive->Suspect and
// Suspect->Dead in the same sweep unless HardDeadline is set.
//
// # Ordering
//
// Events for one entity are delivered in the order they happened. Events
// for different entities may be delivered concurrently. A failing or
// panicking subscriber never affects other subscribers or the sweep.
//
// # Adapters
//
// The core has no transport. Package source feeds it from NATS subjects or
// JetStream KV, package emitter writes keep-alive leases, and
// cmd/heartbeatd runs the whole pipeline as a daemon.
package heartbeat
