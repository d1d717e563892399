// Package detector decides per-entity liveness verdicts.
//
// Two policies are provided:
//
//   - FixedTimeout: deterministic cutoffs on time since the last heartbeat
//   - Accrual: a phi accrual detector whose suspicion score adapts to the
//     observed distribution of heartbeat intervals, tolerating jittery
//     senders without fixed cutoffs
//
// A Detector only computes verdicts. Storing the verdict, stepping through
// legal transitions (see Path) and publishing events is the caller's job.
package detector
