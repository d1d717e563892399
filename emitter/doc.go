// Package emitter publishes keep-alive heartbeats for one entity to a NATS
// JetStream KV bucket.
//
// It is the sending half of the heartbeat pipeline: a process embeds an
// Emitter for its own identity, and a detector process runs
// source.KVWatcher on the same bucket to feed a Coordinator.
//
// # Lifecycle
//
//  1. Create with New(kv, prefix, entityID, ttl)
//  2. Start(ctx) publishes the first lease immediately
//  3. A lease is re-published every interval (TTL/2 unless overridden)
//  4. Stop(ctx) ends the loop and deletes the key
//
// Example:
//
//	em, err := emitter.New(kv, "hb", "node-1", 10*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := em.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer em.Stop(context.Background())
//
// # Key Format
//
//	{prefix}.{entityID}
//
// The value is a JSON Lease stating when the sender considers itself
// expired. Bucket TTL, when set, should be at least the lease TTL.
//
// # Retries
//
// Connectivity failures are retried with exponential backoff until the
// next tick is due. Other errors fail the attempt immediately. Failed
// attempts are logged and counted; the loop keeps running.
package emitter
