// Package testing provides test utilities for the heartbeat library.
//
// It mirrors net/http/httptest: helpers that stand up real infrastructure
// in-process so adapter code can be tested without external services.
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: KV bucket creation with test defaults
//   - NewTestLogger: Logger writing through t.Logf
//
// Example usage:
//
//	import (
//	    "testing"
//	    hbtest "github.com/arloliu/heartbeat/testing"
//	)
//
//	func TestMyAdapter(t *testing.T) {
//	    _, nc := hbtest.StartEmbeddedNATS(t)
//	    kv := hbtest.CreateJetStreamKV(t, nc, "heartbeats", 0)
//	    // Use nc and kv
//	}
package testing
