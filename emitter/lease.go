package emitter

import (
	"encoding/json"
	"fmt"
	"time"
)

// Lease is the payload written on every heartbeat.
type Lease struct {
	// Entity is the sender's entity ID.
	Entity string `json:"entity"`

	// Seq counts leases sent by this emitter, starting at 1.
	Seq uint64 `json:"seq"`

	// SentAt is the sender's wall-clock time.
	SentAt time.Time `json:"sentAt"`

	// ExpiresAt is when the sender stops vouching for itself if no newer
	// lease arrives.
	ExpiresAt time.Time `json:"expiresAt"`
}

// Encode returns the JSON encoding of the lease.
func (l Lease) Encode() ([]byte, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lease: %w", err)
	}

	return data, nil
}

// DecodeLease parses a lease written by an Emitter.
func DecodeLease(data []byte) (Lease, error) {
	var l Lease
	if err := json.Unmarshal(data, &l); err != nil {
		return Lease{}, fmt.Errorf("failed to decode lease: %w", err)
	}

	return l, nil
}
