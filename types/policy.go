package types

import "fmt"

// Policy selects the failure detection algorithm.
type Policy int

const (
	// PolicyFixedTimeout judges entities by fixed SuspectAfter/DeadAfter durations.
	PolicyFixedTimeout Policy = iota

	// PolicyAccrual judges entities by a phi accrual suspicion score computed
	// from the distribution of observed heartbeat intervals.
	PolicyAccrual
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyFixedTimeout:
		return "fixed_timeout"
	case PolicyAccrual:
		return "accrual"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	switch p {
	case PolicyFixedTimeout, PolicyAccrual:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("unknown policy %d", int(p))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so policies can be set
// from YAML as "fixed_timeout" or "accrual".
func (p *Policy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fixed_timeout", "fixedTimeout", "fixed", "":
		*p = PolicyFixedTimeout
	case "accrual", "phi":
		*p = PolicyAccrual
	default:
		return fmt.Errorf("unknown policy %q", string(text))
	}

	return nil
}
