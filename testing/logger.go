package testing

import (
	"testing"

	"github.com/arloliu/heartbeat/internal/logging"
	"github.com/arloliu/heartbeat/types"
)

// NewTestLogger creates a logger that writes to the test log.
// Output only appears for failed tests or with go test -v.
func NewTestLogger(t testing.TB) types.Logger {
	return logging.NewTest(t)
}
