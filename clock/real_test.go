package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReal_NowIsMonotonic(t *testing.T) {
	clk := New()

	prev := clk.Now()
	for range 1000 {
		now := clk.Now()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

func TestReal_SchedulePeriodic(t *testing.T) {
	clk := New()

	var calls atomic.Int32
	h := clk.SchedulePeriodic(10*time.Millisecond, func() {
		calls.Add(1)
	})

	require.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	h.Cancel()
	after := calls.Load()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, after, calls.Load(), "no callback may run after Cancel returns")

	require.NotPanics(t, h.Cancel)
}
