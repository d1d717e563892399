package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/heartbeat/types"
)

func at(d time.Duration) types.Timestamp {
	return types.Timestamp(d)
}

func TestFixedTimeout_Evaluate(t *testing.T) {
	d := NewFixedTimeout(5*time.Second, 15*time.Second)
	view := View{LastSeen: 0}

	tests := []struct {
		name string
		now  time.Duration
		want types.LivenessState
	}{
		{"fresh", 0, types.StateAlive},
		{"just before suspect", 5*time.Second - time.Nanosecond, types.StateAlive},
		{"at suspect threshold", 5 * time.Second, types.StateSuspect},
		{"between thresholds", 10 * time.Second, types.StateSuspect},
		{"at dead threshold", 15 * time.Second, types.StateDead},
		{"long gone", time.Hour, types.StateDead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, d.Evaluate(view, at(tt.now)).State)
		})
	}
}

func TestFixedTimeout_Score(t *testing.T) {
	d := NewFixedTimeout(5*time.Second, 15*time.Second)

	v := d.Evaluate(View{LastSeen: at(10 * time.Second)}, at(20*time.Second))
	require.InDelta(t, 2.0, v.Score, 1e-9)

	// A LastSeen ahead of now counts as zero elapsed time
	v = d.Evaluate(View{LastSeen: at(30 * time.Second)}, at(20*time.Second))
	require.Equal(t, types.StateAlive, v.State)
	require.Zero(t, v.Score)
}

func TestFixedTimeout_Policy(t *testing.T) {
	require.Equal(t, types.PolicyFixedTimeout, FixedTimeout{}.Policy())
}

func TestPath(t *testing.T) {
	tests := []struct {
		name         string
		from, to     types.LivenessState
		hardDeadline bool
		want         []types.LivenessState
	}{
		{"unchanged", types.StateSuspect, types.StateSuspect, false, nil},
		{"alive to suspect", types.StateAlive, types.StateSuspect, false, []types.LivenessState{types.StateSuspect}},
		{"suspect to dead", types.StateSuspect, types.StateDead, false, []types.LivenessState{types.StateDead}},
		{"alive to dead steps through suspect", types.StateAlive, types.StateDead, false,
			[]types.LivenessState{types.StateSuspect, types.StateDead}},
		{"alive to dead with hard deadline", types.StateAlive, types.StateDead, true,
			[]types.LivenessState{types.StateDead}},
		{"suspect recovers", types.StateSuspect, types.StateAlive, false, []types.LivenessState{types.StateAlive}},
		{"dead rejoins", types.StateDead, types.StateAlive, false, []types.LivenessState{types.StateAlive}},
		{"dead stays dead on suspect verdict", types.StateDead, types.StateSuspect, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Path(tt.from, tt.to, tt.hardDeadline))
		})
	}
}
