package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	hbtest "github.com/arloliu/heartbeat/testing"
	"github.com/arloliu/heartbeat/types"
)

func TestSubjectListener(t *testing.T) {
	_, nc := hbtest.StartEmbeddedNATS(t)
	sink := newRecordingSink()
	sink.reject["ghost"] = types.ErrNotFound

	l := NewSubjectListener(nc, "heartbeat.", sink, WithLogger(hbtest.NewTestLogger(t)))
	require.Equal(t, "heartbeat.>", l.Subject())
	require.NoError(t, l.Start())
	require.ErrorIs(t, l.Start(), ErrListenerStarted)
	require.NoError(t, nc.Flush())

	require.NoError(t, nc.Publish("heartbeat.node-1", nil))
	require.NoError(t, nc.Publish("heartbeat.ghost", nil))
	require.NoError(t, nc.Publish("heartbeat.zone-a.node-2", []byte("ignored payload")))
	require.NoError(t, nc.Publish("other.node-3", nil))
	require.NoError(t, nc.Flush())

	got := sink.waitFor(t, 2)
	require.Equal(t, []types.EntityID{"node-1", "zone-a.node-2"}, got)
	require.Eventually(t, func() bool { return l.Rejected() == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, uint64(2), l.Received())

	require.NoError(t, l.Stop())
	require.NoError(t, l.Stop())

	require.NoError(t, nc.Publish("heartbeat.node-1", nil))
	require.NoError(t, nc.Flush())
	require.Len(t, sink.heartbeats(), 2)
}
