package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/heartbeat"
)

func TestParseDaemonConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := parseDaemonConfig(nil)
		require.NoError(t, err)

		require.Equal(t, "info", cfg.LogLevel)
		require.Equal(t, ":8080", cfg.HTTPAddr)
		require.Equal(t, "heartbeats", cfg.NATS.Bucket)
		require.Equal(t, "hb", cfg.NATS.KeyPrefix)
		require.Equal(t, heartbeat.DefaultConfig(), cfg.Detector)
	})

	t.Run("full document", func(t *testing.T) {
		doc := `
logLevel: debug
httpAddr: 127.0.0.1:9000
entities: [node-1, node-2]
nats:
  url: nats://nats:4222
  bucket: leases
  keyPrefix: lease
  subjectPrefix: ""
detector:
  policy: accrual
  sweepInterval: 200ms
  accrual:
    suspectThreshold: 4
labels:
  cluster: east
`
		cfg, err := parseDaemonConfig([]byte(doc))
		require.NoError(t, err)

		require.Equal(t, "debug", cfg.LogLevel)
		require.Equal(t, []string{"node-1", "node-2"}, cfg.Entities)
		require.Equal(t, "nats://nats:4222", cfg.NATS.URL)
		require.Equal(t, "lease", cfg.NATS.KeyPrefix)
		require.Empty(t, cfg.NATS.SubjectPrefix)
		require.Equal(t, heartbeat.PolicyAccrual, cfg.Detector.Policy)
		require.Equal(t, 200*time.Millisecond, cfg.Detector.SweepInterval)
		require.InDelta(t, 4.0, cfg.Detector.Accrual.SuspectThreshold, 0)
		require.InDelta(t, 16.0, cfg.Detector.Accrual.DeadThreshold, 0)
		require.Equal(t, "east", cfg.Labels["cluster"])
	})

	t.Run("rejects invalid detector config", func(t *testing.T) {
		_, err := parseDaemonConfig([]byte("detector:\n  suspectAfter: 10s\n  deadAfter: 1s\n"))
		require.ErrorIs(t, err, heartbeat.ErrInvalidConfig)
	})

	t.Run("rejects bad log level", func(t *testing.T) {
		_, err := parseDaemonConfig([]byte("logLevel: loud\n"))
		require.Error(t, err)
	})

	t.Run("rejects bucket without key prefix", func(t *testing.T) {
		_, err := parseDaemonConfig([]byte("nats:\n  keyPrefix: \"\"\n"))
		require.Error(t, err)
	})
}

func TestLoadDaemonConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeatd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("httpAddr: :9999\n"), 0o600))

	cfg, err := loadDaemonConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.HTTPAddr)

	cfg, err = loadDaemonConfig("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)

	_, err = loadDaemonConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
