// Command heartbeatd runs a heartbeat failure detector fed from NATS.
//
// Entities announce themselves either by publishing to
// "<subjectPrefix>.<entityID>" or by running an emitter.Emitter against the
// configured KV bucket. Transitions are logged, and Prometheus metrics plus
// liveness and readiness probes are served over HTTP.
//
// Usage:
//
//	heartbeatd -config /etc/heartbeatd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadDaemonConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "heartbeatd: %v\n", err)
		os.Exit(2)
	}

	logger, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "heartbeatd: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("heartbeatd exited", zap.Error(err))
		os.Exit(1)
	}
}

func newZapLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)

	return zcfg.Build()
}
