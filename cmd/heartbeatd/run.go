package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arloliu/heartbeat"
	"github.com/arloliu/heartbeat/internal/kvutil"
	"github.com/arloliu/heartbeat/internal/logging"
	"github.com/arloliu/heartbeat/source"
	"github.com/arloliu/heartbeat/types"
)

// daemon holds everything run starts, so shutdown can unwind it in order.
type daemon struct {
	cfg    daemonConfig
	zlog   *zap.Logger
	logger types.Logger

	nc       *nats.Conn
	coord    *heartbeat.Coordinator
	listener *source.SubjectListener
	watcher  *source.KVWatcher
	server   *http.Server
	addr     net.Addr
}

// run starts the daemon and blocks until ctx is cancelled.
func run(ctx context.Context, cfg daemonConfig, zlog *zap.Logger) error {
	d, err := start(ctx, cfg, zlog)
	if err != nil {
		return err
	}

	<-ctx.Done()

	return d.shutdown()
}

func start(ctx context.Context, cfg daemonConfig, zlog *zap.Logger) (*daemon, error) {
	d := &daemon{
		cfg:    cfg,
		zlog:   zlog,
		logger: logging.NewZap(zlog.With(zap.Any("labels", cfg.Labels))),
	}

	if err := d.startCoordinator(ctx); err != nil {
		_ = d.shutdown()
		return nil, err
	}

	if err := d.startSources(ctx); err != nil {
		_ = d.shutdown()
		return nil, err
	}

	if err := d.startHTTP(); err != nil {
		_ = d.shutdown()
		return nil, err
	}

	return d, nil
}

func (d *daemon) startCoordinator(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d.coord = heartbeat.New(
		heartbeat.WithLogger(d.logger),
		heartbeat.WithMetrics(heartbeat.NewPrometheusMetrics(reg, d.cfg.Namespace)),
	)

	if err := d.coord.Start(ctx, &d.cfg.Detector); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}

	if _, err := d.coord.SubscribeFunc(d.logTransition); err != nil {
		return fmt.Errorf("failed to subscribe transition logger: %w", err)
	}

	ids := make([]types.EntityID, 0, len(d.cfg.Entities))
	for _, id := range d.cfg.Entities {
		ids = append(ids, types.EntityID(id))
	}
	n, err := source.NewStatic(ids).Seed(d.coord)
	if err != nil {
		return fmt.Errorf("failed to register configured entities: %w", err)
	}
	d.logger.Info("registered configured entities", "count", n)

	d.server = &http.Server{
		Addr:              d.cfg.HTTPAddr,
		Handler:           d.routes(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return nil
}

func (d *daemon) routes(reg *prometheus.Registry) http.Handler {
	health := d.coord.HealthHandler()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/live", health)
	mux.Handle("/ready", health)

	return mux
}

func (d *daemon) logTransition(_ context.Context, ev heartbeat.Event) error {
	fields := []zap.Field{
		zap.String("entity", string(ev.EntityID)),
		zap.Stringer("from", ev.From),
		zap.Stringer("to", ev.To),
		zap.Duration("at", ev.At.Duration()),
		zap.Float64("score", ev.Score),
	}

	if ev.To == heartbeat.StateAlive {
		d.zlog.Info("entity recovered", fields...)
	} else {
		d.zlog.Warn("entity liveness changed", fields...)
	}

	return nil
}

func (d *daemon) startSources(ctx context.Context) error {
	if d.cfg.NATS.Bucket == "" && d.cfg.NATS.SubjectPrefix == "" {
		d.logger.Warn("no heartbeat sources configured")
		return nil
	}

	nc, err := nats.Connect(d.cfg.NATS.URL,
		nats.Name("heartbeatd"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			d.logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			d.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	d.nc = nc

	if prefix := d.cfg.NATS.SubjectPrefix; prefix != "" {
		d.listener = source.NewSubjectListener(nc, prefix, d.coord, source.WithLogger(d.logger))
		if err := d.listener.Start(); err != nil {
			return err
		}
	}

	if bucket := d.cfg.NATS.Bucket; bucket != "" {
		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("failed to init JetStream: %w", err)
		}

		kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "heartbeat leases",
			TTL:         d.cfg.NATS.BucketTTL,
			History:     1,
		}, 5)
		if err != nil {
			return err
		}

		d.watcher = source.NewKVWatcher(kv, d.cfg.NATS.KeyPrefix, d.coord, source.WithLogger(d.logger))
		if err := d.watcher.Start(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (d *daemon) startHTTP() error {
	ln, err := net.Listen("tcp", d.server.Addr) //nolint:noctx
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.server.Addr, err)
	}
	d.addr = ln.Addr()

	go func() {
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("http server failed", "error", err)
		}
	}()

	d.logger.Info("http server listening", "addr", d.addr.String())

	return nil
}

// shutdown stops intake first so the final sweep sees a quiet registry.
func (d *daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if d.listener != nil {
		errs = append(errs, d.listener.Stop())
	}
	if d.watcher != nil {
		errs = append(errs, d.watcher.Stop())
	}
	if d.nc != nil {
		errs = append(errs, d.nc.Drain())
	}
	if d.addr != nil {
		errs = append(errs, d.server.Shutdown(ctx))
	}
	if d.coord != nil {
		if err := d.coord.Stop(ctx); err != nil && !errors.Is(err, heartbeat.ErrNotStarted) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
