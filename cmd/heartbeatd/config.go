package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/heartbeat"
)

// natsConfig describes where heartbeats arrive from.
type natsConfig struct {
	URL string `yaml:"url"`

	// Bucket is the JetStream KV bucket watched for emitter leases.
	// Empty disables the KV watcher.
	Bucket    string        `yaml:"bucket"`
	BucketTTL time.Duration `yaml:"bucketTTL"`
	KeyPrefix string        `yaml:"keyPrefix"`

	// SubjectPrefix enables the core NATS listener on "<prefix>.>".
	// Empty disables it.
	SubjectPrefix string `yaml:"subjectPrefix"`
}

type daemonConfig struct {
	LogLevel        string            `yaml:"logLevel"`
	HTTPAddr        string            `yaml:"httpAddr"`
	Namespace       string            `yaml:"metricsNamespace"`
	Entities        []string          `yaml:"entities"`
	NATS            natsConfig        `yaml:"nats"`
	Detector        heartbeat.Config  `yaml:"detector"`
	ShutdownTimeout time.Duration     `yaml:"shutdownTimeout"`
	Labels          map[string]string `yaml:"labels"`
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		LogLevel:  "info",
		HTTPAddr:  ":8080",
		Namespace: "heartbeat",
		NATS: natsConfig{
			URL:           nats.DefaultURL,
			Bucket:        "heartbeats",
			BucketTTL:     time.Minute,
			KeyPrefix:     "hb",
			SubjectPrefix: "heartbeat",
		},
		Detector:        heartbeat.DefaultConfig(),
		ShutdownTimeout: 10 * time.Second,
	}
}

func parseDaemonConfig(data []byte) (daemonConfig, error) {
	cfg := defaultDaemonConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return daemonConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	heartbeat.SetDefaults(&cfg.Detector)
	if err := cfg.Detector.Validate(); err != nil {
		return daemonConfig{}, err
	}

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return daemonConfig{}, fmt.Errorf("invalid logLevel %q: %w", cfg.LogLevel, err)
	}
	if cfg.NATS.Bucket != "" && cfg.NATS.KeyPrefix == "" {
		return daemonConfig{}, fmt.Errorf("nats.keyPrefix is required when nats.bucket is set")
	}
	if cfg.ShutdownTimeout <= 0 {
		return daemonConfig{}, fmt.Errorf("shutdownTimeout must be > 0, got %v", cfg.ShutdownTimeout)
	}

	return cfg, nil
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	if path == "" {
		return parseDaemonConfig(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return parseDaemonConfig(data)
}
