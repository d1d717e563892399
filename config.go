package heartbeat

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AccrualConfig tunes the phi-accrual detector. Ignored by the fixed-timeout policy.
type AccrualConfig struct {
	// WindowSize is the number of recent inter-arrival intervals kept per entity.
	WindowSize int `yaml:"windowSize"`

	// SuspectThreshold is the phi value at or above which an entity is Suspect.
	SuspectThreshold float64 `yaml:"suspectThreshold"`

	// DeadThreshold is the phi value at or above which an entity is Dead.
	// Must be >= SuspectThreshold.
	DeadThreshold float64 `yaml:"deadThreshold"`

	// MinStdDev floors the interval standard deviation so a perfectly regular
	// sender does not turn a few milliseconds of jitter into an outage.
	MinStdDev time.Duration `yaml:"minStdDev"`

	// AcceptablePause is added to the mean interval, tolerating known pauses
	// (GC, deploys) without raising suspicion.
	AcceptablePause time.Duration `yaml:"acceptablePause"`

	// FirstHeartbeatEstimate seeds the interval distribution until an entity
	// has produced its first sample.
	FirstHeartbeatEstimate time.Duration `yaml:"firstHeartbeatEstimate"`
}

// DispatchConfig controls event delivery.
type DispatchConfig struct {
	// Lanes is the number of parallel delivery lanes. Events for one entity
	// always share a lane.
	Lanes int `yaml:"lanes"`

	// DrainTimeout bounds how long Stop waits for queued events to be delivered.
	DrainTimeout time.Duration `yaml:"drainTimeout"`
}

// Config is the configuration for the Coordinator.
//
// All duration fields accept standard Go duration strings like "500ms", "5s", "1m".
type Config struct {
	// Policy selects the detector: fixed_timeout or accrual.
	Policy Policy `yaml:"policy"`

	// SuspectAfter is the silence after which an entity becomes Suspect
	// (fixed-timeout policy).
	SuspectAfter time.Duration `yaml:"suspectAfter"`

	// DeadAfter is the silence after which an entity becomes Dead
	// (fixed-timeout policy). Must be >= SuspectAfter.
	DeadAfter time.Duration `yaml:"deadAfter"`

	// HardDeadline lets an Alive entity jump straight to Dead in a single
	// event. When false the sweep steps it through Suspect first, emitting
	// Alive->Suspect and Suspect->Dead back to back.
	HardDeadline bool `yaml:"hardDeadline"`

	// SweepInterval is how often the coordinator re-evaluates every entity.
	// Detection latency is bounded by the threshold plus one interval.
	SweepInterval time.Duration `yaml:"sweepInterval"`

	// SweepWorkers is the number of goroutines evaluating entities in parallel.
	SweepWorkers int `yaml:"sweepWorkers"`

	// SweepBatchSize is the number of entities handed to one sweep worker task.
	SweepBatchSize int `yaml:"sweepBatchSize"`

	// AutoRegister makes a heartbeat from an unknown entity register it as Alive
	// instead of failing with ErrNotFound.
	AutoRegister bool `yaml:"autoRegister"`

	// Accrual tunes the phi-accrual policy.
	Accrual AccrualConfig `yaml:"accrual"`

	// Dispatch controls event delivery.
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Policy:         PolicyFixedTimeout,
		SuspectAfter:   5 * time.Second,
		DeadAfter:      15 * time.Second,
		SweepInterval:  1 * time.Second,
		SweepWorkers:   4,
		SweepBatchSize: 256,
		Accrual: AccrualConfig{
			WindowSize:             100,
			SuspectThreshold:       8,
			DeadThreshold:          16,
			MinStdDev:              100 * time.Millisecond,
			FirstHeartbeatEstimate: 1 * time.Second,
		},
		Dispatch: DispatchConfig{
			Lanes:        4,
			DrainTimeout: 5 * time.Second,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Boolean switches and AcceptablePause keep their zero values.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.SuspectAfter == 0 {
		cfg.SuspectAfter = defaults.SuspectAfter
	}
	if cfg.DeadAfter == 0 {
		cfg.DeadAfter = max(defaults.DeadAfter, cfg.SuspectAfter)
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.SweepWorkers == 0 {
		cfg.SweepWorkers = defaults.SweepWorkers
	}
	if cfg.SweepBatchSize == 0 {
		cfg.SweepBatchSize = defaults.SweepBatchSize
	}
	if cfg.Accrual.WindowSize == 0 {
		cfg.Accrual.WindowSize = defaults.Accrual.WindowSize
	}
	if cfg.Accrual.SuspectThreshold == 0 {
		cfg.Accrual.SuspectThreshold = defaults.Accrual.SuspectThreshold
	}
	if cfg.Accrual.DeadThreshold == 0 {
		cfg.Accrual.DeadThreshold = max(defaults.Accrual.DeadThreshold, cfg.Accrual.SuspectThreshold)
	}
	if cfg.Accrual.MinStdDev == 0 {
		cfg.Accrual.MinStdDev = defaults.Accrual.MinStdDev
	}
	if cfg.Accrual.FirstHeartbeatEstimate == 0 {
		cfg.Accrual.FirstHeartbeatEstimate = defaults.Accrual.FirstHeartbeatEstimate
	}
	if cfg.Dispatch.Lanes == 0 {
		cfg.Dispatch.Lanes = defaults.Dispatch.Lanes
	}
	if cfg.Dispatch.DrainTimeout == 0 {
		cfg.Dispatch.DrainTimeout = defaults.Dispatch.DrainTimeout
	}
}

// Validate checks configuration constraints.
//
// Every returned error wraps ErrInvalidConfig.
//
// Hard Validation Rules:
//   - Policy is fixed_timeout or accrual
//   - 0 < SuspectAfter <= DeadAfter
//   - SweepInterval > 0, SweepWorkers >= 1, SweepBatchSize >= 1
//   - Accrual: WindowSize >= 2, 0 < SuspectThreshold <= DeadThreshold,
//     MinStdDev > 0, AcceptablePause >= 0, FirstHeartbeatEstimate > 0
//   - Dispatch: Lanes >= 1, DrainTimeout > 0
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Policy != PolicyFixedTimeout && cfg.Policy != PolicyAccrual {
		return fmt.Errorf("%w: unknown policy %d", ErrInvalidConfig, int(cfg.Policy))
	}

	if cfg.SuspectAfter <= 0 {
		return fmt.Errorf("%w: SuspectAfter must be > 0, got %v", ErrInvalidConfig, cfg.SuspectAfter)
	}
	if cfg.DeadAfter < cfg.SuspectAfter {
		return fmt.Errorf("%w: DeadAfter (%v) must be >= SuspectAfter (%v)",
			ErrInvalidConfig, cfg.DeadAfter, cfg.SuspectAfter)
	}

	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("%w: SweepInterval must be > 0, got %v", ErrInvalidConfig, cfg.SweepInterval)
	}
	if cfg.SweepWorkers < 1 {
		return fmt.Errorf("%w: SweepWorkers must be >= 1, got %d", ErrInvalidConfig, cfg.SweepWorkers)
	}
	if cfg.SweepBatchSize < 1 {
		return fmt.Errorf("%w: SweepBatchSize must be >= 1, got %d", ErrInvalidConfig, cfg.SweepBatchSize)
	}

	a := cfg.Accrual
	if a.WindowSize < 2 {
		return fmt.Errorf("%w: Accrual.WindowSize must be >= 2, got %d", ErrInvalidConfig, a.WindowSize)
	}
	if a.SuspectThreshold <= 0 {
		return fmt.Errorf("%w: Accrual.SuspectThreshold must be > 0, got %v", ErrInvalidConfig, a.SuspectThreshold)
	}
	if a.DeadThreshold < a.SuspectThreshold {
		return fmt.Errorf("%w: Accrual.DeadThreshold (%v) must be >= Accrual.SuspectThreshold (%v)",
			ErrInvalidConfig, a.DeadThreshold, a.SuspectThreshold)
	}
	if a.MinStdDev <= 0 {
		return fmt.Errorf("%w: Accrual.MinStdDev must be > 0, got %v", ErrInvalidConfig, a.MinStdDev)
	}
	if a.AcceptablePause < 0 {
		return fmt.Errorf("%w: Accrual.AcceptablePause must be >= 0, got %v", ErrInvalidConfig, a.AcceptablePause)
	}
	if a.FirstHeartbeatEstimate <= 0 {
		return fmt.Errorf("%w: Accrual.FirstHeartbeatEstimate must be > 0, got %v",
			ErrInvalidConfig, a.FirstHeartbeatEstimate)
	}

	if cfg.Dispatch.Lanes < 1 {
		return fmt.Errorf("%w: Dispatch.Lanes must be >= 1, got %d", ErrInvalidConfig, cfg.Dispatch.Lanes)
	}
	if cfg.Dispatch.DrainTimeout <= 0 {
		return fmt.Errorf("%w: Dispatch.DrainTimeout must be > 0, got %v", ErrInvalidConfig, cfg.Dispatch.DrainTimeout)
	}

	return nil
}

// ValidateWithWarnings logs warnings for values that are valid but likely
// to misbehave.
//
// This is called after Validate() in Start() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Policy == PolicyFixedTimeout && cfg.SweepInterval > cfg.SuspectAfter {
		logger.Warn(
			"SweepInterval is coarser than SuspectAfter, detection will lag",
			"sweepInterval", cfg.SweepInterval,
			"suspectAfter", cfg.SuspectAfter,
		)
	}

	if cfg.Policy == PolicyFixedTimeout && cfg.DeadAfter == cfg.SuspectAfter {
		logger.Warn(
			"DeadAfter equals SuspectAfter, entities will pass through Suspect in the same sweep",
			"deadAfter", cfg.DeadAfter,
		)
	}

	if cfg.Policy == PolicyAccrual && cfg.SweepInterval > cfg.Accrual.FirstHeartbeatEstimate {
		logger.Warn(
			"SweepInterval is coarser than the expected heartbeat interval",
			"sweepInterval", cfg.SweepInterval,
			"firstHeartbeatEstimate", cfg.Accrual.FirstHeartbeatEstimate,
		)
	}

	if cfg.Policy == PolicyAccrual && cfg.Accrual.WindowSize < 10 {
		logger.Warn(
			"Accrual.WindowSize is small, phi will be noisy",
			"windowSize", cfg.Accrual.WindowSize,
			"recommended", "100",
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Timings are roughly 100x faster than production defaults. Use
// DefaultConfig() for production deployments.
//
// Example:
//
//	cfg := heartbeat.TestConfig()
//	cfg.AutoRegister = true
//	err := coord.Start(ctx, &cfg)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.SuspectAfter = 50 * time.Millisecond
	cfg.DeadAfter = 150 * time.Millisecond
	cfg.SweepInterval = 10 * time.Millisecond
	cfg.Accrual.MinStdDev = 5 * time.Millisecond
	cfg.Accrual.FirstHeartbeatEstimate = 20 * time.Millisecond
	cfg.Dispatch.DrainTimeout = 1 * time.Second

	return cfg
}

// ParseConfig decodes YAML, applies defaults and validates the result.
//
// Returns:
//   - *Config: Validated configuration
//   - error: Decode error, or validation error wrapping ErrInvalidConfig
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}
