// Package config holds the process-wide analytics configuration: the
// thresholds and TTLs consumed by the compute engine, the cache
// invalidation policy, and the coordinator's watchdog window.
//
// Configuration is in-memory for the process lifetime. It can be seeded
// from a YAML file and tuned through ST_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Watchdog clamp bounds. The configured timeout is clamped into this
// range at read time to avoid both premature aborts and indefinite hangs.
const (
	MinWatchdogTimeout = 5 * time.Second
	MaxWatchdogTimeout = 20 * time.Second
)

// CacheConfig controls the result cache.
type CacheConfig struct {
	TTL                      time.Duration `yaml:"ttl,omitempty"`
	Capacity                 int           `yaml:"capacity,omitempty"`
	InvalidateOnConfigChange bool          `yaml:"invalidate_on_config_change"`
}

// Config is the recognized option set for the analytics core.
type Config struct {
	Cache CacheConfig `yaml:"cache,omitempty"`

	// MinDataPoints is the point count at which the data-quantity
	// component of confidence scoring saturates.
	MinDataPoints int `yaml:"min_data_points,omitempty"`

	// RecommendedTimeSpanDays is the observation span at which the
	// time-span component of confidence scoring saturates.
	RecommendedTimeSpanDays int `yaml:"recommended_time_span_days,omitempty"`

	// CorrelationMinEntries is the minimum tracking-entry count below
	// which correlation computation is skipped with an explicit
	// insufficient-data signal.
	CorrelationMinEntries int `yaml:"correlation_min_entries,omitempty"`

	// CorrelationThreshold is the |r| above which a factor pair is
	// reported as significant.
	CorrelationThreshold float64 `yaml:"correlation_threshold,omitempty"`

	// AnomalyStdDevs is how many standard deviations from the rolling
	// baseline an intensity must stray to be flagged.
	AnomalyStdDevs float64 `yaml:"anomaly_std_devs,omitempty"`

	// Predictive trend windows.
	RecentWindowDays   int `yaml:"recent_window_days,omitempty"`
	BaselineWindowDays int `yaml:"baseline_window_days,omitempty"`

	// WatchdogTimeout is the inactivity window before the coordinator
	// abandons a dispatched computation. Clamped; see ClampedWatchdog.
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout,omitempty"`
}

// Default returns the standard configuration with env overrides applied.
func Default() Config {
	cfg := Config{
		Cache: CacheConfig{
			TTL:                      10 * time.Minute,
			Capacity:                 50,
			InvalidateOnConfigChange: true,
		},
		MinDataPoints:           10,
		RecommendedTimeSpanDays: 21,
		CorrelationMinEntries:   10,
		CorrelationThreshold:    0.25,
		AnomalyStdDevs:          2.0,
		RecentWindowDays:        7,
		BaselineWindowDays:      30,
		WatchdogTimeout:         10 * time.Second,
	}
	return ApplyEnvOverrides(cfg)
}

// ClampedWatchdog returns the watchdog window bounded to
// [MinWatchdogTimeout, MaxWatchdogTimeout]. Clamping happens at read
// time so a later config change is re-clamped.
func (c Config) ClampedWatchdog() time.Duration {
	d := c.WatchdogTimeout
	if d < MinWatchdogTimeout {
		return MinWatchdogTimeout
	}
	if d > MaxWatchdogTimeout {
		return MaxWatchdogTimeout
	}
	return d
}

// Environment variable names recognized by ApplyEnvOverrides.
const (
	EnvCacheTTLSeconds        = "ST_CACHE_TTL_S"
	EnvMinDataPoints          = "ST_MIN_DATA_POINTS"
	EnvCorrelationMinEntries  = "ST_CORRELATION_MIN_ENTRIES"
	EnvAnomalyStdDevs         = "ST_ANOMALY_STDDEVS"
	EnvWatchdogTimeoutSeconds = "ST_WATCHDOG_TIMEOUT_S"
)

// ApplyEnvOverrides applies environment-variable tunables to cfg.
func ApplyEnvOverrides(cfg Config) Config {
	if secs, ok := envPositiveInt(EnvCacheTTLSeconds); ok {
		cfg.Cache.TTL = time.Duration(secs) * time.Second
	}
	if n, ok := envPositiveInt(EnvMinDataPoints); ok {
		cfg.MinDataPoints = n
	}
	if n, ok := envPositiveInt(EnvCorrelationMinEntries); ok {
		cfg.CorrelationMinEntries = n
	}
	if f, ok := envPositiveFloat(EnvAnomalyStdDevs); ok {
		cfg.AnomalyStdDevs = f
	}
	if secs, ok := envPositiveInt(EnvWatchdogTimeoutSeconds); ok {
		cfg.WatchdogTimeout = time.Duration(secs) * time.Second
	}
	return cfg
}

// Load reads a YAML config file, filling unset fields from Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return normalize(cfg), nil
}

// normalize backfills zero values so a sparse YAML file cannot produce
// degenerate thresholds.
func normalize(cfg Config) Config {
	def := Default()
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = def.Cache.Capacity
	}
	if cfg.MinDataPoints <= 0 {
		cfg.MinDataPoints = def.MinDataPoints
	}
	if cfg.RecommendedTimeSpanDays <= 0 {
		cfg.RecommendedTimeSpanDays = def.RecommendedTimeSpanDays
	}
	if cfg.CorrelationMinEntries <= 0 {
		cfg.CorrelationMinEntries = def.CorrelationMinEntries
	}
	if cfg.CorrelationThreshold <= 0 {
		cfg.CorrelationThreshold = def.CorrelationThreshold
	}
	if cfg.AnomalyStdDevs <= 0 {
		cfg.AnomalyStdDevs = def.AnomalyStdDevs
	}
	if cfg.RecentWindowDays <= 0 {
		cfg.RecentWindowDays = def.RecentWindowDays
	}
	if cfg.BaselineWindowDays <= 0 {
		cfg.BaselineWindowDays = def.BaselineWindowDays
	}
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = def.WatchdogTimeout
	}
	return cfg
}

func envPositiveInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envPositiveFloat(name string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
