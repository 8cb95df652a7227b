package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvCacheTTLSeconds,
		EnvMinDataPoints,
		EnvCorrelationMinEntries,
		EnvAnomalyStdDevs,
		EnvWatchdogTimeoutSeconds,
	} {
		t.Setenv(name, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Default()

	if cfg.MinDataPoints != 10 {
		t.Errorf("MinDataPoints = %d, want 10", cfg.MinDataPoints)
	}
	if cfg.RecommendedTimeSpanDays != 21 {
		t.Errorf("RecommendedTimeSpanDays = %d, want 21", cfg.RecommendedTimeSpanDays)
	}
	if cfg.CorrelationMinEntries != 10 {
		t.Errorf("CorrelationMinEntries = %d, want 10", cfg.CorrelationMinEntries)
	}
	if cfg.CorrelationThreshold != 0.25 {
		t.Errorf("CorrelationThreshold = %v, want 0.25", cfg.CorrelationThreshold)
	}
	if cfg.AnomalyStdDevs != 2.0 {
		t.Errorf("AnomalyStdDevs = %v, want 2.0", cfg.AnomalyStdDevs)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache.TTL = %v, want 10m", cfg.Cache.TTL)
	}
	if cfg.Cache.Capacity != 50 {
		t.Errorf("Cache.Capacity = %d, want 50", cfg.Cache.Capacity)
	}
	if !cfg.Cache.InvalidateOnConfigChange {
		t.Error("InvalidateOnConfigChange should default on")
	}
	if cfg.WatchdogTimeout != 10*time.Second {
		t.Errorf("WatchdogTimeout = %v, want 10s", cfg.WatchdogTimeout)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCacheTTLSeconds, "120")
	t.Setenv(EnvMinDataPoints, "25")
	t.Setenv(EnvAnomalyStdDevs, "2.5")
	t.Setenv(EnvWatchdogTimeoutSeconds, "8")

	cfg := Default()
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("Cache.TTL = %v, want 2m", cfg.Cache.TTL)
	}
	if cfg.MinDataPoints != 25 {
		t.Errorf("MinDataPoints = %d, want 25", cfg.MinDataPoints)
	}
	if cfg.AnomalyStdDevs != 2.5 {
		t.Errorf("AnomalyStdDevs = %v, want 2.5", cfg.AnomalyStdDevs)
	}
	if cfg.WatchdogTimeout != 8*time.Second {
		t.Errorf("WatchdogTimeout = %v, want 8s", cfg.WatchdogTimeout)
	}
}

func TestApplyEnvOverridesRejectsGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMinDataPoints, "banana")
	t.Setenv(EnvAnomalyStdDevs, "-1")
	t.Setenv(EnvCacheTTLSeconds, "0")

	cfg := Default()
	if cfg.MinDataPoints != 10 {
		t.Errorf("non-numeric override applied: MinDataPoints = %d", cfg.MinDataPoints)
	}
	if cfg.AnomalyStdDevs != 2.0 {
		t.Errorf("negative override applied: AnomalyStdDevs = %v", cfg.AnomalyStdDevs)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("zero override applied: Cache.TTL = %v", cfg.Cache.TTL)
	}
}

func TestClampedWatchdog(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, MinWatchdogTimeout},
		{time.Second, MinWatchdogTimeout},
		{5 * time.Second, 5 * time.Second},
		{12 * time.Second, 12 * time.Second},
		{20 * time.Second, 20 * time.Second},
		{time.Minute, MaxWatchdogTimeout},
	}
	for _, tc := range cases {
		cfg := Config{WatchdogTimeout: tc.in}
		if got := cfg.ClampedWatchdog(); got != tc.want {
			t.Errorf("ClampedWatchdog(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sensetrack.yaml")
	data := []byte(`
min_data_points: 15
anomaly_std_devs: 3.0
cache:
  capacity: 10
  invalidate_on_config_change: false
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinDataPoints != 15 {
		t.Errorf("MinDataPoints = %d, want 15", cfg.MinDataPoints)
	}
	if cfg.AnomalyStdDevs != 3.0 {
		t.Errorf("AnomalyStdDevs = %v, want 3.0", cfg.AnomalyStdDevs)
	}
	if cfg.Cache.Capacity != 10 {
		t.Errorf("Cache.Capacity = %d, want 10", cfg.Cache.Capacity)
	}
	if cfg.Cache.InvalidateOnConfigChange {
		t.Error("explicit false overridden")
	}
	// Unset fields backfill from defaults.
	if cfg.CorrelationMinEntries != 10 {
		t.Errorf("CorrelationMinEntries = %d, want default 10", cfg.CorrelationMinEntries)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache.TTL = %v, want default 10m", cfg.Cache.TTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("min_data_points: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStoreGetSet(t *testing.T) {
	clearEnv(t)
	s := NewStore(Default())

	cfg := s.Get()
	cfg.MinDataPoints = 99
	s.Set(cfg)

	if got := s.Get().MinDataPoints; got != 99 {
		t.Fatalf("MinDataPoints after Set = %d, want 99", got)
	}
}

func TestStoreSubscribe(t *testing.T) {
	clearEnv(t)
	s := NewStore(Default())

	var seen []int
	unsub := s.Subscribe(func(c Config) {
		seen = append(seen, c.MinDataPoints)
	})

	s.Update(func(c Config) Config {
		c.MinDataPoints = 11
		return c
	})
	s.Update(func(c Config) Config {
		c.MinDataPoints = 12
		return c
	})
	unsub()
	unsub() // second call is a no-op
	s.Update(func(c Config) Config {
		c.MinDataPoints = 13
		return c
	})

	if len(seen) != 2 || seen[0] != 11 || seen[1] != 12 {
		t.Fatalf("notifications = %v, want [11 12]", seen)
	}
	if got := s.Get().MinDataPoints; got != 13 {
		t.Fatalf("final config = %d, want 13", got)
	}
}

func TestStoreSubscriberCanReadBack(t *testing.T) {
	clearEnv(t)
	s := NewStore(Default())

	done := make(chan struct{})
	s.Subscribe(func(Config) {
		// Reading the store from inside a callback must not deadlock.
		_ = s.Get()
		close(done)
	})

	go s.Update(func(c Config) Config { return c })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber deadlocked reading the store back")
	}
}

func TestStoreWatchFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sensetrack.yaml")
	if err := os.WriteFile(path, []byte("min_data_points: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(Default())
	changed := make(chan int, 4)
	s.Subscribe(func(c Config) { changed <- c.MinDataPoints })

	stop, err := s.WatchFile(path, func(err error) { t.Logf("watch error: %v", err) })
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("min_data_points: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-changed:
			if n == 42 {
				return
			}
		case <-deadline:
			t.Fatal("file change never reached the store")
		}
	}
}
