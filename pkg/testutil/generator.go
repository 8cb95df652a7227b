// Package testutil provides deterministic observation fixture generators
// and test assertions. All generators are seeded so tests reproduce
// exactly.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mverbeek/sensetrack/pkg/model"
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed      int64     // random seed for determinism (0 = current time)
	IDPrefix  string    // prefix for entry IDs (default "TEST")
	BaseTime  time.Time // base timestamp (default fixed date)
	StudentID string    // subject attached to generated entries
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42,
		IDPrefix:  "TEST",
		BaseTime:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		StudentID: "student-1",
	}
}

// Generator creates observation fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
	n   int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "TEST"
	}
	if cfg.StudentID == "" {
		cfg.StudentID = "student-1"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Default creates a Generator with DefaultConfig.
func Default() *Generator {
	return New(DefaultConfig())
}

func (g *Generator) nextID() string {
	g.n++
	return fmt.Sprintf("%s-%04d", g.cfg.IDPrefix, g.n)
}

// UUID returns a random but seed-independent unique ID, for tests that
// need realistic-looking identifiers rather than reproducible ones.
func (g *Generator) UUID() string {
	return uuid.NewString()
}

// Emotion generates one emotion entry at an offset from the base time.
func (g *Generator) Emotion(label model.Emotion, intensity int, offset time.Duration) model.EmotionEntry {
	return model.EmotionEntry{
		ID:        g.nextID(),
		StudentID: g.cfg.StudentID,
		Emotion:   label,
		Intensity: intensity,
		Timestamp: model.At(g.cfg.BaseTime.Add(offset)),
	}
}

// Sensory generates one sensory entry at an offset from the base time.
func (g *Generator) Sensory(channel model.SensoryChannel, response model.SensoryResponse, intensity int, offset time.Duration) model.SensoryEntry {
	return model.SensoryEntry{
		ID:        g.nextID(),
		StudentID: g.cfg.StudentID,
		Channel:   channel,
		Response:  response,
		Intensity: intensity,
		Timestamp: model.At(g.cfg.BaseTime.Add(offset)),
	}
}

// Session generates one tracking session with the given environment.
func (g *Generator) Session(env *model.EnvironmentSnapshot, offset time.Duration) model.TrackingEntry {
	return model.TrackingEntry{
		ID:          g.nextID(),
		StudentID:   g.cfg.StudentID,
		Timestamp:   model.At(g.cfg.BaseTime.Add(offset)),
		Environment: env,
	}
}

// EmotionSeries generates count entries of one label spread evenly over
// spanDays calendar days, intensities drawn from [minIntensity, maxIntensity].
func (g *Generator) EmotionSeries(label model.Emotion, count, spanDays, minIntensity, maxIntensity int) []model.EmotionEntry {
	entries := make([]model.EmotionEntry, 0, count)
	for i := 0; i < count; i++ {
		day := 0
		if count > 1 && spanDays > 1 {
			day = i * spanDays / count
		}
		intensity := minIntensity
		if maxIntensity > minIntensity {
			intensity += g.rng.Intn(maxIntensity - minIntensity + 1)
		}
		offset := time.Duration(day)*24*time.Hour + time.Duration(i)*time.Minute
		entries = append(entries, g.Emotion(label, intensity, offset))
	}
	return entries
}

// SensorySeries generates count entries for one channel/response spread
// evenly over spanDays calendar days.
func (g *Generator) SensorySeries(channel model.SensoryChannel, response model.SensoryResponse, count, spanDays, minIntensity, maxIntensity int) []model.SensoryEntry {
	entries := make([]model.SensoryEntry, 0, count)
	for i := 0; i < count; i++ {
		day := 0
		if count > 1 && spanDays > 1 {
			day = i * spanDays / count
		}
		intensity := minIntensity
		if maxIntensity > minIntensity {
			intensity += g.rng.Intn(maxIntensity - minIntensity + 1)
		}
		offset := time.Duration(day)*24*time.Hour + time.Duration(i)*time.Minute
		entries = append(entries, g.Sensory(channel, response, intensity, offset))
	}
	return entries
}

// LinearSessions generates count sessions where emotion intensity tracks
// the noise level perfectly: intensity = noise. Useful for correlation
// tests expecting |r| ≈ 1.
func (g *Generator) LinearSessions(count int) []model.TrackingEntry {
	sessions := make([]model.TrackingEntry, 0, count)
	for i := 0; i < count; i++ {
		noise := float64(1 + i%5)
		s := g.Session(&model.EnvironmentSnapshot{
			Noise:       noise,
			Light:       float64(1 + (i*3)%5),
			Temperature: 20,
			Crowd:       float64(1 + (i*7)%5),
		}, time.Duration(i)*time.Hour)
		s.Emotions = []model.EmotionEntry{
			g.Emotion(model.EmotionAnxious, int(noise), time.Duration(i)*time.Hour),
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// Request bundles generated collections into an AnalyticsRequest.
func Request(entries []model.TrackingEntry, emotions []model.EmotionEntry, sensory []model.SensoryEntry) model.AnalyticsRequest {
	return model.AnalyticsRequest{
		Entries:       entries,
		Emotions:      emotions,
		SensoryInputs: sensory,
	}
}
