// Package model defines the observation entry types consumed by the
// analytics pipeline. Entries are immutable once captured; every package
// downstream treats them as read-only input.
package model

import (
	"fmt"
	"time"
)

// Emotion is a recorded emotion label.
type Emotion string

// Common emotion labels. The set is open: data entry may record labels
// outside this list and the pipeline groups by whatever it receives.
const (
	EmotionHappy      Emotion = "happy"
	EmotionCalm       Emotion = "calm"
	EmotionAnxious    Emotion = "anxious"
	EmotionFrustrated Emotion = "frustrated"
	EmotionSad        Emotion = "sad"
	EmotionExcited    Emotion = "excited"
	EmotionAngry      Emotion = "angry"
	EmotionOverwhelmed Emotion = "overwhelmed"
)

// SensoryChannel identifies which sense an observation concerns.
type SensoryChannel string

const (
	ChannelVisual        SensoryChannel = "visual"
	ChannelAuditory      SensoryChannel = "auditory"
	ChannelTactile       SensoryChannel = "tactile"
	ChannelVestibular    SensoryChannel = "vestibular"
	ChannelProprioceptive SensoryChannel = "proprioceptive"
	ChannelOlfactory     SensoryChannel = "olfactory"
	ChannelGustatory     SensoryChannel = "gustatory"
)

// SensoryResponse categorizes how the student responded to the input.
type SensoryResponse string

const (
	ResponseSeeking     SensoryResponse = "seeking"
	ResponseAvoiding    SensoryResponse = "avoiding"
	ResponseNeutral     SensoryResponse = "neutral"
	ResponseOverwhelmed SensoryResponse = "overwhelmed"
)

// Intensity bounds for emotion and sensory observations.
const (
	MinIntensity = 1
	MaxIntensity = 5
)

// EmotionEntry is one observed emotional event.
type EmotionEntry struct {
	ID        string   `json:"id"`
	StudentID string   `json:"student_id,omitempty"`
	Emotion   Emotion  `json:"emotion"`
	Intensity int      `json:"intensity"`
	Timestamp FlexTime `json:"timestamp"`
	Triggers  []string `json:"triggers,omitempty"`
	Note      string   `json:"note,omitempty"`
}

// Validate checks structural invariants of the entry.
func (e EmotionEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("emotion entry missing id")
	}
	if e.Emotion == "" {
		return fmt.Errorf("emotion entry %s missing emotion label", e.ID)
	}
	if e.Intensity < MinIntensity || e.Intensity > MaxIntensity {
		return fmt.Errorf("emotion entry %s intensity %d out of range [%d,%d]",
			e.ID, e.Intensity, MinIntensity, MaxIntensity)
	}
	return nil
}

// SensoryEntry is one observed sensory event.
type SensoryEntry struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id,omitempty"`
	Channel     SensoryChannel  `json:"channel"`
	Response    SensoryResponse `json:"response"`
	Intensity   int             `json:"intensity"`
	Timestamp   FlexTime        `json:"timestamp"`
	Environment string          `json:"environment,omitempty"`
	Note        string          `json:"note,omitempty"`
}

// Validate checks structural invariants of the entry.
func (s SensoryEntry) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("sensory entry missing id")
	}
	if s.Channel == "" {
		return fmt.Errorf("sensory entry %s missing channel", s.ID)
	}
	if s.Intensity < MinIntensity || s.Intensity > MaxIntensity {
		return fmt.Errorf("sensory entry %s intensity %d out of range [%d,%d]",
			s.ID, s.Intensity, MinIntensity, MaxIntensity)
	}
	return nil
}

// EnvironmentSnapshot captures ambient conditions during a session.
// Noise, light and crowd use the same 1-5 scale as intensities;
// temperature is degrees Celsius.
type EnvironmentSnapshot struct {
	Noise       float64 `json:"noise"`
	Light       float64 `json:"light"`
	Temperature float64 `json:"temperature"`
	Crowd       float64 `json:"crowd"`
	Activity    string  `json:"activity,omitempty"`
}

// TrackingEntry aggregates one observation session: the emotions and
// sensory events recorded during it plus the environment they occurred in.
type TrackingEntry struct {
	ID          string               `json:"id"`
	StudentID   string               `json:"student_id,omitempty"`
	Timestamp   FlexTime             `json:"timestamp"`
	Emotions    []EmotionEntry       `json:"emotions,omitempty"`
	Sensory     []SensoryEntry       `json:"sensory,omitempty"`
	Environment *EnvironmentSnapshot `json:"environment,omitempty"`
	Note        string               `json:"note,omitempty"`
}

// Validate checks structural invariants of the session and its children.
func (t TrackingEntry) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tracking entry missing id")
	}
	for i, e := range t.Emotions {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("tracking entry %s emotion %d: %w", t.ID, i, err)
		}
	}
	for i, s := range t.Sensory {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("tracking entry %s sensory %d: %w", t.ID, i, err)
		}
	}
	return nil
}

// Time returns the session timestamp as a time.Time.
func (t TrackingEntry) Time() time.Time {
	return t.Timestamp.Time()
}
