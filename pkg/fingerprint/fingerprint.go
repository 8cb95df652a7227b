// Package fingerprint derives a stable identity for a dataset so that
// identical inputs produce identical cache keys regardless of how the
// collections were assembled. The digest is a pure function of content:
// two requests with the same logical data, in any order, map to the same
// key.
package fingerprint

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mverbeek/sensetrack/pkg/model"
)

// canonicalEntry is the serialized form of a single point. Timestamps are
// rendered as fixed-format UTC strings so the digest does not depend on
// the caller's wall-clock representation.
type canonicalEntry struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Category  string   `json:"category"`
	Subject   string   `json:"subject,omitempty"`
	Intensity int      `json:"intensity,omitempty"`
	Timestamp string   `json:"ts"`
	Extra     []string `json:"extra,omitempty"`
	Env       string   `json:"env,omitempty"`
}

type canonicalDataset struct {
	Entries  []canonicalEntry `json:"entries"`
	Emotions []canonicalEntry `json:"emotions"`
	Sensory  []canonicalEntry `json:"sensory"`
}

// Dataset computes the cache key for a request's collections: a 64-bit
// FNV-1a digest of the canonicalized dataset with the raw point count
// appended as a cheap secondary collision discriminator.
//
// Never fails: if canonical serialization is impossible the key degrades
// to a coarse count-and-latest-timestamp form, which is lower fidelity
// (distinct datasets with equal shape collide) but still deterministic.
func Dataset(entries []model.TrackingEntry, emotions []model.EmotionEntry, sensory []model.SensoryEntry) string {
	total := len(entries) + len(emotions) + len(sensory)

	ds := canonicalDataset{
		Entries:  canonicalTracking(entries),
		Emotions: canonicalEmotions(emotions),
		Sensory:  canonicalSensory(sensory),
	}

	payload, err := json.Marshal(ds)
	if err != nil {
		return coarseKey(entries, emotions, sensory, total)
	}

	h := fnv.New64a()
	_, _ = h.Write(payload)
	return fmt.Sprintf("%016x-%d", h.Sum64(), total)
}

// Request is a convenience wrapper over Dataset.
func Request(req model.AnalyticsRequest) string {
	return Dataset(req.Entries, req.Emotions, req.SensoryInputs)
}

func canonicalTracking(entries []model.TrackingEntry) []canonicalEntry {
	out := make([]canonicalEntry, 0, len(entries))
	for _, e := range entries {
		ce := canonicalEntry{
			ID:        e.ID,
			Kind:      "tracking",
			Subject:   e.StudentID,
			Timestamp: canonicalTime(e.Timestamp),
		}
		// Child collections and environment fold into the extra list so
		// that edits inside a session change the session's identity.
		for _, em := range e.Emotions {
			ce.Extra = append(ce.Extra, fmt.Sprintf("e:%s:%s:%d:%s", em.ID, em.Emotion, em.Intensity, canonicalTime(em.Timestamp)))
		}
		for _, s := range e.Sensory {
			ce.Extra = append(ce.Extra, fmt.Sprintf("s:%s:%s:%s:%d:%s", s.ID, s.Channel, s.Response, s.Intensity, canonicalTime(s.Timestamp)))
		}
		if env := e.Environment; env != nil {
			ce.Env = fmt.Sprintf("%.3f|%.3f|%.3f|%.3f|%s", env.Noise, env.Light, env.Temperature, env.Crowd, env.Activity)
		}
		sort.Strings(ce.Extra)
		out = append(out, ce)
	}
	sortCanonical(out)
	return out
}

func canonicalEmotions(emotions []model.EmotionEntry) []canonicalEntry {
	out := make([]canonicalEntry, 0, len(emotions))
	for _, e := range emotions {
		triggers := append([]string(nil), e.Triggers...)
		sort.Strings(triggers)
		out = append(out, canonicalEntry{
			ID:        e.ID,
			Kind:      "emotion",
			Category:  string(e.Emotion),
			Subject:   e.StudentID,
			Intensity: e.Intensity,
			Timestamp: canonicalTime(e.Timestamp),
			Extra:     triggers,
		})
	}
	sortCanonical(out)
	return out
}

func canonicalSensory(sensory []model.SensoryEntry) []canonicalEntry {
	out := make([]canonicalEntry, 0, len(sensory))
	for _, s := range sensory {
		out = append(out, canonicalEntry{
			ID:        s.ID,
			Kind:      "sensory",
			Category:  string(s.Channel) + "/" + string(s.Response),
			Subject:   s.StudentID,
			Intensity: s.Intensity,
			Timestamp: canonicalTime(s.Timestamp),
			Env:       s.Environment,
		})
	}
	sortCanonical(out)
	return out
}

// sortCanonical orders by timestamp descending, breaking ties by ID so
// equal-timestamp permutations still canonicalize identically.
func sortCanonical(entries []canonicalEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].ID < entries[j].ID
	})
}

func canonicalTime(t model.FlexTime) string {
	// Never-set timestamps get a fixed sentinel instead of FlexTime's
	// "now" coercion: the digest must not depend on when it is computed.
	if t.IsZero() {
		return "unset"
	}
	return t.Time().UTC().Format(time.RFC3339Nano)
}

// coarseKey is the degraded fallback: counts plus the latest timestamp
// per collection. Documented lower-fidelity; only reachable when JSON
// serialization of plain structs fails.
func coarseKey(entries []model.TrackingEntry, emotions []model.EmotionEntry, sensory []model.SensoryEntry, total int) string {
	latest := func(times []time.Time) int64 {
		var max int64
		for _, t := range times {
			if n := t.UnixNano(); n > max {
				max = n
			}
		}
		return max
	}
	var et, mt, st []time.Time
	for _, e := range entries {
		et = append(et, e.Timestamp.Time())
	}
	for _, e := range emotions {
		mt = append(mt, e.Timestamp.Time())
	}
	for _, s := range sensory {
		st = append(st, s.Timestamp.Time())
	}
	return fmt.Sprintf("coarse-%d-%d-%d-%d-%d-%d-%d",
		len(entries), len(emotions), len(sensory),
		latest(et), latest(mt), latest(st), total)
}
