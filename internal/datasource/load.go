package datasource

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mverbeek/sensetrack/pkg/metrics"
	"github.com/mverbeek/sensetrack/pkg/model"
)

// Record kinds accepted in JSONL observation logs.
const (
	KindEmotion = "emotion"
	KindSensory = "sensory"
	KindSession = "session"
)

// maxLineBytes bounds a single JSONL line. Observation records are
// small; anything near this size is corrupt.
const maxLineBytes = 1 << 20

// LoadOptions configures loading.
type LoadOptions struct {
	// WarningHandler receives one message per skipped malformed record;
	// nil discards them.
	WarningHandler func(msg string)
}

// LoadRequest loads a source into an AnalyticsRequest. Malformed records
// are skipped with a warning, never fatal; entries without an ID get one
// assigned so downstream bookkeeping always has a key.
func LoadRequest(source DataSource, opts LoadOptions) (model.AnalyticsRequest, error) {
	defer metrics.Timer(metrics.DatasetLoad)()

	if opts.WarningHandler == nil {
		opts.WarningHandler = func(string) {}
	}

	switch source.Type {
	case SourceTypeJSONL:
		return loadJSONL(source.Path, opts)
	case SourceTypeSQLite:
		return loadSQLite(source.Path, opts)
	default:
		return model.AnalyticsRequest{}, fmt.Errorf("unknown source type %q", source.Type)
	}
}

func loadJSONL(path string, opts LoadOptions) (model.AnalyticsRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.AnalyticsRequest{}, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()

	var req model.AnalyticsRequest

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var envelope struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(line, &envelope); err != nil {
			opts.WarningHandler(fmt.Sprintf("%s:%d: malformed record: %v", path, lineNo, err))
			continue
		}

		switch envelope.Kind {
		case KindEmotion:
			var e model.EmotionEntry
			if err := json.Unmarshal(line, &e); err != nil {
				opts.WarningHandler(fmt.Sprintf("%s:%d: bad emotion record: %v", path, lineNo, err))
				continue
			}
			ensureID(&e.ID)
			if err := e.Validate(); err != nil {
				opts.WarningHandler(fmt.Sprintf("%s:%d: %v", path, lineNo, err))
				continue
			}
			req.Emotions = append(req.Emotions, e)
		case KindSensory:
			var s model.SensoryEntry
			if err := json.Unmarshal(line, &s); err != nil {
				opts.WarningHandler(fmt.Sprintf("%s:%d: bad sensory record: %v", path, lineNo, err))
				continue
			}
			ensureID(&s.ID)
			if err := s.Validate(); err != nil {
				opts.WarningHandler(fmt.Sprintf("%s:%d: %v", path, lineNo, err))
				continue
			}
			req.SensoryInputs = append(req.SensoryInputs, s)
		case KindSession:
			var t model.TrackingEntry
			if err := json.Unmarshal(line, &t); err != nil {
				opts.WarningHandler(fmt.Sprintf("%s:%d: bad session record: %v", path, lineNo, err))
				continue
			}
			ensureID(&t.ID)
			for i := range t.Emotions {
				ensureID(&t.Emotions[i].ID)
			}
			for i := range t.Sensory {
				ensureID(&t.Sensory[i].ID)
			}
			if err := t.Validate(); err != nil {
				opts.WarningHandler(fmt.Sprintf("%s:%d: %v", path, lineNo, err))
				continue
			}
			req.Entries = append(req.Entries, t)
		default:
			opts.WarningHandler(fmt.Sprintf("%s:%d: unknown record kind %q", path, lineNo, envelope.Kind))
		}
	}
	if err := scanner.Err(); err != nil {
		return model.AnalyticsRequest{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return req, nil
}

// countJSONLRecords counts parseable records without building entries.
func countJSONLRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	count := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
