// Package datasource discovers and loads observation data for the
// analytics pipeline. It selects the freshest valid source among a
// tracker SQLite export and JSONL observation logs, and loads either
// into an AnalyticsRequest.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SourceType identifies the kind of data source.
type SourceType string

const (
	// SourceTypeSQLite is a tracker database export (observations.db).
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a line-delimited JSON observation log.
	SourceTypeJSONL SourceType = "jsonl"
)

// Priority values for source types (higher = more authoritative when
// modification times are equal).
const (
	PrioritySQLite = 100
	PriorityJSONL  = 50
)

// DefaultDBName is the tracker database filename looked for during
// discovery.
const DefaultDBName = "observations.db"

// DataSource is one candidate source of observation data.
type DataSource struct {
	Type            SourceType `json:"type"`
	Path            string     `json:"path"`
	Priority        int        `json:"priority"`
	ModTime         time.Time  `json:"mod_time"`
	Valid           bool       `json:"valid"`
	ValidationError string     `json:"validation_error,omitempty"`
	EntryCount      int        `json:"entry_count"`
	Size            int64      `json:"size"`
}

func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, entries=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.EntryCount, status)
}

// DiscoveryOptions configures source discovery.
type DiscoveryOptions struct {
	// DataDir is the observation data directory. Falls back to
	// ST_DATA_DIR, then the current directory.
	DataDir string
	// ValidateAfterDiscovery runs validation on each discovered source.
	ValidateAfterDiscovery bool
	// IncludeInvalid keeps sources that failed validation in the result.
	IncludeInvalid bool
	// Logger receives discovery progress messages; nil discards them.
	Logger func(msg string)
}

// DiscoverSources finds candidate sources in the data directory, sorted
// freshest first (priority breaks modification-time ties).
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	dir := opts.DataDir
	if dir == "" {
		dir = os.Getenv("ST_DATA_DIR")
	}
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	opts.Logger(fmt.Sprintf("discovering sources in %s", dir))

	var sources []DataSource

	dbPath := filepath.Join(dir, DefaultDBName)
	if info, err := os.Stat(dbPath); err == nil {
		sources = append(sources, DataSource{
			Type:     SourceTypeSQLite,
			Path:     dbPath,
			Priority: PrioritySQLite,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		// Skip backups and merge artifacts.
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") || strings.Contains(name, ".merge") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sources = append(sources, DataSource{
			Type:     SourceTypeJSONL,
			Path:     filepath.Join(dir, name),
			Priority: PriorityJSONL,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				opts.Logger(fmt.Sprintf("validation failed for %s: %v", sources[i].Path, err))
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})

	opts.Logger(fmt.Sprintf("discovered %d source(s)", len(sources)))
	return sources, nil
}

// ValidateSource checks that a source is readable and counts its
// entries, recording the outcome on the source itself.
func ValidateSource(s *DataSource) error {
	var (
		count int
		err   error
	)
	switch s.Type {
	case SourceTypeSQLite:
		count, err = countSQLiteEntries(s.Path)
	case SourceTypeJSONL:
		count, err = countJSONLRecords(s.Path)
	default:
		err = fmt.Errorf("unknown source type %q", s.Type)
	}
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.EntryCount = count
	return nil
}

// SelectBestSource discovers, validates, and returns the freshest valid
// source.
func SelectBestSource(opts DiscoveryOptions) (DataSource, error) {
	opts.ValidateAfterDiscovery = true
	opts.IncludeInvalid = false
	sources, err := DiscoverSources(opts)
	if err != nil {
		return DataSource{}, err
	}
	if len(sources) == 0 {
		return DataSource{}, fmt.Errorf("no valid observation data source found")
	}
	return sources[0], nil
}
