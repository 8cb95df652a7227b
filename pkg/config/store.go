package config

import (
	"fmt"
	"sync"

	"github.com/mverbeek/sensetrack/pkg/watcher"
)

// Store owns a single in-memory Config and notifies subscribers
// synchronously on every update. Callbacks must not block; they run on
// the updating goroutine.
type Store struct {
	mu     sync.RWMutex
	cfg    Config
	subs   map[int]func(Config)
	nextID int

	fileWatcher *watcher.Watcher
}

// NewStore creates a store seeded with cfg.
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:  cfg,
		subs: make(map[int]func(Config)),
	}
}

// Get returns the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the configuration and notifies subscribers.
func (s *Store) Set(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	subs := make([]func(Config), 0, len(s.subs))
	for _, cb := range s.subs {
		subs = append(subs, cb)
	}
	s.mu.Unlock()

	// Notify outside the lock so a subscriber reading the store back
	// cannot deadlock.
	for _, cb := range subs {
		cb(cfg)
	}
}

// Update applies fn to the current config and stores the result.
func (s *Store) Update(fn func(Config) Config) {
	s.mu.RLock()
	cur := s.cfg
	s.mu.RUnlock()
	s.Set(fn(cur))
}

// Subscribe registers cb for synchronous notification on every update
// and returns an unsubscribe function. Unsubscribing twice is a no-op.
func (s *Store) Subscribe(cb func(Config)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// WatchFile reloads the store from path whenever the file changes.
// Returns a stop function that releases the watcher. Reload failures are
// reported through onError (which may be nil) and leave the current
// config in place.
func (s *Store) WatchFile(path string, onError func(error)) (func(), error) {
	if onError == nil {
		onError = func(error) {}
	}

	w, err := watcher.New(path, watcher.WithOnChange(func() {
		cfg, err := Load(path)
		if err != nil {
			onError(fmt.Errorf("config reload: %w", err))
			return
		}
		s.Set(cfg)
	}), watcher.WithOnError(onError))
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.fileWatcher = w
	s.mu.Unlock()

	return func() {
		w.Stop()
		s.mu.Lock()
		if s.fileWatcher == w {
			s.fileWatcher = nil
		}
		s.mu.Unlock()
	}, nil
}
