package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherDetectsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.yaml")
	writeFile(t, path, "a: 1\n")

	var changes atomic.Int32
	w, err := New(path,
		WithDebounceDuration(20*time.Millisecond),
		WithOnChange(func() { changes.Add(1) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, path, "a: 2\n")

	select {
	case <-w.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("change never observed")
	}
	if changes.Load() == 0 {
		t.Fatal("onChange callback not invoked")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.yaml")
	writeFile(t, path, "a: 1\n")

	w, err := New(path, WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "other.yaml"), "b: 1\n")

	select {
	case <-w.Changed():
		t.Fatal("sibling file write reported as a change")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDetectsRenameOver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.yaml")
	writeFile(t, path, "a: 1\n")

	w, err := New(path, WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Atomic save: write a temp file, rename it over the target.
	tmp := filepath.Join(dir, ".watched.yaml.tmp")
	writeFile(t, tmp, "a: 2\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("rename-over save never observed")
	}
}

func TestWatcherStartTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.yaml")
	writeFile(t, path, "a: 1\n")

	w, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.Start(); err != ErrAlreadyStarted {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.yaml")
	writeFile(t, path, "a: 1\n")

	w, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if w.IsStarted() {
		t.Fatal("watcher reports started after Stop")
	}
}

func TestWatcherRemoveReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.yaml")
	writeFile(t, path, "a: 1\n")

	errCh := make(chan error, 4)
	w, err := New(path,
		WithDebounceDuration(20*time.Millisecond),
		WithOnError(func(e error) { errCh <- e }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-errCh:
			if e == ErrFileRemoved {
				return
			}
		case <-deadline:
			t.Fatal("file removal never reported")
		}
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("burst produced %d invocations, want 1", got)
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Cancel()

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("cancelled trigger still ran %d time(s)", got)
	}
}

func TestDebouncerZeroDurationUsesDefault(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Fatalf("duration = %v, want default %v", d.Duration(), DefaultDebounceDuration)
	}
}
