package coordinator

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// LogLevel controls coordinator log verbosity, set via ST_WORKER_LOG_LEVEL.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return "none"
	}
}

func parseLogLevel(raw string) LogLevel {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "none", "off", "0":
		return LogLevelNone
	case "error", "err", "1":
		return LogLevelError
	case "warn", "warning", "2":
		return LogLevelWarn
	case "info", "3":
		return LogLevelInfo
	case "debug", "4":
		return LogLevelDebug
	case "trace", "5":
		return LogLevelTrace
	default:
		return LogLevelWarn
	}
}

// eventLogger emits structured JSON events to the process log and,
// when ST_WORKER_TRACE names a file, appends every event there
// regardless of level.
type eventLogger struct {
	level     LogLevel
	tracePath string

	traceMu   sync.Mutex
	traceFile *os.File
}

func newEventLogger() *eventLogger {
	return &eventLogger{
		level:     parseLogLevel(os.Getenv("ST_WORKER_LOG_LEVEL")),
		tracePath: strings.TrimSpace(os.Getenv("ST_WORKER_TRACE")),
	}
}

func (l *eventLogger) openTrace() {
	if l.tracePath == "" {
		return
	}
	l.traceMu.Lock()
	defer l.traceMu.Unlock()
	if l.traceFile != nil {
		return
	}
	f, err := os.OpenFile(l.tracePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("coordinator: trace open failed: %v", err)
		return
	}
	l.traceFile = f
}

func (l *eventLogger) closeTrace() {
	l.traceMu.Lock()
	f := l.traceFile
	l.traceFile = nil
	l.traceMu.Unlock()
	if f != nil {
		_ = f.Close()
	}
}

func (l *eventLogger) event(level LogLevel, event string, fields map[string]any) {
	if l == nil || level == LogLevelNone {
		return
	}
	toLog := l.level != LogLevelNone && level <= l.level
	l.traceMu.Lock()
	traceFile := l.traceFile
	l.traceMu.Unlock()
	if !toLog && traceFile == nil {
		return
	}

	payload := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"component": "coordinator",
		"event":     event,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("coordinator: failed to marshal log event %s: %v", event, err)
		return
	}

	if toLog {
		log.Printf("%s", b)
	}
	if traceFile != nil {
		l.traceMu.Lock()
		if l.traceFile != nil {
			_, _ = l.traceFile.Write(append(b, '\n'))
		}
		l.traceMu.Unlock()
	}
}

// keyPrefix returns a safe prefix of a cache key for logging.
func keyPrefix(key string) string {
	if len(key) > 16 {
		return key[:16]
	}
	return key
}
