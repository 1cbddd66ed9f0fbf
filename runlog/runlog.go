// Package runlog writes the per-run translation log:
//
//	logs/translate_<group>_<YYYYmmdd_HHMMSS>.log
//
// Every line is "2006-01-02 15:04:05 | LEVEL    | message". Lines are also
// handed to an optional console sink.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDir holds run logs.
const DefaultDir = "logs"

const timeLayout = "2006-01-02 15:04:05"

// Level is a log line severity.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Options configures Open.
type Options struct {
	// Dir overrides DefaultDir.
	Dir string
	// Console receives every message after it is written to the file.
	Console func(level Level, msg string)
	// Now overrides time.Now.
	Now func() time.Time
}

// Log is an open run log. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	runID   string
	now     func() time.Time
	console func(Level, string)
}

// Open creates a new log file for name (usually a group key, or "all" for
// multi-group runs) and writes the run header.
func Open(name string, opts Options) (*Log, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	safe := strings.NewReplacer("/", "_", " ", "_").Replace(name)
	path := filepath.Join(dir, fmt.Sprintf("translate_%s_%s.log", safe, now().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}

	l := &Log{f: f, path: path, runID: uuid.NewString(), now: now, console: opts.Console}
	l.write(LevelInfo, fmt.Sprintf("run %s started for %s", l.runID, name), false)
	return l, nil
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// RunID returns the run identifier written in the header.
func (l *Log) RunID() string { return l.runID }

func (l *Log) Info(format string, args ...any) {
	l.write(LevelInfo, fmt.Sprintf(format, args...), true)
}

func (l *Log) Warning(format string, args ...any) {
	l.write(LevelWarning, fmt.Sprintf(format, args...), true)
}

func (l *Log) Error(format string, args ...any) {
	l.write(LevelError, fmt.Sprintf(format, args...), true)
}

func (l *Log) write(level Level, msg string, mirror bool) {
	l.mu.Lock()
	if l.f != nil {
		fmt.Fprintf(l.f, "%s | %-8s | %s\n", l.now().Format(timeLayout), level, msg)
	}
	l.mu.Unlock()
	if mirror && l.console != nil {
		l.console(level, msg)
	}
}

// Close writes the footer and closes the file. Calling Close twice is a
// no-op.
func (l *Log) Close() error {
	l.write(LevelInfo, fmt.Sprintf("run %s finished", l.runID), false)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
