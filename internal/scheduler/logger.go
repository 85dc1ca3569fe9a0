package scheduler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger records scheduling decisions (admissions, deferrals, stops,
// cycle resets) as timestamped lines. The zero value discards everything.
type DebugLogger struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
}

// NewDebugLogger creates a logger appending to the file at logPath.
// An empty path yields a no-op logger. Parent directories are created.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &DebugLogger{out: f, closer: f}
	logger.Log("=== scheduler log opened %s ===", time.Now().Format(time.RFC3339))
	return logger, nil
}

// NewWriterLogger creates a logger writing to w, e.g. os.Stderr for --verbose.
// The writer is not closed by Close.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{out: w}
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes one timestamped line. Nil and no-op loggers ignore the call.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	if f, ok := l.out.(*os.File); ok && l.closer != nil {
		f.Sync()
	}
}

// Close releases the log file, if the logger owns one.
func (l *DebugLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closer.Close()
}
