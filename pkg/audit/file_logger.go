package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogger implements audit logging to a JSON-lines file
type FileLogger struct {
	path string
	mu   sync.Mutex
	out  *lumberjack.Logger
	enc  *json.Encoder
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	Path       string // Audit log file
	MaxSizeMB  int    // Size in megabytes before rotation (default: 10)
	MaxBackups int    // Rotated files to keep (default: 5)
}

// NewFileLogger creates a new file-based audit logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	if config.MaxSizeMB == 0 {
		config.MaxSizeMB = 10
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 5
	}

	out := &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
	}
	return &FileLogger{
		path: config.Path,
		out:  out,
		enc:  json.NewEncoder(out),
	}, nil
}

// Log appends event to the file
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enc.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// ReadLogs returns the most recent events of the current file, oldest
// first. A limit of zero or less returns all of them.
func (l *FileLogger) ReadLogs(limit int) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ReadFile(l.path, limit)
}

// Close closes the underlying file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// ReadFile reads the events stored at path as ReadLogs does. A missing
// file holds no events.
func ReadFile(path string, limit int) ([]*Event, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []*Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("failed to parse audit log: %w", err)
		}
		events = append(events, &event)
		if limit > 0 && len(events) > limit {
			events = events[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}
