package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventStart    EventType = "start"
	EventProcess  EventType = "process"
	EventSkip     EventType = "skip"
	EventCreate   EventType = "create"
	EventRename   EventType = "rename"
	EventScramble EventType = "scramble"
	EventRephrase EventType = "rephrase"
	EventConflict EventType = "conflict"
	EventError    EventType = "error"
	EventFinish   EventType = "finish"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name onto an EventLevel, defaulting to info
func ParseLevel(name string) EventLevel {
	level := EventLevel(name)
	if _, ok := levelPriority[level]; ok {
		return level
	}
	return LevelInfo
}

// Event represents a single event of a bulk operation
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	Operation    string            `json:"operation,omitempty"`
	Filename     string            `json:"filename,omitempty"`
	SrcPath      string            `json:"src_path,omitempty"`
	DestPath     string            `json:"dest_path,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	BytesWritten int64             `json:"bytes_written,omitempty"`
	Duration     int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Append so two runs in the same second share a file instead of clobbering it
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogStart logs the beginning of a bulk operation
func (l *EventLogger) LogStart(operation, folder string, total int) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventStart,
		Operation: operation,
		SrcPath:   folder,
		Extra: map[string]string{
			"total": fmt.Sprintf("%d", total),
		},
	})
}

// LogItem logs the outcome of one file. A non-nil err turns it into an
// error event.
func (l *EventLogger) LogItem(operation string, event EventType, filename, srcPath, destPath string, bytesWritten int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		event = EventError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:        level,
		Event:        event,
		Operation:    operation,
		Filename:     filename,
		SrcPath:      srcPath,
		DestPath:     destPath,
		BytesWritten: bytesWritten,
		Duration:     duration.Milliseconds(),
		Error:        errMsg,
	})
}

// LogSkip logs a file left untouched
func (l *EventLogger) LogSkip(operation, filename, reason string) error {
	return l.Log(&Event{
		Level:     LevelDebug,
		Event:     EventSkip,
		Operation: operation,
		Filename:  filename,
		Reason:    reason,
	})
}

// LogConflict logs a destination name that is already taken
func (l *EventLogger) LogConflict(operation, srcPath, destPath, reason string) error {
	return l.Log(&Event{
		Level:     LevelWarning,
		Event:     EventConflict,
		Operation: operation,
		SrcPath:   srcPath,
		DestPath:  destPath,
		Reason:    reason,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(operation, filename string, err error) error {
	return l.Log(&Event{
		Level:     LevelError,
		Event:     EventError,
		Operation: operation,
		Filename:  filename,
		Error:     err.Error(),
	})
}

// LogFinish logs the totals of a bulk operation
func (l *EventLogger) LogFinish(operation string, processed, skipped, failed int, duration time.Duration, cancelled bool) error {
	level := LevelInfo
	if failed > 0 {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:     level,
		Event:     EventFinish,
		Operation: operation,
		Duration:  duration.Milliseconds(),
		Extra: map[string]string{
			"processed": fmt.Sprintf("%d", processed),
			"skipped":   fmt.Sprintf("%d", skipped),
			"failed":    fmt.Sprintf("%d", failed),
			"cancelled": fmt.Sprintf("%t", cancelled),
		},
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
