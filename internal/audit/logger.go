// Package audit appends one JSON line per control action to a rotating log.
package audit

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Entry is a single audit record. LatencyMS is the wall time of the action
// as observed by the caller.
type Entry struct {
	TS        time.Time `json:"ts"`
	User      string    `json:"user"`
	JobID     string    `json:"jobId,omitempty"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Code      string    `json:"code,omitempty"`
	LatencyMS int64     `json:"latencyMs"`
}

// Logger serialises entries to an io.WriteCloser, one JSON object per line.
type Logger struct {
	mu  sync.Mutex
	w   io.WriteCloser
	enc *json.Encoder
}

// New returns a logger writing to path with size-based rotation.
func New(path string, maxSizeMB, maxBackups, maxAgeDays int) *Logger {
	return NewWriter(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	})
}

// NewWriter wraps an arbitrary writer, mainly for tests.
func NewWriter(w io.WriteCloser) *Logger {
	return &Logger{w: w, enc: json.NewEncoder(w)}
}

// Log writes the entry. A zero TS is stamped with the current time.
func (l *Logger) Log(e Entry) error {
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(e)
}

// Record is a convenience wrapper measuring latency from start.
func (l *Logger) Record(user, jobID, action, outcome, code string, start time.Time) error {
	return l.Log(Entry{
		User:      user,
		JobID:     jobID,
		Action:    action,
		Outcome:   outcome,
		Code:      code,
		LatencyMS: time.Since(start).Milliseconds(),
	})
}

// Close flushes and closes the underlying writer.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}
