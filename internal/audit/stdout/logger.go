package stdout

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/drawbridge-proxy/drawbridge/internal/gate"
)

// Logger implements gate.Recorder with JSONL output, one record per line.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
}

var _ gate.Recorder = (*Logger)(nil)

// New creates a logger writing to stdout.
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a logger writing to the given writer.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{writer: w}
}

// RecordDecision implements gate.Recorder.
func (l *Logger) RecordDecision(ctx context.Context, rec gate.Record) error {
	record := map[string]any{
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"event":        "decision",
		"stage":        rec.Stage,
		"connection":   rec.ConnectionID,
		"remote_addr":  rec.RemoteAddr,
		"virtual_host": rec.VirtualHost,
		"intent":       rec.Intent,
		"allowed":      rec.Allowed,
		"duration_ms":  rec.Duration.Milliseconds(),
	}
	if rec.Reason != "" {
		record["reason"] = rec.Reason
	}
	if rec.TimedOut {
		record["timed_out"] = true
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.writer.Write(data)
	return err
}
