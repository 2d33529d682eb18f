package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/drawbridge-proxy/drawbridge/internal/gate"
)

func TestLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed decision", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf)

		err := logger.RecordDecision(ctx, gate.Record{
			Stage:        "handshake",
			ConnectionID: "c1",
			RemoteAddr:   "198.51.100.7:52000",
			VirtualHost:  "play.example.com",
			Intent:       "login",
			Allowed:      true,
			Duration:     50 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("Output is not one JSON object per line: %v", err)
		}
		if record["event"] != "decision" {
			t.Errorf("event = %v, want decision", record["event"])
		}
		if record["allowed"] != true {
			t.Errorf("allowed = %v, want true", record["allowed"])
		}
		if _, present := record["reason"]; present {
			t.Errorf("allowed decisions should not carry a reason")
		}
	})

	t.Run("denied decision carries reason", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf)

		err := logger.RecordDecision(ctx, gate.Record{
			Stage:        "handshake",
			ConnectionID: "c1",
			RemoteAddr:   "203.0.113.9:52000",
			VirtualHost:  "play.example.com",
			Intent:       "login",
			Allowed:      false,
			Reason:       "known scanner range",
			Duration:     time.Millisecond,
			TimedOut:     true,
		})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("Output is not one JSON object per line: %v", err)
		}
		if record["reason"] != "known scanner range" {
			t.Errorf("reason = %v, want the deny reason", record["reason"])
		}
		if record["timed_out"] != true {
			t.Errorf("timed_out = %v, want true", record["timed_out"])
		}
	})

	// Writing to the real stdout is just a smoke test.
	t.Run("stdout logger", func(t *testing.T) {
		if err := New().RecordDecision(ctx, gate.Record{Stage: "handshake", Intent: "status", Allowed: true}); err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
	})
}
