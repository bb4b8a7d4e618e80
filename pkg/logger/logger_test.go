package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewParsesLevel(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "text"})
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}

	fallback := New(LoggingConfig{Level: "verbose"})
	if fallback.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %s", fallback.GetLevel())
	}
}

func TestWithContextAddsTraceAndUser(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefault("tickets")
	log.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUser(ctx, "alice")
	log.WithContext(ctx).Info("minted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["trace_id"] != "trace-1" {
		t.Fatalf("trace_id missing: %v", entry)
	}
	if entry["user"] != "alice" {
		t.Fatalf("user missing: %v", entry)
	}
	if entry["component"] != "tickets" {
		t.Fatalf("component missing: %v", entry)
	}
}

func TestContextHelpersEmpty(t *testing.T) {
	ctx := context.Background()
	if TraceID(ctx) != "" || User(ctx) != "" || Role(ctx) != "" {
		t.Fatalf("expected empty values on bare context")
	}
	if NewTraceID() == NewTraceID() {
		t.Fatalf("trace ids should be unique")
	}
}
