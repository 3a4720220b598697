package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Output: &buf})

	l.With(String("component", "engine")).Debug(context.Background(), "step",
		Int("tick", 3),
		Float64("elapsed_s", 1.5),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "step" || rec["component"] != "engine" || rec["error"] != "boom" {
		t.Fatalf("unexpected log record: %v", rec)
	}
	if rec["tick"] != float64(3) || rec["elapsed_s"] != 1.5 {
		t.Fatalf("numeric fields not preserved: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info(context.Background(), "hidden")
	l.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("level filtering failed, output: %q", out)
	}
}

func TestWithRunLoggerReusesRunID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, l := WithRunLogger(context.Background(), base)
	id := RunIDFromContext(ctx)
	if id == "" {
		t.Fatalf("expected run_id on context")
	}

	ctx2, _ := WithRunLogger(ctx, base)
	if got := RunIDFromContext(ctx2); got != id {
		t.Fatalf("run_id changed from %q to %q", id, got)
	}

	l.Info(ctx, "hello")
	if !strings.Contains(buf.String(), id) {
		t.Fatalf("log line missing run_id %q: %q", id, buf.String())
	}
	if FromContext(ctx) == nil {
		t.Fatalf("FromContext returned nil")
	}
}

func TestFromContextFallsBackToNoop(t *testing.T) {
	l := FromContext(context.Background())
	if _, ok := l.(noopLogger); !ok {
		t.Fatalf("FromContext without logger = %T, want noopLogger", l)
	}
}
