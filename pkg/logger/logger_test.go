package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("xml")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if err := Init(WithLevel("loud")); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLoggerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "vote applied",
		String("winner", "a"),
		Int("comparisons", 3),
		Bool("persisted", true),
		Duration("took", 2*time.Millisecond),
	)

	out := buf.String()
	for _, want := range []string{"vote applied", "winner=a", "comparisons=3", "persisted=true", "took=2ms", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLoggerJSONNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf), WithFormat("json")); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("store").Warn(context.Background(), "persist failed", Error(errors.New("disk full")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if rec["logger"] != "store" {
		t.Errorf("logger = %v, want store", rec["logger"])
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", rec["level"])
	}
	if rec["error"] != "disk full" {
		t.Errorf("error = %v, want disk full", rec["error"])
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf), WithLevel("warn")); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer SetLevel(0)

	ctx := context.Background()
	Get().Debug(ctx, "hidden")
	Get().Info(ctx, "hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	if err := SetLevelString("debug"); err != nil {
		t.Fatalf("SetLevelString: %v", err)
	}
	Get().Debug(ctx, "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("debug message missing after level change: %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "dropped")
	if l.Named("x") == nil {
		t.Fatal("named nop logger is nil")
	}
	if Default() == nil {
		t.Fatal("default logger is nil")
	}
}
