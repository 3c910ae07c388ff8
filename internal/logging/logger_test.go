package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewDefaultsToStderr(t *testing.T) {
	logger := New(nil)
	if logger == nil {
		t.Fatal("New(nil) returned nil")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should be filtered")
	logger.Info("also filtered")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buf.String())
	}

	logger.Warn("visible warning")
	if !strings.Contains(buf.String(), "visible warning") {
		t.Fatalf("expected warning to appear, got %q", buf.String())
	}
}

func TestFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("dependency resolved", "dep_id", 7, "bytes", 128)

	output := buf.String()
	if !strings.Contains(output, "dep_id=7") || !strings.Contains(output, "bytes=128") {
		t.Fatalf("expected key=value pairs in output, got %q", output)
	}
}

func TestWithCarriesFieldsOntoEveryLine(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: LevelDebug, Output: &buf})
	scoped := base.With("site", 2, "cmd", "Tick")

	scoped.Info("command completed", "latency_ns", 4200)

	output := buf.String()
	for _, want := range []string{"site=2", "cmd=Tick", "latency_ns=4200"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got %q", want, output)
		}
	}
}

func TestWithDoesNotMutateParentFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: LevelDebug, Output: &buf})
	_ = base.With("site", 2)

	base.Info("unscoped line")
	if strings.Contains(buf.String(), "site=2") {
		t.Fatalf("expected base logger to remain unscoped, got %q", buf.String())
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(New(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	if !strings.Contains(buf.String(), "debug message") || !strings.Contains(buf.String(), "key=value") {
		t.Fatalf("expected debug message with args, got %q", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Fatalf("expected error message, got %q", buf.String())
	}
}
