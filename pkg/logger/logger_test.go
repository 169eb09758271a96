package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestInitAndLevelString(t *testing.T) {
	Init("debug")
	if got := LevelString(); got != "debug" {
		t.Fatalf("LevelString() = %q, want %q", got, "debug")
	}
	Init("WARN")
	if got := LevelString(); got != "warn" {
		t.Fatalf("LevelString() = %q, want %q", got, "warn")
	}
	Init("Error")
	if got := LevelString(); got != "error" {
		t.Fatalf("LevelString() = %q, want %q", got, "error")
	}
	Init("nonsense")
	if got := LevelString(); got != "info" {
		t.Fatalf("LevelString() = %q, want %q for unknown input", got, "info")
	}
}

func TestLevelFilteringAndPrintln(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	defer SetOutput(os.Stdout, "json")
	defer Init("info")

	Init("warn")
	Debugf("debug-msg")
	Infof("info-msg")
	Warnf("warn-msg")
	Errorf("error-msg %d", 7)

	out := buf.String()
	if strings.Contains(out, "debug-msg") {
		t.Fatalf("debug messages should be suppressed at warn level")
	}
	if strings.Contains(out, "info-msg") {
		t.Fatalf("info messages should be suppressed at warn level")
	}
	if !strings.Contains(out, "warn-msg") {
		t.Fatalf("warn message missing: %q", out)
	}
	if !strings.Contains(out, "error-msg 7") {
		t.Fatalf("error message missing: %q", out)
	}

	buf.Reset()
	Println("hello")
	if strings.Contains(buf.String(), "hello") {
		t.Fatalf("Println should be suppressed at warn level")
	}

	Init("info")
	buf.Reset()
	Println("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("Println expected at info level, got: %q", buf.String())
	}
}

func TestStructuredLoggerSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "console")
	defer SetOutput(os.Stdout, "json")

	Init("info")
	L().Info("request", zap.String("path", "/api/libros"), zap.Int("status", 200))
	out := buf.String()
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "/api/libros") {
		t.Fatalf("structured entry missing fields: %q", out)
	}
}
