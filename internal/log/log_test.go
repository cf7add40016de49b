package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(nopWriter{})
		SetLevel(LevelInfo)
	})
	return &buf
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, LevelWarn)

	Debug("debug line")
	Info("info line")
	Warn("warn line")
	Error("error line", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Fatalf("lines below WARN were written: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn line") {
		t.Fatalf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] error line err=boom") {
		t.Fatalf("missing error line: %q", out)
	}
}

func TestKeyValueFormatting(t *testing.T) {
	buf := captureOutput(t, LevelDebug)

	Info("fetched", "count", 3, "category", "Food & Drink", "dangling")

	out := buf.String()
	if !strings.Contains(out, "count=3") {
		t.Fatalf("missing count: %q", out)
	}
	if !strings.Contains(out, `category="Food & Drink"`) {
		t.Fatalf("value with spaces should be quoted: %q", out)
	}
	if strings.Contains(out, "dangling") {
		t.Fatalf("odd trailing key should be dropped: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
