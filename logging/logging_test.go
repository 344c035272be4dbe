package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestDefaultLoggerLevelIsShared(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf)
	child := root.WithFields(Fields{"component": "ridge_extractor"})

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output written at info level: %q", buf.String())
	}

	root.SetLevel(DebugLevel)
	child.Debug("visible", Fields{"frame": 3})

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] visible") {
		t.Errorf("missing message in %q", out)
	}
	if !strings.Contains(out, "component=ridge_extractor frame=3") {
		t.Errorf("fields not rendered in sorted order: %q", out)
	}
}

func TestWithContextPicksUpFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	ctx := ContextWithFields(context.Background(), Fields{"recording": 7})

	logger.WithContext(ctx).Info("parsed")
	if !strings.Contains(buf.String(), "recording=7") {
		t.Errorf("context fields missing: %q", buf.String())
	}
}

func TestFatalUsesExitHook(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal(nil, "stop")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
