package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_TagsService(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(Options{Service: "allocator", Level: slog.LevelInfo, Output: &buf})
	logger.Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if record["service"] != "allocator" {
		t.Fatalf("expected service attribute, got %v", record)
	}
}

func TestNew_TextFormatAndLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelWarn, Format: "text", Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "msg=kept") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestScoped_PrefersContextLogger(t *testing.T) {
	t.Parallel()

	var ctxBuf, baseBuf bytes.Buffer
	ctxLogger := slog.New(slog.NewTextHandler(&ctxBuf, nil))
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))

	ctx := ContextWithLogger(context.Background(), ctxLogger)
	Scoped(ctx, base, "batch", "apply", "series_id", "s-1").Info("run")

	if baseBuf.Len() != 0 {
		t.Fatalf("expected base logger to stay unused")
	}
	out := ctxBuf.String()
	for _, want := range []string{"component=batch", "operation=apply", "series_id=s-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	Scoped(context.Background(), base, "batch", "").Info("fallback")
	if !strings.Contains(baseBuf.String(), "component=batch") {
		t.Fatalf("expected base logger to be used without a context logger")
	}
}
