package logging_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"signframes/internal/config"
	"signframes/internal/logging"
	"signframes/internal/services"
)

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg, "run-1")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("run started", logging.Int("remaining", 3))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"msg":"run started"`, `"remaining":3`, `"session_id":"run-1"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in %s", fragment, content)
		}
	}
}

func TestNewFromConfigDisabledIsNop(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Enabled = false
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, "")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("disabled logging should discard everything")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, logging.LogFileName)); !os.IsNotExist(err) {
		t.Fatalf("disabled logging should not create a log file, stat err=%v", err)
	}
}

func TestConsoleLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithTaskID(context.Background(), "1234")
	ctx = services.WithStage(ctx, "extract")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "runner")).Info("task completed",
		logging.Int("images", 12),
		logging.String("output_dir", "/tmp/out"),
		logging.Duration("elapsed", 1500*time.Millisecond),
	)

	out := buf.String()
	for _, fragment := range []string{"INFO [runner] Task 1234 (extract) – task completed", "- Images: 12", "- Elapsed: 1.5s", "+ 1 more field hidden"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in console output:\n%s", fragment, out)
		}
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", out)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("frame estimated", logging.String("frame_path", "/tmp/frame-1.png"))

	out := buf.String()
	if !strings.Contains(out, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", out)
	}
	if !strings.Contains(out, "frame_path: /tmp/frame-1.png") {
		t.Fatalf("expected debug fields to be shown, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithTaskID(context.Background(), "42")
	ctx = services.WithStage(ctx, "pose")
	ctx = services.WithRequestID(ctx, "req-xyz")
	logging.WithContext(ctx, logger).Info("contextual log")

	out := buf.String()
	for _, fragment := range []string{`"task_id":"42"`, `"stage":"pose"`, `"correlation_id":"req-xyz"`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %s in %s", fragment, out)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logging.WarnWithContext(context.Background(), logger, "task set changed", "state_task_set_changed",
		logging.Error(errors.New("3 new tasks")))

	out := buf.String()
	for _, fragment := range []string{`"event_type":"state_task_set_changed"`, `"error_hint"`, `"impact"`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %s in %s", fragment, out)
		}
	}
}

func TestWithLevelOverrideRaisesMinimum(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatal(err)
	}
	quiet := logging.WithLevelOverride(logger, slog.LevelWarn)
	quiet.Info("hidden")
	quiet.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}

	buf.Reset()
	loud := logging.WithLevelOverride(quiet, slog.LevelInfo)
	loud.Info("visible again")
	if !strings.Contains(buf.String(), "visible again") {
		t.Fatalf("a later override should replace the earlier one, got %q", buf.String())
	}
}

func TestJSONLoggerRendersDurationsAsText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("task finished", logging.Duration("task_duration", 1500*time.Millisecond))
	if out := buf.String(); !strings.Contains(out, `"task_duration":"1.5s"`) {
		t.Fatalf("expected textual duration in %s", out)
	}
}

func TestLoggerAddsTaskFieldsFromRecordContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf, SessionID: "run-9"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := services.WithTaskID(context.Background(), "12")
	logger.InfoContext(ctx, "frames decoded")

	out := buf.String()
	for _, fragment := range []string{`"task_id":"12"`, `"session_id":"run-9"`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %s in %s", fragment, out)
		}
	}
}

func TestFormatSubject(t *testing.T) {
	cases := map[[2]string]string{
		{"12", "decode"}: "Task 12 (decode)",
		{"12", ""}:       "Task 12",
		{"", "decode"}:   "decode",
		{"", ""}:         "",
	}
	for in, want := range cases {
		if got := logging.FormatSubject(in[0], in[1]); got != want {
			t.Fatalf("FormatSubject(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
