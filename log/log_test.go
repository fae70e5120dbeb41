package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir(""); SetDebug(false) })
	return tmp
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("VOICECHAT_LOG_PATH", "/tmp/voicechat-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/voicechat-env-log" {
		t.Errorf("got %q, want /tmp/voicechat-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOICECHAT_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestDiagnosticsWritten(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	AttemptStart(3, "fake microphone")
	AttemptEnd(3, "error", "Recording failed.", 250*time.Millisecond)
	Close()

	got := readLog(t, filepath.Join(tmp, "diagnostics_log.txt"))
	for _, want := range []string{"attempt_start", "attempt_end", "attempt=3", "Recording failed."} {
		if !strings.Contains(got, want) {
			t.Errorf("diagnostics_log.txt missing %q, got: %q", want, got)
		}
	}
}

func TestDebugLevel(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Debugf("hidden %d", 1)
	Info("shown")
	Close()
	got := readLog(t, filepath.Join(tmp, "diagnostics_log.txt"))
	if strings.Contains(got, "hidden") {
		t.Errorf("debug line written at info level: %q", got)
	}

	SetDebug(true)
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Debugf("visible %d", 2)
	Close()
	got = readLog(t, filepath.Join(tmp, "diagnostics_log.txt"))
	if !strings.Contains(got, "visible 2") {
		t.Errorf("debug line missing with SetDebug(true): %q", got)
	}
}

func TestUploadMetrics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	UploadMetrics(UploadStats{RequestID: "abc", Status: 200, TotalMs: 42, ConnReused: true})
	Close()

	got := readLog(t, filepath.Join(tmp, "diagnostics_log.txt"))
	for _, want := range []string{"upload", "request_id=abc", "conn=reused", "total_ms=42"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestChatLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	ChatLine(true, "what's the weather")
	ChatLine(false, "sunny")
	Close()

	got := readLog(t, filepath.Join(tmp, "chat_log.txt"))
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), got)
	}
	// format: "2006-01-02 15:04:05\t[pid]\twho\ttext"
	if !strings.HasSuffix(lines[0], "\tyou\twhat's the weather") {
		t.Errorf("unexpected user line: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "\tbot\tsunny") {
		t.Errorf("unexpected reply line: %q", lines[1])
	}
}

func TestLoggingBeforeInitIsNoop(t *testing.T) {
	Info("nobody hears this")
	ChatLine(true, "nor this")
	l := Logger()
	l.Info().Msg("nor this")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
