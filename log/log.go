package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	diagLog  zerolog.Logger = zerolog.Nop()
	diagFile io.WriteCloser
	chatFile io.WriteCloser
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
	debug    bool
)

// UploadStats is what gets logged for every upload that reached the server.
type UploadStats struct {
	RequestID  string
	Attempt    int
	Status     int
	PayloadKB  float64
	DNSMs      float64
	TCPMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absFromWd(flagPath)
	}

	// Priority 2: VOICECHAT_LOG_PATH environment variable
	if envPath := os.Getenv("VOICECHAT_LOG_PATH"); envPath != "" {
		return absFromWd(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absFromWd(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetDebug enables debug-level diagnostics. Call before Init.
func SetDebug(on bool) {
	debug = on
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func rotator(name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()
	diagFile = rotator("diagnostics_log.txt")
	chatFile = rotator("chat_log.txt")

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if chatFile != nil {
		chatFile.Close()
		chatFile = nil
	}
	diagLog = zerolog.Nop()
	logReady = false
}

// Logger returns the diagnostics logger for injection into packages
// that take a zerolog.Logger. It is a no-op logger before Init.
func Logger() zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	return diagLog
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func AttemptStart(attempt int, device string) {
	if !logReady {
		return
	}
	diagLog.Info().Int("attempt", attempt).Str("device", device).Msg("attempt_start")
}

// AttemptEnd records how an attempt settled: "idle", "error" or "cancelled".
func AttemptEnd(attempt int, outcome, detail string, elapsed time.Duration) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if outcome == "error" {
		ev = diagLog.Warn()
	}
	ev = ev.Int("attempt", attempt).Str("outcome", outcome).Dur("elapsed", elapsed)
	if detail != "" {
		ev = ev.Str("detail", detail)
	}
	ev.Msg("attempt_end")
}

func UploadMetrics(s UploadStats) {
	if !logReady {
		return
	}

	connStatus := "new"
	if s.ConnReused {
		connStatus = "reused"
	}

	diagLog.Info().
		Str("request_id", s.RequestID).
		Int("attempt", s.Attempt).
		Int("status", s.Status).
		Str("conn", connStatus).
		Float64("payload_kb", s.PayloadKB).
		Float64("dns_ms", s.DNSMs).
		Float64("tcp_ms", s.TCPMs).
		Float64("tls_ms", s.TLSMs).
		Float64("ttfb_ms", s.TTFBMs).
		Float64("total_ms", s.TotalMs).
		Msg("upload")
}

// ChatLine appends one transcript message to chat_log.txt.
func ChatLine(isUser bool, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	who := "bot"
	if isUser {
		who = "you"
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, who, text)
	io.WriteString(chatFile, line)
}

func SessionStart(backendURL, encoding, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("backend", backendURL).
		Str("encoding", encoding).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(exchanges int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("exchanges", exchanges).
		Msg("session_end")
}
