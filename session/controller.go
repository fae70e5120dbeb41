// Package session drives one push-to-talk exchange at a time: record,
// upload, and append the reply to the transcript.
package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"voicechat/encoder"
	"voicechat/transcript"
)

type Config struct {
	Encoding     encoder.Encoding
	SampleRate   int
	PollInterval time.Duration
	TempDir      string
	Fs           afero.Fs
	Logger       zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Encoding == "" {
		c.Encoding = encoder.Opus
	}
	if c.SampleRate == 0 {
		c.SampleRate = encoder.SampleRate
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return c
}

// SessionController owns the recording state machine. Events that do
// not fit the current state are ignored.
type SessionController struct {
	capture AudioCapture
	backend Backend
	store   *transcript.Store
	events  EventSink
	cfg     Config
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	err     *SessionError
	attempt int
	poll    *poller
	closed  bool

	closeOnce sync.Once
	level     atomic.Uint64 // math.Float64bits of the last published amplitude
}

func NewSessionController(
	capture AudioCapture,
	backend Backend,
	store *transcript.Store,
	events EventSink,
	cfg Config,
) *SessionController {
	if events == nil {
		events = nopSink{}
	}
	cfg = cfg.withDefaults()
	return &SessionController{
		capture: capture,
		backend: backend,
		store:   store,
		events:  events,
		cfg:     cfg,
		log:     cfg.Logger,
		state:   StateIdle,
	}
}

// BeginCapture starts a new attempt from idle or error.
func (c *SessionController) BeginCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || (c.state != StateIdle && c.state != StateError) {
		c.log.Debug().Str("state", string(c.state)).Bool("closed", c.closed).Msg("begin ignored")
		return
	}

	c.err = nil
	c.attempt++
	c.log.Info().Int("attempt", c.attempt).Msg("attempt_start")

	if !c.capture.HasPermission() {
		c.fail(ErrorPermissionDenied, MsgPermissionDenied)
		return
	}

	c.setState(StateRecording)
	path := c.tempPath(c.attempt)
	if err := c.capture.Start(c.cfg.Encoding, c.cfg.SampleRate, path); err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("capture start failed")
		c.fail(ErrorCaptureFailure, MsgRecordingFailed)
		return
	}
	c.startPolling()
}

// EndCapture finishes the recording and uploads it. It blocks until the
// backend has answered; meanwhile other events see StateProcessing.
func (c *SessionController) EndCapture(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.log.Debug().Str("state", string(c.state)).Msg("end ignored")
		c.mu.Unlock()
		return
	}

	c.stopPolling()
	c.setState(StateProcessing)
	attempt := c.attempt

	path, ok := c.capture.Stop()
	if !ok {
		c.fail(ErrorCaptureFailure, MsgRecordingFailed)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	start := time.Now()
	reply, err := c.exchange(ctx, attempt, path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail(ErrorUploadFailure, apiErrorPrefix+err.Error())
		return
	}
	c.store.Append(transcript.Message{Text: reply, Attempt: attempt})
	c.log.Info().Int("attempt", attempt).Dur("elapsed", time.Since(start)).Msg("attempt_end")
	c.setState(StateIdle)
}

// Cancel discards the recording in progress without uploading it.
func (c *SessionController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

// Close cancels any recording and releases the capture. Safe to call
// more than once.
func (c *SessionController) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.cancelLocked()
		c.closed = true
		c.mu.Unlock()
		c.capture.Dispose()
	})
}

func (c *SessionController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns a copy of the current error, nil unless in StateError.
func (c *SessionController) Err() *SessionError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errCopy()
}

// Amplitude is the last published level; zero outside recording.
func (c *SessionController) Amplitude() float64 {
	return math.Float64frombits(c.level.Load())
}

func (c *SessionController) cancelLocked() {
	if c.state != StateRecording {
		return
	}
	c.stopPolling()
	if path, ok := c.capture.Stop(); ok {
		c.remove(path)
	}
	c.log.Info().Int("attempt", c.attempt).Msg("attempt_cancelled")
	c.setState(StateIdle)
}

// exchange reads the recording and sends it. The file is removed on
// every path out, panics included.
func (c *SessionController) exchange(ctx context.Context, attempt int, path string) (string, error) {
	defer c.remove(path)

	data, err := afero.ReadFile(c.cfg.Fs, path)
	c.store.Append(transcript.Message{Text: ProcessingPlaceholder, IsUser: true, Attempt: attempt})
	if err != nil {
		return "", fmt.Errorf("reading recording: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(data)
	c.log.Debug().Int("attempt", attempt).Int("bytes", len(data)).Msg("uploading")
	return c.backend.SendAudio(ctx, payload)
}

func (c *SessionController) remove(path string) {
	if err := c.cfg.Fs.Remove(path); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("removing recording")
	}
}

func (c *SessionController) startPolling() {
	if c.poll != nil {
		c.poll.cancel()
	}
	c.poll = startPoller(c.cfg.PollInterval, c.capture.Amplitude, c.publishLevel)
}

// stopPolling must run while the state is still StateRecording: the
// final zero is published as part of the recording.
func (c *SessionController) stopPolling() {
	if c.poll != nil {
		c.poll.cancel()
		c.poll = nil
	}
	c.publishLevel(0)
}

func (c *SessionController) publishLevel(level float64) {
	c.level.Store(math.Float64bits(level))
	c.events.Amplitude(level)
}

func (c *SessionController) setState(s State) {
	c.state = s
	if s != StateError {
		c.err = nil
	}
	c.events.StateChanged(s, c.errCopy())
}

func (c *SessionController) fail(kind ErrorKind, msg string) {
	c.err = &SessionError{Message: msg, Kind: kind}
	c.state = StateError
	c.log.Warn().Int("attempt", c.attempt).Str("kind", string(kind)).Msg(msg)
	c.events.StateChanged(StateError, c.errCopy())
}

func (c *SessionController) errCopy() *SessionError {
	if c.err == nil {
		return nil
	}
	e := *c.err
	return &e
}

func (c *SessionController) tempPath(attempt int) string {
	return filepath.Join(c.cfg.TempDir, fmt.Sprintf("voicechat-%d.%s", attempt, c.cfg.Encoding.Ext()))
}
