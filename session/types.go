package session

import (
	"context"

	"voicechat/encoder"
)

// State models the push-to-talk lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateError      State = "error"
)

type ErrorKind string

const (
	ErrorPermissionDenied ErrorKind = "permission_denied"
	ErrorCaptureFailure   ErrorKind = "capture_failure"
	ErrorUploadFailure    ErrorKind = "upload_failure"
)

// User-facing error texts.
const (
	MsgPermissionDenied = "Microphone permission not granted."
	MsgRecordingFailed  = "Recording failed."
	apiErrorPrefix      = "API Error: "
)

// ProcessingPlaceholder is the user turn appended while the upload is in flight.
const ProcessingPlaceholder = "🎤 Processing audio..."

// SessionError is attached to StateError and cleared by the next attempt.
type SessionError struct {
	Message string
	Kind    ErrorKind
}

func (e *SessionError) Error() string { return e.Message }

// AudioCapture records the microphone into a file.
type AudioCapture interface {
	HasPermission() bool
	Start(enc encoder.Encoding, sampleRate int, outputPath string) error
	// Amplitude is only queried while recording.
	Amplitude() (float64, error)
	// Stop returns false when nothing usable was recorded.
	Stop() (path string, ok bool)
	Dispose()
}

// Backend exchanges one base64 audio payload for a reply.
type Backend interface {
	SendAudio(ctx context.Context, payload string) (string, error)
}

// EventSink observes the controller. Calls are made with the controller
// locked, so implementations must not call back into it synchronously.
type EventSink interface {
	StateChanged(state State, err *SessionError)
	Amplitude(level float64)
}

type nopSink struct{}

func (nopSink) StateChanged(State, *SessionError) {}
func (nopSink) Amplitude(float64) {}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) StateChanged(state State, err *SessionError) {
	for _, s := range m {
		s.StateChanged(state, err)
	}
}

func (m MultiSink) Amplitude(level float64) {
	for _, s := range m {
		s.Amplitude(level)
	}
}
