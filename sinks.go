package main

import (
	"sync"
	"sync/atomic"
	"time"

	"voicechat/beep"
	"voicechat/hotkey"
	"voicechat/log"
	"voicechat/session"
)

// attemptLog turns state transitions into attempt_start/attempt_end
// lines in the diagnostics log.
type attemptLog struct {
	device string

	mu      sync.Mutex
	prev    session.State
	started time.Time
	count   atomic.Int64
}

func newAttemptLog(device string) *attemptLog {
	return &attemptLog{device: device, prev: session.StateIdle}
}

// Attempt is the number of the attempt currently or last in flight.
func (a *attemptLog) Attempt() int { return int(a.count.Load()) }

func (a *attemptLog) StateChanged(state session.State, err *session.SessionError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.prev
	a.prev = state

	switch state {
	case session.StateRecording:
		a.started = time.Now()
		log.AttemptStart(int(a.count.Add(1)), a.device)
	case session.StateError:
		if prev == session.StateIdle || prev == session.StateError {
			// refused before recording began
			a.started = time.Now()
			a.count.Add(1)
		}
		detail := ""
		if err != nil {
			detail = string(err.Kind) + ": " + err.Message
		}
		log.AttemptEnd(a.Attempt(), "error", detail, time.Since(a.started))
	case session.StateIdle:
		outcome := "idle"
		if prev == session.StateRecording {
			outcome = "cancelled"
		}
		log.AttemptEnd(a.Attempt(), outcome, "", time.Since(a.started))
	}
}

func (a *attemptLog) Amplitude(float64) {}

// cueSink plays the start, end and error cues.
type cueSink struct{}

func (cueSink) StateChanged(state session.State, _ *session.SessionError) {
	switch state {
	case session.StateRecording:
		beep.Play(beep.Start)
	case session.StateProcessing:
		beep.Play(beep.End)
	case session.StateError:
		beep.Play(beep.Error)
	}
}

func (cueSink) Amplitude(float64) {}

// toggleReset returns a hybrid key to idle whenever the session settles,
// so a recording ended by Esc, a failed start or the TUI does not leave
// the next tap mapped to End.
type toggleReset struct{ hy *hotkey.Hybrid }

func (t toggleReset) StateChanged(state session.State, _ *session.SessionError) {
	if t.hy == nil {
		return
	}
	if state == session.StateIdle || state == session.StateError {
		t.hy.Reset()
	}
}

func (toggleReset) Amplitude(float64) {}
