package session

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/afero"

	"voicechat/encoder"
)

var errNotRecording = errors.New("not recording")

// spyCapture writes a small fake recording into fs on Start.
type spyCapture struct {
	fs afero.Fs

	mu         sync.Mutex
	permission bool
	startErr   error
	noOutput   bool // Stop reports no file
	dropFile   bool // Stop reports a path that does not exist
	level      float64
	levelErr   error
	recording  bool
	path       string

	paths        []string
	startCalls   int
	stopCalls    int
	ampCalls     int
	disposeCalls int
}

func newSpyCapture(fs afero.Fs) *spyCapture {
	return &spyCapture{fs: fs, permission: true, level: 0.5}
}

func (s *spyCapture) HasPermission() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

func (s *spyCapture) Start(_ encoder.Encoding, _ int, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	s.paths = append(s.paths, path)
	if s.startErr != nil {
		return s.startErr
	}
	if err := afero.WriteFile(s.fs, path, []byte("audio-bytes"), 0644); err != nil {
		return err
	}
	s.recording = true
	s.path = path
	return nil
}

func (s *spyCapture) Amplitude() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ampCalls++
	if !s.recording {
		return 0, errNotRecording
	}
	if s.levelErr != nil {
		return 0, s.levelErr
	}
	return s.level, nil
}

func (s *spyCapture) Stop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	if !s.recording {
		return "", false
	}
	s.recording = false
	if s.noOutput {
		s.fs.Remove(s.path)
		return "", false
	}
	if s.dropFile {
		s.fs.Remove(s.path)
	}
	return s.path, true
}

func (s *spyCapture) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposeCalls++
}

func (s *spyCapture) counts() (start, stop, amp, dispose int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls, s.stopCalls, s.ampCalls, s.disposeCalls
}

type spyBackend struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    chan struct{} // when set, SendAudio waits for it to close
	payloads []string
}

func (b *spyBackend) SendAudio(ctx context.Context, payload string) (string, error) {
	b.mu.Lock()
	b.payloads = append(b.payloads, payload)
	block := b.block
	b.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reply, b.err
}

func (b *spyBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}

// spyFs counts Remove calls on top of an in-memory filesystem.
type spyFs struct {
	afero.Fs

	mu      sync.Mutex
	removed []string
}

func newSpyFs() *spyFs {
	return &spyFs{Fs: afero.NewMemMapFs()}
}

func (f *spyFs) Remove(name string) error {
	f.mu.Lock()
	f.removed = append(f.removed, name)
	f.mu.Unlock()
	return f.Fs.Remove(name)
}

func (f *spyFs) removeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.removed)
}

type event struct {
	state     State
	err       *SessionError
	amplitude float64
	isLevel   bool
}

// spySink records events and counts amplitude samples that arrive while
// the last announced state is not recording.
type spySink struct {
	mu         sync.Mutex
	events     []event
	last       State
	violations int
}

func (s *spySink) StateChanged(state State, err *SessionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = state
	s.events = append(s.events, event{state: state, err: err})
}

func (s *spySink) Amplitude(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != StateRecording {
		s.violations++
	}
	s.events = append(s.events, event{amplitude: level, isLevel: true})
}

func (s *spySink) states() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []State
	for _, e := range s.events {
		if !e.isLevel {
			out = append(out, e.state)
		}
	}
	return out
}

func (s *spySink) levels() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []float64
	for _, e := range s.events {
		if e.isLevel {
			out = append(out, e.amplitude)
		}
	}
	return out
}

func (s *spySink) snapshot() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event(nil), s.events...)
}

func (s *spySink) violationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}
