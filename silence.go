package main

import (
	"sync"
	"time"

	"voicechat/session"
)

const (
	silenceWarnEvery    = 8 * time.Second
	silenceAutoCloseDur = 30 * time.Second
	speechLevel         = 0.02 // RMS at or above this counts as voice
	speechMinRatio      = 0.10
	speechClearRatio    = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // repeat cue every warn period
	SilenceAutoClose              // toggle recording left running in silence
)

// silenceMonitor counts amplitude samples. Windows are expressed in
// samples, so the poll interval decides how long 8s and 30s are.
type silenceMonitor struct {
	warnAt   int
	windowSz int

	isToggle func() bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastBeep    int
}

func newSilenceMonitor(interval time.Duration, isToggle func() bool) *silenceMonitor {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	warnAt := max(1, int(silenceWarnEvery/interval))
	windowSz := max(warnAt, int(silenceAutoCloseDur/interval))
	if isToggle == nil {
		isToggle = func() bool { return false }
	}
	return &silenceMonitor{
		warnAt:   warnAt,
		windowSz: windowSz,
		isToggle: isToggle,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	n = min(n, m.ticks)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastBeep = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	if !m.isToggle() {
		return SilenceNone
	}

	// auto-close is checked before repeat
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return SilenceAutoClose
	}

	if m.warned && m.ticks-m.lastBeep >= m.warnAt {
		m.lastBeep = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}

// silenceSink watches the amplitude stream of each recording and reports
// silence events to notify. notify runs on the publishing goroutine and
// must not call back into the controller synchronously.
type silenceSink struct {
	interval time.Duration
	isToggle func() bool
	notify   func(SilenceEvent)

	mu  sync.Mutex
	mon *silenceMonitor
}

func newSilenceSink(interval time.Duration, isToggle func() bool, notify func(SilenceEvent)) *silenceSink {
	return &silenceSink{interval: interval, isToggle: isToggle, notify: notify}
}

func (s *silenceSink) StateChanged(state session.State, _ *session.SessionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == session.StateRecording {
		s.mon = newSilenceMonitor(s.interval, s.isToggle)
		return
	}
	s.mon = nil
}

func (s *silenceSink) Amplitude(level float64) {
	s.mu.Lock()
	if s.mon == nil {
		s.mu.Unlock()
		return
	}
	ev := s.mon.Tick(level >= speechLevel)
	if ev == SilenceAutoClose {
		s.mon = nil
	}
	s.mu.Unlock()

	if ev != SilenceNone && s.notify != nil {
		s.notify(ev)
	}
}
