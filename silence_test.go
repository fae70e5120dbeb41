package main

import (
	"testing"
	"time"

	"voicechat/session"
)

const testInterval = 100 * time.Millisecond

func pttMonitor() *silenceMonitor {
	return newSilenceMonitor(testInterval, nil)
}

func toggleMonitor() *silenceMonitor {
	return newSilenceMonitor(testInterval, func() bool { return true })
}

func feedN(m *silenceMonitor, speech bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := pttMonitor()
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn at tick 80, got %d", ev)
	}
}

func TestSilenceWindowFollowsInterval(t *testing.T) {
	m := newSilenceMonitor(200*time.Millisecond, nil)
	if ev := feedN(m, false, 39); ev != SilenceNone {
		t.Fatalf("unexpected event before 8s: %d", ev)
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn after 40 ticks of 200ms, got %d", ev)
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := pttMonitor()
	feedN(m, false, 80)
	for i := 0; i < 80; i++ {
		if m.Tick(true) == SilenceWarnClear {
			return
		}
	}
	t.Fatal("expected SilenceWarnClear after speech")
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := pttMonitor()
	feedN(m, false, 80)
	for i := 0; i < 80; i++ {
		if ev := m.Tick(i%10 == 0); ev == SilenceWarnClear {
			t.Fatalf("warning cleared at tick %d with 10%% speech", i)
		}
	}
}

func TestWarnOnlyOnceInHold(t *testing.T) {
	m := pttMonitor()
	warns := 0
	for i := 0; i < 400; i++ {
		switch m.Tick(false) {
		case SilenceWarn:
			warns++
		case SilenceRepeat, SilenceAutoClose:
			t.Fatalf("toggle-only event in hold mode at tick %d", i)
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 SilenceWarn, got %d", warns)
	}
}

func TestToggleRepeatThenAutoClose(t *testing.T) {
	m := toggleMonitor()
	feedN(m, false, 80)
	var repeat bool
	for i := 0; i < 400; i++ {
		switch m.Tick(false) {
		case SilenceRepeat:
			repeat = true
		case SilenceAutoClose:
			if !repeat {
				t.Fatal("expected a repeat cue before auto-close")
			}
			return
		}
	}
	t.Fatal("expected SilenceAutoClose within 480 ticks")
}

func TestAutoClosePreventedBySpeech(t *testing.T) {
	m := toggleMonitor()
	for i := 0; i < 500; i++ {
		if ev := m.Tick(i%10 < 7); ev == SilenceAutoClose {
			t.Fatalf("unexpected auto-close with speech at tick %d", i)
		}
	}
}

func TestSilenceSinkOnlyWatchesRecording(t *testing.T) {
	var got []SilenceEvent
	s := newSilenceSink(testInterval, nil, func(ev SilenceEvent) { got = append(got, ev) })

	for i := 0; i < 100; i++ {
		s.Amplitude(0)
	}
	if len(got) != 0 {
		t.Fatalf("events while idle: %v", got)
	}

	s.StateChanged(session.StateRecording, nil)
	for i := 0; i < 80; i++ {
		s.Amplitude(0.001)
	}
	if len(got) != 1 || got[0] != SilenceWarn {
		t.Fatalf("expected one SilenceWarn, got %v", got)
	}

	s.StateChanged(session.StateProcessing, nil)
	s.Amplitude(0)
	if len(got) != 1 {
		t.Fatalf("events after recording ended: %v", got)
	}
}

func TestSilenceSinkLoudInputNeverWarns(t *testing.T) {
	var got []SilenceEvent
	s := newSilenceSink(testInterval, func() bool { return true }, func(ev SilenceEvent) { got = append(got, ev) })
	s.StateChanged(session.StateRecording, nil)
	for i := 0; i < 400; i++ {
		s.Amplitude(0.3)
	}
	if len(got) != 0 {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestSilenceSinkAutoClosesOnce(t *testing.T) {
	closes := 0
	s := newSilenceSink(testInterval, func() bool { return true }, func(ev SilenceEvent) {
		if ev == SilenceAutoClose {
			closes++
		}
	})
	s.StateChanged(session.StateRecording, nil)
	for i := 0; i < 600; i++ {
		s.Amplitude(0)
	}
	if closes != 1 {
		t.Fatalf("expected one auto-close, got %d", closes)
	}
}
