package main

import (
	"fmt"
	"io"
	"sync"

	"voicechat/session"
	"voicechat/transcript"
)

// consoleSink prints session events as plain lines. Headless runs and
// -test mode use it instead of the TUI.
type consoleSink struct {
	mu      sync.Mutex
	w       io.Writer
	changes chan session.State
}

func newConsoleSink(w io.Writer) *consoleSink {
	return &consoleSink{w: w, changes: make(chan session.State, 64)}
}

func (c *consoleSink) StateChanged(state session.State, err *session.SessionError) {
	c.mu.Lock()
	if err != nil {
		fmt.Fprintf(c.w, "STATE %s %s\n", state, err.Message)
	} else {
		fmt.Fprintf(c.w, "STATE %s\n", state)
	}
	c.mu.Unlock()

	select {
	case c.changes <- state:
	default:
	}
}

func (c *consoleSink) Amplitude(float64) {}

func (c *consoleSink) Message(m transcript.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	who := "BOT"
	if m.IsUser {
		who = "YOU"
	}
	fmt.Fprintf(c.w, "%s %s\n", who, m.Text)
}

func (c *consoleSink) Silence(ev SilenceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev {
	case SilenceWarn, SilenceRepeat:
		fmt.Fprintln(c.w, "WARN no voice detected")
	case SilenceAutoClose:
		fmt.Fprintln(c.w, "WARN stopping after silence")
	}
}
