package hotkey

import (
	"sync/atomic"
	"time"
)

// Hybrid gives one key two behaviors. Holding it longer than longPress
// records until release; a shorter tap toggles recording on, and the
// next press turns it off again.
type Hybrid struct {
	intents chan Intent
	reset   chan struct{}
	done    chan struct{}
	toggle  atomic.Bool
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		intents: make(chan Intent, 2),
		reset:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go h.run(hk, longPress)
	return h
}

func (h *Hybrid) Intents() <-chan Intent { return h.intents }

// IsToggle reports whether the current recording was started by a tap.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

// Reset forgets a toggled recording that was ended by something other
// than the key, so the next press begins again instead of ending.
func (h *Hybrid) Reset() {
	select {
	case h.reset <- struct{}{}:
	default:
	}
}

func (h *Hybrid) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

type hybridState int

const (
	stIdle hybridState = iota
	stToggleRecording
)

func (h *Hybrid) emit(in Intent) bool {
	select {
	case h.intents <- in:
		return true
	case <-h.done:
		return false
	}
}

// drainReset discards a pending reset and reports whether there was one.
func (h *Hybrid) drainReset() bool {
	select {
	case <-h.reset:
		return true
	default:
		return false
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	state := stIdle
	pressed := false
	for {
		switch state {
		case stIdle:
			if !pressed {
				select {
				case <-hk.Keydown():
				case <-h.reset:
					continue
				case <-h.done:
					return
				}
			}
			pressed = false
			// resets queued before this press belong to the previous recording
			h.drainReset()
			// Start now; hold duration only decides how we stop.
			if !h.emit(Begin) {
				return
			}
			timer := time.NewTimer(longPress)
			select {
			case <-timer.C:
				select {
				case <-hk.Keyup():
				case <-h.done:
					return
				}
				if !h.emit(End) {
					return
				}
			case <-hk.Keyup():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				h.toggle.Store(true)
				state = stToggleRecording
			case <-h.done:
				timer.Stop()
				return
			}
		case stToggleRecording:
			// the next press stops on its release
			select {
			case <-hk.Keydown():
			case <-h.reset:
				h.toggle.Store(false)
				state = stIdle
				continue
			case <-h.done:
				return
			}
			if h.drainReset() {
				// the recording already ended, so this press starts the next one
				h.toggle.Store(false)
				state = stIdle
				pressed = true
				continue
			}
			select {
			case <-hk.Keyup():
			case <-h.done:
				return
			}
			h.toggle.Store(false)
			if !h.emit(End) {
				return
			}
			state = stIdle
		}
	}
}
