package hotkey

// Hold is plain push-to-talk: keydown begins, keyup ends.
type Hold struct {
	intents chan Intent
	done    chan struct{}
}

func NewHold(hk Hotkey) *Hold {
	h := &Hold{
		intents: make(chan Intent, 2),
		done:    make(chan struct{}),
	}
	go h.run(hk)
	return h
}

func (h *Hold) Intents() <-chan Intent { return h.intents }

// Close stops translating key events.
func (h *Hold) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *Hold) run(hk Hotkey) {
	for {
		var in Intent
		select {
		case <-h.done:
			return
		case <-hk.Keydown():
			in = Begin
		case <-hk.Keyup():
			in = End
		}
		select {
		case h.intents <- in:
		case <-h.done:
			return
		}
	}
}
