package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Intent is what a key gesture means for the recording session.
type Intent int

const (
	Begin Intent = iota + 1
	End
)

func (i Intent) String() string {
	switch i {
	case Begin:
		return "begin"
	case End:
		return "end"
	default:
		return "unknown"
	}
}

// Source produces session intents from some input.
type Source interface {
	Intents() <-chan Intent
}
