// Package clipboard copies chat replies to the system clipboard.
package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"

	"voicechat/transcript"
)

var ErrNoReply = errors.New("no reply to copy yet")

// Available reports whether a clipboard backend exists on this system
// (on Linux atotto needs xclip, xsel or wl-copy).
func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}

// LastReply returns the newest assistant message in msgs.
func LastReply(msgs []transcript.Message) (string, error) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].IsUser {
			return msgs[i].Text, nil
		}
	}
	return "", ErrNoReply
}

// CopyLastReply copies the newest assistant message and returns it.
func CopyLastReply(msgs []transcript.Message) (string, error) {
	text, err := LastReply(msgs)
	if err != nil {
		return "", err
	}
	return text, Copy(text)
}
