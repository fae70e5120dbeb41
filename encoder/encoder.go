package encoder

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoding is the container/codec written to the recording file.
type Encoding string

const (
	Opus Encoding = "opus"
	Flac Encoding = "flac"
	Wav  Encoding = "wav"
)

// Ext is the file extension used for recordings in this encoding.
func (e Encoding) Ext() string {
	switch e {
	case Opus:
		return "ogg"
	case Flac:
		return "flac"
	default:
		return "wav"
	}
}

func ParseEncoding(s string) (Encoding, error) {
	switch enc := Encoding(strings.ToLower(strings.TrimSpace(s))); enc {
	case Opus, Flac, Wav:
		return enc, nil
	case "":
		return Opus, nil
	default:
		return "", fmt.Errorf("unknown encoding %q (use opus, flac, or wav)", s)
	}
}

// Encoder streams mono 16-bit blocks into a file. Close finalizes the
// container headers but leaves the underlying writer open.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

func New(enc Encoding, w io.WriteSeeker, sampleRate int) (Encoder, error) {
	switch enc {
	case Opus:
		return NewOpus(w, sampleRate)
	case Flac:
		return NewFlac(w, sampleRate)
	case Wav:
		return NewWav(w, sampleRate), nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
}

// nopCloser hides Close from libraries that close the stream they were given.
type nopCloser struct {
	io.WriteSeeker
}
