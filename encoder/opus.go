package encoder

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

const (
	opusFrameMs     = 20
	opusGranuleRate = 48000 // Ogg Opus granule positions always count 48kHz samples
	opusBitrate     = 24000
	opusMaxPacket   = 4000
	opusPayloadType = 111
)

// OpusEncoder packs 20ms Opus frames into an Ogg container.
type OpusEncoder struct {
	enc       *opus.Encoder
	ogg       *oggwriter.OggWriter
	frameSize int
	pending   []int16
	packet    []byte
	seq       uint16
	timestamp uint32

	totalFrames uint64
	encodeTime  time.Duration
	mu          sync.Mutex
}

func NewOpus(w io.WriteSeeker, sampleRate int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("creating opus encoder: %w", err)
	}
	if err := enc.SetBitrate(opusBitrate); err != nil {
		return nil, fmt.Errorf("setting opus bitrate: %w", err)
	}
	ogg, err := oggwriter.NewWith(nopCloser{w}, uint32(sampleRate), Channels)
	if err != nil {
		return nil, fmt.Errorf("creating ogg writer: %w", err)
	}
	return &OpusEncoder{
		enc:       enc,
		ogg:       ogg,
		frameSize: sampleRate * opusFrameMs / 1000,
		packet:    make([]byte, opusMaxPacket),
	}, nil
}

func (e *OpusEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = append(e.pending, block...)
	for len(e.pending) >= e.frameSize {
		if err := e.writeFrame(e.pending[:e.frameSize]); err != nil {
			return err
		}
		e.pending = e.pending[e.frameSize:]
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *OpusEncoder) writeFrame(pcm []int16) error {
	n, err := e.enc.Encode(pcm, e.packet)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: e.seq,
			Timestamp:      e.timestamp,
		},
		Payload: append([]byte(nil), e.packet[:n]...),
	}
	if err := e.ogg.WriteRTP(pkt); err != nil {
		return fmt.Errorf("writing ogg page: %w", err)
	}
	e.seq++
	e.timestamp += opusGranuleRate * opusFrameMs / 1000
	return nil
}

// Close pads the trailing partial frame with silence and flushes it.
func (e *OpusEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) > 0 {
		frame := make([]int16, e.frameSize)
		copy(frame, e.pending)
		e.pending = nil
		if err := e.writeFrame(frame); err != nil {
			return err
		}
	}
	return e.ogg.Close()
}

func (e *OpusEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *OpusEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *OpusEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}
