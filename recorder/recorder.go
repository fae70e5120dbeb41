// Package recorder records the microphone into an encoded file on disk.
package recorder

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"voicechat/audio"
	"voicechat/encoder"
)

var (
	ErrNotRecording     = errors.New("recorder: not recording")
	ErrAlreadyRecording = errors.New("recorder: already recording")
	ErrDisposed         = errors.New("recorder: disposed")
)

// Recorder owns at most one capture at a time. All methods are safe for
// concurrent use; Amplitude never blocks on the encoder.
type Recorder struct {
	ctx    audio.Context
	device *audio.DeviceInfo
	fs     afero.Fs
	log    zerolog.Logger

	mu       sync.Mutex
	active   *capture
	disposed bool
	once     sync.Once

	level atomic.Uint64 // math.Float64bits of the last callback's RMS
}

type Option func(*Recorder)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// New returns a Recorder capturing from device (nil = system default)
// and writing files through fs.
func New(ctx audio.Context, device *audio.DeviceInfo, fs afero.Fs, opts ...Option) *Recorder {
	r := &Recorder{ctx: ctx, device: device, fs: fs, log: zerolog.Nop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

type capture struct {
	dev        audio.CaptureDevice
	file       afero.File
	path       string
	enc        encoder.Encoder
	sampleRate int
	started    time.Time

	blockChan  chan []int16
	encodeDone chan struct{}
	encodeErr  error // written by the encode goroutine, read after encodeDone

	bufMu     sync.Mutex
	sampleBuf []int16
	closed    bool
}

// HasPermission reports whether any capture device is reachable. The
// audio backends surface a denied microphone as an empty device list.
func (r *Recorder) HasPermission() bool {
	r.mu.Lock()
	disposed := r.disposed
	r.mu.Unlock()
	if disposed {
		return false
	}
	devices, err := r.ctx.Devices()
	if err != nil {
		r.log.Debug().Err(err).Msg("device enumeration failed")
		return false
	}
	return len(devices) > 0
}

func (r *Recorder) Start(enc encoder.Encoding, sampleRate int, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return ErrDisposed
	}
	if r.active != nil {
		return ErrAlreadyRecording
	}

	f, err := r.fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	fail := func(err error) error {
		f.Close()
		r.fs.Remove(path)
		return err
	}

	e, err := encoder.New(enc, f, sampleRate)
	if err != nil {
		return fail(err)
	}

	dev, err := r.ctx.NewCapture(r.device, audio.CaptureConfig{
		SampleRate: uint32(sampleRate),
		Channels:   encoder.Channels,
	})
	if err != nil {
		return fail(fmt.Errorf("opening capture device: %w", err))
	}

	c := &capture{
		dev:        dev,
		file:       f,
		path:       path,
		enc:        e,
		sampleRate: sampleRate,
		started:    time.Now(),
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}
	go c.encodeLoop()

	r.level.Store(0)
	dev.SetCallback(func(data []byte, _ uint32) {
		r.level.Store(math.Float64bits(audio.Level(data)))
		c.feed(data)
	})
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		c.finish()
		r.fs.Remove(path)
		return fmt.Errorf("starting capture: %w", err)
	}

	r.active = c
	r.log.Debug().Str("device", dev.DeviceName()).Str("path", path).Str("encoding", string(enc)).Msg("capture started")
	return nil
}

// Amplitude returns the RMS level of the most recent capture buffer.
func (r *Recorder) Amplitude() (float64, error) {
	r.mu.Lock()
	active := r.active != nil
	r.mu.Unlock()
	if !active {
		return 0, ErrNotRecording
	}
	return math.Float64frombits(r.level.Load()), nil
}

// Stop finalizes the recording and returns its path. It reports false
// when nothing was recording or the file holds no audio; in the latter
// case the file has already been removed.
func (r *Recorder) Stop() (string, bool) {
	r.mu.Lock()
	c := r.active
	r.active = nil
	r.mu.Unlock()
	if c == nil {
		return "", false
	}

	c.dev.ClearCallback()
	c.dev.Stop()
	c.dev.Close()
	r.level.Store(0)

	err := c.finish()
	frames := c.enc.TotalFrames()
	if err == nil && frames == 0 {
		err = errors.New("no audio captured")
	}
	if err != nil {
		r.log.Warn().Err(err).Str("path", c.path).Msg("recording discarded")
		r.fs.Remove(c.path)
		return "", false
	}

	r.log.Debug().
		Uint64("frames", frames).
		Dur("audio", time.Duration(frames)*time.Second/time.Duration(c.sampleRate)).
		Dur("wall", time.Since(c.started)).
		Dur("encode", c.enc.EncodeTime()).
		Str("path", c.path).
		Msg("capture stopped")
	return c.path, true
}

// Dispose discards any capture in progress and releases the audio
// context. Calls after the first are no-ops.
func (r *Recorder) Dispose() {
	r.once.Do(func() {
		if path, ok := r.Stop(); ok {
			r.fs.Remove(path)
		}
		r.mu.Lock()
		r.disposed = true
		r.mu.Unlock()
		r.ctx.Close()
	})
}

func (c *capture) encodeLoop() {
	defer close(c.encodeDone)
	for block := range c.blockChan {
		if c.encodeErr != nil {
			continue
		}
		start := time.Now()
		c.encodeErr = c.enc.EncodeBlock(block)
		c.enc.AddEncodeTime(time.Since(start))
	}
}

func (c *capture) feed(pcm []byte) {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	if c.closed {
		return
	}
	c.sampleBuf = audio.Samples(c.sampleBuf, pcm)
	for len(c.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, c.sampleBuf[:encoder.BlockSize])
		c.sampleBuf = c.sampleBuf[encoder.BlockSize:]
		c.blockChan <- block
	}
}

// finish flushes buffered samples, drains the encoder and closes the
// file. It returns the first error seen along the way.
func (c *capture) finish() error {
	c.bufMu.Lock()
	if !c.closed {
		c.closed = true
		if len(c.sampleBuf) > 0 {
			c.blockChan <- c.sampleBuf
			c.sampleBuf = nil
		}
		close(c.blockChan)
	}
	c.bufMu.Unlock()
	<-c.encodeDone

	err := c.encodeErr
	if cerr := c.enc.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("finalizing encoder: %w", cerr)
	}
	if ferr := c.file.Close(); err == nil && ferr != nil {
		err = fmt.Errorf("closing %s: %w", c.path, ferr)
	}
	return err
}
