package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	WAVHeaderSize  = 44
	FakeDeviceName = "fake microphone"

	fakeFrameSize  = 320 // 20ms at 16kHz
	fakeSampleRate = 16000
)

// FakeContext replays a fixed PCM clip through every capture it opens.
// Used by -test mode and by package tests.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// NoDevices simulates a machine where microphone access is denied.
	NoDevices bool
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", wavPath, err)
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return NewFakeContextPCM(data, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.NoDevices {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: FakeDeviceName}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, audioDone: make(chan struct{})}, nil
}

// FakeCapture feeds its clip in 20ms chunks, then silence until stopped.
// Without realtime pacing the whole clip is delivered inside Start.
type FakeCapture struct {
	pcm      []byte
	realtime bool

	mu        sync.Mutex
	cb        DataCallback
	audioDone chan struct{}
	doneOnce  sync.Once
	stopCh    chan struct{}
	feedDone  chan struct{}
}

// AudioDone is closed once the whole clip has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) DeviceName() string { return FakeDeviceName }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) deliver(chunk []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(chunk, uint32(len(chunk)/BytesPerSample))
	}
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	chunkBytes := fakeFrameSize * BytesPerSample
	interval := time.Duration(fakeFrameSize) * time.Second / fakeSampleRate
	if !f.realtime {
		interval = time.Millisecond
		for pos := 0; pos < len(f.pcm); pos += chunkBytes {
			f.deliver(f.pcm[pos:min(pos+chunkBytes, len(f.pcm))])
		}
		f.doneOnce.Do(func() { close(f.audioDone) })
	}

	go func() {
		defer close(f.feedDone)
		pos := len(f.pcm)
		if f.realtime {
			pos = 0
		}
		silence := make([]byte, chunkBytes)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
			}
			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				f.deliver(f.pcm[pos:end])
				pos = end
				continue
			}
			f.doneOnce.Do(func() { close(f.audioDone) })
			f.deliver(silence)
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() { f.Stop() }
