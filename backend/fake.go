package backend

import (
	"context"
	"sync/atomic"
	"time"
)

// Fake answers every upload with a fixed reply or error after Delay.
type Fake struct {
	Reply string
	Err   error
	Delay time.Duration

	calls atomic.Int32
}

func NewFake(reply string, err error) *Fake {
	return &Fake{Reply: reply, Err: err}
}

func (f *Fake) SendAudio(ctx context.Context, _ string) (string, error) {
	f.calls.Add(1)
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

func (f *Fake) Calls() int { return int(f.calls.Load()) }
