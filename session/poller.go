package session

import (
	"sync"
	"time"
)

// poller republishes the capture amplitude on a fixed cadence until
// cancelled. It never touches controller state.
type poller struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startPoller(interval time.Duration, query func() (float64, error), publish func(float64)) *poller {
	p := &poller{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
			}
			level, err := query()
			if err != nil {
				continue
			}
			select {
			case <-p.stop:
				return
			default:
			}
			publish(level)
		}
	}()
	return p
}

// cancel returns once the loop has exited; nothing is published after.
func (p *poller) cancel() {
	p.once.Do(func() { close(p.stop) })
	<-p.done
}
