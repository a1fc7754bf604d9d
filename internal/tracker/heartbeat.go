package tracker

import (
	"sync"
	"time"
)

// Heartbeat runs tick on a fixed interval until Stop is called.
type Heartbeat struct {
	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

// StartHeartbeat launches the ticking goroutine and returns its handle.
func StartHeartbeat(interval time.Duration, tick func()) *Heartbeat {
	h := &Heartbeat{
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()

	return h
}

// Stop halts the heartbeat and waits for an in-progress tick to return.
// Safe to call more than once. Must not be called from inside tick.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stopChan) })
	<-h.done
}
