package handover

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// periodic runs a function immediately and then on every tick of an
// interval, until stopped.
type periodic struct {
	clock    clock.WithTicker
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newPeriodic(clk clock.WithTicker, interval time.Duration) *periodic {
	return &periodic{clock: clk, interval: interval}
}

// Start starts running fn. It returns false, and does nothing, if the task is
// already running.
func (p *periodic) Start(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return false
	}
	p.startLocked(fn)
	return true
}

// Restart stops the task if it is running and starts it again with fn, which
// therefore runs immediately.
func (p *periodic) Restart(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.startLocked(fn)
}

// Stop stops the task and waits for a running fn to return. It is safe to
// call when the task was never started, or is already stopped. fn must not
// call Stop.
func (p *periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Running reports whether the task is started.
func (p *periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *periodic) startLocked(fn func()) {
	// the ticker is created before returning so that time advanced by the
	// caller right after Start is never missed
	ticker := p.clock.NewTicker(p.interval)
	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done

	go func() {
		defer close(done)
		defer ticker.Stop()
		fn()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
			}
			select {
			case <-stop:
				return
			default:
			}
			fn()
		}
	}()
}

func (p *periodic) stopLocked() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
}
