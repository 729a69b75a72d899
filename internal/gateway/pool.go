package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Pool owns a bounded set of upload connections and lends them out one
// holder at a time. Released handles go to the longest-waiting acquirer
// first (FIFO) and are only parked in the idle set when nobody waits.
type Pool struct {
	factory Factory
	max     int

	mu      sync.Mutex
	idle    []Uploader
	active  int // handles currently lent out or under construction
	waiters []chan Uploader

	creations uint64
	reuses    uint64
	failures  uint64
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Creations uint64
	Reuses    uint64
	Failures  uint64
	Idle      int
	Active    int
	Waiting   int
}

// NewPool constructs a pool bounded at max connections.
func NewPool(factory Factory, max int) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{factory: factory, max: max}
}

// Acquire returns a connection, preferring an idle handle, then a freshly
// constructed one while under capacity, otherwise suspending the caller in
// FIFO order until a handle is released. Construction failures free the
// slot for the next attempt and propagate to the caller.
func (p *Pool) Acquire(ctx context.Context) (Uploader, error) {
	for {
		p.mu.Lock()
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.active++
			p.reuses++
			p.mu.Unlock()
			return c, nil
		}
		if p.active < p.max {
			p.active++
			p.mu.Unlock()

			c, err := p.factory()

			p.mu.Lock()
			if err != nil {
				p.active--
				p.failures++
				// The freed slot must stay usable: wake the longest
				// waiter so it can retry construction.
				if w := p.popWaiterLocked(); w != nil {
					w <- nil
				}
				p.mu.Unlock()
				return nil, fmt.Errorf("create connection: %w", err)
			}
			p.creations++
			p.mu.Unlock()
			return c, nil
		}

		ch := make(chan Uploader, 1)
		p.waiters = append(p.waiters, ch)
		p.mu.Unlock()

		select {
		case c := <-ch:
			if c == nil {
				continue // a slot freed up without a handle; retry
			}
			return c, nil
		case <-ctx.Done():
			p.mu.Lock()
			removed := p.removeWaiterLocked(ch)
			p.mu.Unlock()
			if !removed {
				// Delivery raced the cancellation and is already in the
				// buffer. A real handle goes back so it is not lost; a
				// retry signal is forwarded to the next waiter.
				if c := <-ch; c != nil {
					p.Release(c)
				} else {
					p.kickWaiter()
				}
			}
			return nil, ctx.Err()
		}
	}
}

// Release returns a handle to the pool: directly to the longest-waiting
// acquirer when one exists, otherwise into the idle set.
func (p *Pool) Release(c Uploader) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w := p.popWaiterLocked(); w != nil {
		w <- c // ownership transfers, active count unchanged
		return
	}
	p.active--
	p.idle = append(p.idle, c)
}

// Discard drops a handle that is no longer usable, freeing its slot
// without returning it to circulation.
func (p *Pool) Discard(c Uploader) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active--
	if w := p.popWaiterLocked(); w != nil {
		w <- nil // freed slot, waiter retries construction
	}
}

// Stats returns a snapshot of the pool's counters and occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Creations: p.creations,
		Reuses:    p.reuses,
		Failures:  p.failures,
		Idle:      len(p.idle),
		Active:    p.active,
		Waiting:   len(p.waiters),
	}
}

// kickWaiter wakes the oldest waiter without a handle so it retries
// against a freed slot.
func (p *Pool) kickWaiter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w := p.popWaiterLocked(); w != nil {
		w <- nil
	}
}

// popWaiterLocked removes and returns the oldest waiter, or nil.
// Callers must hold p.mu; channels are buffered so sends cannot block.
func (p *Pool) popWaiterLocked() chan Uploader {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	return w
}

// removeWaiterLocked unregisters a cancelled waiter. A false return means
// the waiter was already popped and a delivery is in its channel buffer.
func (p *Pool) removeWaiterLocked(ch chan Uploader) bool {
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}
