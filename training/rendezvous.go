package training

import (
	"context"
	"sync"
)

// Rendezvous blocks callers until the configured number of parties has
// arrived, then releases them all at once and resets for the next round.
// Unlike a fixed barrier the size is mutable: when a participant drops,
// Resize shrinks the threshold and releases the current waiters if they
// already satisfy it, so nobody waits for a party that will never arrive.
type Rendezvous struct {
	mu      sync.Mutex
	size    int
	arrived int
	release chan struct{}
}

// NewRendezvous creates a rendezvous for n parties.
func NewRendezvous(n int) *Rendezvous {
	return &Rendezvous{size: n, release: make(chan struct{})}
}

// Wait blocks until size parties have arrived or the context is
// cancelled. A cancelled waiter withdraws its arrival so it never counts
// toward a later release.
func (r *Rendezvous) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.arrived++
	if r.size > 0 && r.arrived >= r.size {
		r.broadcastLocked()
		r.mu.Unlock()
		return nil
	}
	ch := r.release
	r.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		if ch == r.release {
			r.arrived--
		}
		r.mu.Unlock()
		return ctx.Err()
	}
}

// Resize sets the number of parties the next release requires. Shrinking
// below the number already waiting releases them immediately.
func (r *Rendezvous) Resize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = n
	if n > 0 && r.arrived >= n {
		r.broadcastLocked()
	}
}

// Size returns the current threshold.
func (r *Rendezvous) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Waiting returns the number of parties currently blocked.
func (r *Rendezvous) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arrived
}

func (r *Rendezvous) broadcastLocked() {
	close(r.release)
	r.release = make(chan struct{})
	r.arrived = 0
}
