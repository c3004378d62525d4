package lookup

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned by Wait when a newer call for the same key arrived
// during the debounce window.
var ErrSuperseded = errors.New("lookup: superseded by newer input")

// Ticket identifies one debounced call.
type Ticket struct {
	Key string
	Seq uint64
}

type debounceEntry struct {
	seq  uint64
	seen time.Time
}

// Debouncer hands out sequence numbers from one counter shared by all keys, so
// a key forgotten by the idle sweep never reissues an old number. Only the latest
// ticket of a key is current; older ones are superseded before the backend call,
// or stale after it.
type Debouncer struct {
	mu        sync.Mutex
	seq       uint64
	entries   map[string]*debounceEntry
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewDebouncer returns a Debouncer that forgets keys idle for longer than idle.
func NewDebouncer(idle time.Duration) *Debouncer {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Debouncer{entries: make(map[string]*debounceEntry), idle: idle, now: time.Now}
}

// Next issues a new ticket for key, invalidating all earlier ones.
func (d *Debouncer) Next(key string) Ticket {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if now.Sub(d.lastSweep) > d.idle {
		for k, e := range d.entries {
			if now.Sub(e.seen) > d.idle {
				delete(d.entries, k)
			}
		}
		d.lastSweep = now
	}
	e, ok := d.entries[key]
	if !ok {
		e = &debounceEntry{}
		d.entries[key] = e
	}
	d.seq++
	e.seq = d.seq
	e.seen = now
	return Ticket{Key: key, Seq: e.seq}
}

// Current reports whether t is still the latest ticket of its key.
func (d *Debouncer) Current(t Ticket) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[t.Key]
	return ok && e.seq == t.Seq
}

// Wait issues a ticket and holds it for window. It returns ErrSuperseded when a
// newer ticket was issued meanwhile, or the context error if ctx ends first.
func (d *Debouncer) Wait(ctx context.Context, key string, window time.Duration) (Ticket, error) {
	t := d.Next(key)
	if window > 0 {
		timer := time.NewTimer(window)
		select {
		case <-ctx.Done():
			timer.Stop()
			return t, ctx.Err()
		case <-timer.C:
		}
	}
	if !d.Current(t) {
		return t, ErrSuperseded
	}
	return t, nil
}
