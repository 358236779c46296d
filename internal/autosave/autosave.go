// Package autosave schedules debounced writes. Each key holds at most one
// pending write; scheduling again replaces it and restarts the window.
package autosave

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Debouncer is a keyed single-slot scheduler.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	seq     uint64
	pending map[string]*entry
	closed  bool
	onFire  func(key string)
}

type entry struct {
	seq   uint64
	timer *time.Timer
	fn    func()
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithFireHook registers fn to run after every executed write.
func WithFireHook(fn func(key string)) Option {
	return func(d *Debouncer) { d.onFire = fn }
}

// New creates a Debouncer with the given window.
func New(window time.Duration, opts ...Option) *Debouncer {
	d := &Debouncer{
		window:  window,
		pending: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the debounce window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Schedule arms fn for key, replacing any write already pending for it.
// After Close, Schedule runs nothing.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.ScheduleAfter(key, d.window, fn)
}

// ScheduleAfter is Schedule with an explicit window.
func (d *Debouncer) ScheduleAfter(key string, window time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if e, ok := d.pending[key]; ok {
		e.timer.Stop()
	}
	d.seq++
	e := &entry{seq: d.seq, fn: fn}
	seq := e.seq
	e.timer = time.AfterFunc(window, func() { d.fire(key, seq) })
	d.pending[key] = e
}

func (d *Debouncer) fire(key string, seq uint64) {
	d.mu.Lock()
	e, ok := d.pending[key]
	// A replaced or cancelled entry must not run.
	if !ok || e.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()
	d.run(key, e.fn)
}

func (d *Debouncer) run(key string, fn func()) {
	fn()
	if d.onFire != nil {
		d.onFire(key)
	}
}

// Cancel drops the pending write for key. It reports whether one existed.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.pending[key]
	if ok {
		e.timer.Stop()
		delete(d.pending, key)
	}
	return ok
}

// CancelPrefix drops every pending write whose key starts with prefix and
// returns how many were dropped.
func (d *Debouncer) CancelPrefix(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for key, e := range d.pending {
		if strings.HasPrefix(key, prefix) {
			e.timer.Stop()
			delete(d.pending, key)
			n++
		}
	}
	return n
}

// Flush runs every pending write now, in key order, and returns how many ran.
func (d *Debouncer) Flush() int {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for key, e := range d.pending {
		e.timer.Stop()
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fns := make([]func(), len(keys))
	for i, key := range keys {
		fns[i] = d.pending[key].fn
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for i, fn := range fns {
		d.run(keys[i], fn)
	}
	return len(fns)
}

// Pending returns the keys with a pending write, sorted.
func (d *Debouncer) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Close flushes pending writes and stops accepting new ones.
func (d *Debouncer) Close() int {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.Flush()
}
