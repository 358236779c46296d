// Package testutil provides shared test helpers: in-memory stores, a
// deterministic clock and a backend that always fails.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/starford/dossier/internal/kv"
)

// MemoryStore returns an error-absorbing store over a fresh memory backend.
func MemoryStore(t *testing.T) (*kv.Safe, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	t.Cleanup(func() { mem.Close() })
	return kv.NewSafe(mem, nil), mem
}

// Clock is a manually advanced clock. Every call to Now advances it by Step.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewClock starts a clock at start that advances step per reading.
func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, Step: step}
}

// Now returns the current reading and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// ErrBackendDown is returned by every FailingBackend operation.
var ErrBackendDown = errors.New("backend unavailable")

// FailingBackend is a kv.Backend whose every operation fails.
type FailingBackend struct{}

func (FailingBackend) Name() string                                { return "failing" }
func (FailingBackend) Get(context.Context, string) (string, error) { return "", ErrBackendDown }
func (FailingBackend) Set(context.Context, string, string) error   { return ErrBackendDown }
func (FailingBackend) Remove(context.Context, string) error        { return ErrBackendDown }
func (FailingBackend) Keys(context.Context) ([]string, error)      { return nil, ErrBackendDown }
func (FailingBackend) Close() error                                { return nil }

// SeqIDs allocates predictable UUID-shaped identifiers.
type SeqIDs struct {
	mu sync.Mutex
	n  int
}

// New returns the next identifier.
func (s *SeqIDs) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", s.n)
}
