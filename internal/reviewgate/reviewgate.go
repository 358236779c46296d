// Package reviewgate verifies the shared reviewer key and keeps the local
// unlock flag. The gate hides reviewer tooling from casual users; it is not
// an access control.
package reviewgate

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/kv"
)

// DefaultNamespace is the key namespace used when none is configured.
const DefaultNamespace = "rhs"

// Verifier checks candidate keys against the configured secret.
type Verifier struct {
	expected string
}

// NewVerifier creates a Verifier for key. A blank key leaves the verifier
// unconfigured.
func NewVerifier(key string) *Verifier {
	return &Verifier{expected: strings.TrimSpace(key)}
}

// Configured reports whether a reviewer key is set.
func (v *Verifier) Configured() bool {
	return v.expected != ""
}

// Verify returns nil when candidate matches the configured key,
// ErrNotConfigured when no key is set and ErrUnauthorized otherwise.
func (v *Verifier) Verify(candidate string) error {
	if !v.Configured() {
		return fmt.Errorf("reviewgate: %w", apperr.ErrNotConfigured)
	}
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || subtle.ConstantTimeCompare([]byte(candidate), []byte(v.expected)) != 1 {
		return fmt.Errorf("reviewgate: %w", apperr.ErrUnauthorized)
	}
	return nil
}

// Gate combines a Verifier with the persisted unlock flag.
type Gate struct {
	verifier *Verifier
	store    *kv.Safe
	ns       string
}

// Option configures a Gate.
type Option func(*Gate)

// WithNamespace sets the key namespace of the unlock flag.
func WithNamespace(ns string) Option {
	return func(g *Gate) {
		if ns = strings.TrimSpace(ns); ns != "" {
			g.ns = ns
		}
	}
}

// New creates a Gate.
func New(v *Verifier, store *kv.Safe, opts ...Option) *Gate {
	g := &Gate{verifier: v, store: store, ns: DefaultNamespace}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FlagKey is the storage key of the unlock flag.
func (g *Gate) FlagKey() string {
	return g.ns + ":reviewerUnlocked:v1"
}

// Configured reports whether a reviewer key is set.
func (g *Gate) Configured() bool {
	return g.verifier.Configured()
}

// Unlock verifies candidate and, on success, sets the unlock flag.
func (g *Gate) Unlock(ctx context.Context, candidate string) error {
	if err := g.verifier.Verify(candidate); err != nil {
		return err
	}
	g.store.Set(ctx, g.FlagKey(), "1")
	return nil
}

// Unlocked reports whether the flag is set. It never expires.
func (g *Gate) Unlocked(ctx context.Context) bool {
	v, ok := g.store.Get(ctx, g.FlagKey())
	return ok && v == "1"
}

// Clear removes the unlock flag.
func (g *Gate) Clear(ctx context.Context) {
	g.store.Remove(ctx, g.FlagKey())
}
