// Package kv is the persistence adapter: a synchronous string key/value
// store with pluggable backends.
//
// Backends report failures as errors. Safe wraps a Backend and absorbs every
// failure (unavailable storage, quota, I/O errors) into a no-op or an empty
// result, so callers above this package never see a storage error.
package kv

import (
	"context"
	"fmt"

	"github.com/starford/dossier/internal/apperr"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrNotFound is returned by Backend.Get for a missing key.
var ErrNotFound = apperr.ErrNotFound

// Backend is a string key/value store.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys returns every stored key in a stable order.
	Keys(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// Options selects and configures a backend for Open.
type Options struct {
	Backend     string
	Path        string
	RedisURL    string
	RedisPrefix string
}

// Open constructs the backend named by opts.Backend.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendFS:
		return NewFS(opts.Path)
	case BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendRedis:
		return NewRedis(opts.RedisURL, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", opts.Backend)
	}
}
