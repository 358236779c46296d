package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// FailureHook is notified of every absorbed backend failure.
type FailureHook func(backend, op string)

// Safe wraps a Backend and never propagates its failures.
type Safe struct {
	b      Backend
	logger *slog.Logger
	hook   FailureHook
}

// SafeOption configures a Safe.
type SafeOption func(*Safe)

// WithFailureHook registers fn to observe absorbed failures.
func WithFailureHook(fn FailureHook) SafeOption {
	return func(s *Safe) {
		s.hook = fn
	}
}

// NewSafe wraps b. A nil logger discards diagnostics.
func NewSafe(b Backend, logger *slog.Logger, opts ...SafeOption) *Safe {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Safe{b: b, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the wrapped backend.
func (s *Safe) Backend() Backend {
	return s.b
}

// Get returns the value under key and whether it was present.
func (s *Safe) Get(ctx context.Context, key string) (value string, ok bool) {
	err := s.guard("get", key, func() error {
		v, err := s.b.Get(ctx, key)
		if err != nil {
			return err
		}
		value, ok = v, true
		return nil
	})
	if err != nil {
		return "", false
	}
	return value, ok
}

// Set stores value under key; failures are dropped.
func (s *Safe) Set(ctx context.Context, key, value string) {
	_ = s.guard("set", key, func() error {
		return s.b.Set(ctx, key, value)
	})
}

// Remove deletes key; failures are dropped.
func (s *Safe) Remove(ctx context.Context, key string) {
	_ = s.guard("remove", key, func() error {
		return s.b.Remove(ctx, key)
	})
}

// Keys lists stored keys, or nil when the backend is unavailable.
func (s *Safe) Keys(ctx context.Context) []string {
	var keys []string
	err := s.guard("keys", "", func() error {
		k, err := s.b.Keys(ctx)
		if err != nil {
			return err
		}
		keys = k
		return nil
	})
	if err != nil {
		return nil
	}
	return keys
}

// guard runs fn, converting panics to errors and reporting failures.
// A missing key is reported to the caller but is not a failure.
func (s *Safe) guard(op, key string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kv: %s panicked: %v", op, r)
		}
		if err == nil || errors.Is(err, ErrNotFound) {
			return
		}
		s.logger.Warn("kv: operation failed",
			slog.String("backend", s.b.Name()),
			slog.String("op", op),
			slog.String("key", key),
			slog.String("error", err.Error()))
		if s.hook != nil {
			s.hook(s.b.Name(), op)
		}
	}()
	return fn()
}
