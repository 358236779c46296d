package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	fsSuffix    = ".kv"
	fsTmpPrefix = ".dossier-tmp-"
)

// FS stores one file per key under a root directory. Keys are
// query-escaped into file names, so any key maps to a single flat file.
type FS struct {
	root string // absolute path to data directory
}

// NewFS creates a file backend rooted at dir, creating it when missing.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, fmt.Errorf("kv: fs path is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("kv: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("kv: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kv: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string {
	return f.root
}

func (f *FS) Name() string { return BackendFS }

// fileName maps a key to its file name inside root.
func fileName(key string) string {
	return url.QueryEscape(key) + fsSuffix
}

// keyFromFile reverses fileName. ok is false for foreign files.
func keyFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, fsTmpPrefix) || !strings.HasSuffix(name, fsSuffix) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(name, fsSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}

func (f *FS) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.root, fileName(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("kv: read %s: %w", key, err)
	}
	return string(data), nil
}

// Set atomically writes value: tmp file → fsync → rename.
func (f *FS) Set(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(f.root, fsTmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("kv: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(value); err != nil {
		return fmt.Errorf("kv: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kv: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close temp: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(f.root, fileName(key))); err != nil {
		return fmt.Errorf("kv: rename: %w", err)
	}
	success = true
	return nil
}

func (f *FS) Remove(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(f.root, fileName(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("kv: remove %s: %w", key, err)
	}
	return nil
}

func (f *FS) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("kv: list: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFromFile(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FS) Close() error { return nil }
