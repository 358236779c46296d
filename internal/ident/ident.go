// Package ident generates opaque dossier identifiers.
//
// Identifiers are RFC 4122 version 4 UUIDs. When the system random source
// fails, a time-seeded pseudo-random reader is used instead so New always
// returns a value matching the same pattern.
package ident

import (
	"encoding/binary"
	"io"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var uuidLikeRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Generator produces identifiers from a primary random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator reading from r. A nil r means the
// crypto/rand source used by uuid.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

var defaultGenerator = NewGenerator(nil)

// New returns a fresh identifier from the default generator.
func New() string {
	return defaultGenerator.New()
}

// New returns a fresh identifier. It never fails.
func (g *Generator) New() string {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand == nil {
		id, err = uuid.NewRandom()
	} else {
		id, err = uuid.NewRandomFromReader(g.rand)
	}
	if err == nil {
		return id.String()
	}
	id, err = uuid.NewRandomFromReader(fallbackReader())
	if err != nil {
		// fallbackReader never errors; keep the compiler honest.
		panic("ident: fallback reader failed: " + err.Error())
	}
	return id.String()
}

// Valid reports whether s looks like an identifier produced by New. It is a
// cheap filter for query-string input, not a security check.
func Valid(s string) bool {
	return uuidLikeRe.MatchString(strings.ToLower(strings.TrimSpace(s)))
}

// pcgReader is a process-wide pseudo-random stream seeded once from the clock.
type pcgReader struct {
	mu  sync.Mutex
	src *rand.PCG
}

var fallback pcgReader

func fallbackReader() io.Reader {
	return &fallback
}

func (r *pcgReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.src == nil {
		now := uint64(time.Now().UnixNano())
		r.src = rand.NewPCG(now, now^0x9e3779b97f4a7c15)
	}
	var buf [8]byte
	for i := 0; i < len(p); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], r.src.Uint64())
		copy(p[i:], buf[:])
	}
	return len(p), nil
}
