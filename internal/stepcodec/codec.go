// Package stepcodec reads and writes step payloads of a dossier.
//
// Stored step values are envelopes carrying their own updatedAt. Reads
// unwrap the envelope and migrate older payload generations forward; a
// payload that cannot be read yields the step's default. Writes wrap the
// payload and stamp the dossier.
package stepcodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/dossier"
)

// FallbackHook observes every read that fell back to a default payload.
type FallbackHook func(stepID string)

// Codec reads and writes step payloads.
type Codec struct {
	clock      dossier.Clock
	logger     *slog.Logger
	onFallback FallbackHook
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock sets the time source for write stamps.
func WithClock(c dossier.Clock) Option {
	return func(cd *Codec) { cd.clock = c }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(cd *Codec) { cd.logger = l }
}

// WithFallbackHook registers fn to observe migration fallbacks.
func WithFallbackHook(fn FallbackHook) Option {
	return func(cd *Codec) { cd.onFallback = fn }
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		clock:  dossier.SystemClock,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the current-generation payload of stepID. Absent, corrupt
// or unmigratable payloads yield the step default. The only error is
// apperr.ErrUnknownStep.
func (c *Codec) Read(d *dossier.Dossier, stepID string) (Payload, error) {
	s, ok := registry[stepID]
	if !ok {
		return nil, apperr.ErrUnknownStep
	}
	if d == nil {
		return s.defaults(), nil
	}
	raw, ok := d.Steps[stepID]
	if !ok {
		return s.defaults(), nil
	}
	v, _, ok := UnwrapValue(raw)
	if !ok {
		return s.defaults(), nil
	}
	p, err := Migrate(stepID, v)
	if err != nil {
		c.fallback(d.ID, stepID, err)
		return s.defaults(), nil
	}
	return p, nil
}

func (c *Codec) fallback(id, stepID string, err error) {
	c.logger.Warn("stepcodec: payload replaced by default",
		slog.String("dossier", id),
		slog.String("step", stepID),
		slog.String("error", err.Error()))
	if c.onFallback != nil {
		c.onFallback(stepID)
	}
}

// ReadAs is Read for a statically known step type.
func ReadAs[T Payload](c *Codec, d *dossier.Dossier) T {
	var zero T
	p, err := c.Read(d, zero.StepID())
	if err != nil {
		return zero
	}
	t, _ := p.(T)
	return t
}

// UpdatedAt returns the envelope timestamp of stepID, or "".
func UpdatedAt(d *dossier.Dossier, stepID string) string {
	if d == nil {
		return ""
	}
	raw, ok := d.Steps[stepID]
	if !ok {
		return ""
	}
	_, ts, _ := Unwrap(raw)
	return ts
}

// Normalize parses a client-supplied payload for stepID and brings it to the
// current generation. Unlike Read it reports what was wrong.
func Normalize(stepID string, body []byte) (Payload, error) {
	if _, ok := registry[stepID]; !ok {
		return nil, apperr.ErrUnknownStep
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, apperr.ErrInvalidJSON
	}
	return Migrate(stepID, v)
}

// Write stores payload as the value of stepID, stamps the dossier and moves
// its resume pointer to stepID. The problem one-liner of step 1-1, or one
// composed from its parts when blank, is copied into the dossier metadata.
func (c *Codec) Write(d *dossier.Dossier, stepID string, payload any) error {
	if !dossier.KnownStep(stepID) {
		return apperr.ErrUnknownStep
	}
	now := c.clock()
	env, err := Wrap(payload, dossier.FormatTime(now))
	if err != nil {
		return err
	}
	if d.Steps == nil {
		d.Steps = map[string]json.RawMessage{}
	}
	d.Steps[stepID] = env
	dossier.Touch(d, now)
	d.LastVisitedStepID = stepID
	syncMeta(d, stepID, env)
	return nil
}

// syncMeta applies step-specific metadata hooks after a write.
func syncMeta(d *dossier.Dossier, stepID string, env json.RawMessage) {
	if stepID != "1-1" {
		return
	}
	v, _, ok := UnwrapValue(env)
	if !ok {
		return
	}
	o, ok := asObject(v)
	if !ok {
		return
	}
	line := strings.TrimSpace(o.str("oneLine"))
	if line == "" {
		line = ComposeOneLine(Step11{
			User:   o.str("user"),
			JTBD:   o.str("jtbd"),
			Pain:   o.str("pain"),
			Impact: o.str("impact"),
		})
	}
	if line != "" {
		d.Meta.OneLineProblem = line
		delete(d.Meta.Extra, "oneLineProblem")
	}
}

// Visit moves the resume pointer of d to stepID and stamps it.
func (c *Codec) Visit(d *dossier.Dossier, stepID string) error {
	if !dossier.KnownStep(stepID) {
		return apperr.ErrUnknownStep
	}
	d.LastVisitedStepID = stepID
	dossier.Touch(d, c.clock())
	return nil
}

// MigrateAll rewrites every stored step of d in its current generation,
// keeping each envelope timestamp. Entries that cannot be unwrapped or
// migrated are left as stored. It returns the ids that changed.
func (c *Codec) MigrateAll(d *dossier.Dossier) ([]string, error) {
	var changed []string
	for _, id := range dossier.StepIDs() {
		raw, ok := d.Steps[id]
		if !ok {
			continue
		}
		v, ts, ok := UnwrapValue(raw)
		if !ok {
			continue
		}
		p, err := Migrate(id, v)
		if err != nil {
			c.logger.Debug("stepcodec: step left unmigrated",
				slog.String("dossier", d.ID),
				slog.String("step", id),
				slog.String("error", err.Error()))
			continue
		}
		env, err := Wrap(p, ts)
		if err != nil {
			return changed, fmt.Errorf("stepcodec: migrate %s: %w", id, err)
		}
		if !jsonEqual(raw, env) {
			d.Steps[id] = env
			changed = append(changed, id)
		}
	}
	return changed, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	ea, _ := json.Marshal(va)
	eb, _ := json.Marshal(vb)
	return string(ea) == string(eb)
}

// ComposeOneLine builds the problem statement
// "<user> is trying to <jtbd> but <pain> which leads to <impact>",
// skipping blank parts.
func ComposeOneLine(p Step11) string {
	var parts []string
	add := func(prefix, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, prefix+v)
		}
	}
	add("", p.User)
	add("is trying to ", p.JTBD)
	add("but ", p.Pain)
	add("which leads to ", p.Impact)
	return strings.Join(parts, " ")
}

// IsUnreadable reports whether err came from a payload that matched no
// known generation or shape.
func IsUnreadable(err error) bool {
	return errors.Is(err, ErrUnknownGeneration) || errors.Is(err, ErrNotObject)
}
