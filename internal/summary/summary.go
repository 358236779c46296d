// Package summary derives read-only views of a dossier: step completion,
// evidence aggregation, the gate rollup and printable text renderings.
// Nothing here writes to the dossier except InsertSnapshot, which only
// edits the in-memory value handed to it.
package summary

import (
	"fmt"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/dossier"
	"github.com/starford/dossier/internal/stepcodec"
)

// StepStatus is the completion state of one step.
type StepStatus struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Sprint    string `json:"sprint"`
	Complete  bool   `json:"complete"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Progress is the completion checklist of a dossier.
type Progress struct {
	Steps     []StepStatus `json:"steps"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Percent   int          `json:"percent"`
	// Next is the first incomplete step, or "" when all are complete.
	Next string `json:"next,omitempty"`
}

// Report bundles every derived view.
type Report struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"projectName"`
	UpdatedAt   string    `json:"updatedAt"`
	Progress    Progress  `json:"progress"`
	LeadMetrics []string  `json:"leadMetrics"`
	Evidence    *Evidence `json:"evidence,omitempty"`
	Gate        Gate      `json:"gate"`
}

// Extractor computes derived views using a codec to read migrated payloads.
type Extractor struct {
	codec      *stepcodec.Codec
	rules      map[string]Rule
	thresholds Thresholds
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRules replaces the completion rules of the listed steps.
func WithRules(rules map[string]Rule) Option {
	return func(x *Extractor) {
		for id, r := range rules {
			x.rules[id] = r
		}
	}
}

// WithThresholds sets the evidence targets.
func WithThresholds(th Thresholds) Option {
	return func(x *Extractor) { x.thresholds = th }
}

// NewExtractor creates an Extractor over codec.
func NewExtractor(codec *stepcodec.Codec, opts ...Option) *Extractor {
	x := &Extractor{
		codec:      codec,
		rules:      DefaultRules(),
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// StepComplete reports whether stepID of d counts as complete. Object
// payloads are judged in their current generation; anything else, or an
// object no generation accepts, is judged as stored.
func (x *Extractor) StepComplete(d *dossier.Dossier, stepID string) bool {
	raw, stored := d.Steps[stepID]
	if !stored || !dossier.KnownStep(stepID) {
		return false
	}
	v, _, ok := stepcodec.UnwrapValue(raw)
	if !ok {
		return false
	}
	rule := x.rules[stepID]
	if _, isObj := v.(map[string]any); !isObj {
		return rule.Complete(v)
	}
	p, err := stepcodec.Migrate(stepID, v)
	if err != nil {
		return rule.Complete(v)
	}
	return rule.Complete(toGeneric(p))
}

// Progress computes the completion checklist.
func (x *Extractor) Progress(d *dossier.Dossier) Progress {
	var pr Progress
	for _, s := range dossier.Steps() {
		st := StepStatus{
			ID:        s.ID,
			Title:     s.Title,
			Sprint:    s.Sprint,
			Complete:  x.StepComplete(d, s.ID),
			UpdatedAt: stepcodec.UpdatedAt(d, s.ID),
		}
		if st.Complete {
			pr.Completed++
		} else if pr.Next == "" {
			pr.Next = s.ID
		}
		pr.Steps = append(pr.Steps, st)
	}
	pr.Total = len(pr.Steps)
	if pr.Total > 0 {
		pr.Percent = pr.Completed * 100 / pr.Total
	}
	return pr
}

// Evidence aggregates step 1-6. ok is false when the step was never saved.
func (x *Extractor) Evidence(d *dossier.Dossier) (Evidence, bool) {
	if _, stored := d.Steps["1-6"]; !stored {
		return Evidence{}, false
	}
	return AggregateEvidence(stepcodec.ReadAs[stepcodec.Step16](x.codec, d), x.thresholds), true
}

// Gate rolls up step 1-10.
func (x *Extractor) Gate(d *dossier.Dossier) Gate {
	_, stored := d.Steps["1-10"]
	return RollupGate(stepcodec.ReadAs[stepcodec.Step110](x.codec, d), stepcodec.UpdatedAt(d, "1-10"), stored)
}

// LeadMetrics returns the lead metric names of step 1-4.
func (x *Extractor) LeadMetrics(d *dossier.Dossier) []string {
	return LeadMetricNames(stepcodec.ReadAs[stepcodec.Step14](x.codec, d))
}

// Report computes every derived view of d.
func (x *Extractor) Report(d *dossier.Dossier) Report {
	r := Report{
		ID:          d.ID,
		ProjectName: d.DisplayName(),
		UpdatedAt:   d.UpdatedAt,
		Progress:    x.Progress(d),
		LeadMetrics: x.LeadMetrics(d),
		Gate:        x.Gate(d),
	}
	if e, ok := x.Evidence(d); ok {
		r.Evidence = &e
	}
	return r
}

// Snapshot renders the snapshot text of step 1-4 or 1-6.
func (x *Extractor) Snapshot(d *dossier.Dossier, stepID string) (string, error) {
	switch stepID {
	case "1-4":
		return RenderMetrics(stepcodec.ReadAs[stepcodec.Step14](x.codec, d)), nil
	case "1-6":
		return RenderEvidence(AggregateEvidence(stepcodec.ReadAs[stepcodec.Step16](x.codec, d), x.thresholds)), nil
	default:
		return "", fmt.Errorf("summary: no snapshot for step %s: %w", stepID, apperr.ErrUnknownStep)
	}
}

// InsertSnapshot renders the snapshot of stepID and inserts it into the
// matching auto-evidence field of the gate payload. Inserting again
// replaces the earlier block. The caller persists the returned payload.
func (x *Extractor) InsertSnapshot(d *dossier.Dossier, stepID string) (stepcodec.Step110, error) {
	text, err := x.Snapshot(d, stepID)
	if err != nil {
		return stepcodec.Step110{}, err
	}
	gate := stepcodec.ReadAs[stepcodec.Step110](x.codec, d)
	switch stepID {
	case "1-4":
		gate.AutoEvidence.Step14 = InsertTagged(gate.AutoEvidence.Step14, TagMetrics, text)
	case "1-6":
		gate.AutoEvidence.Step16 = InsertTagged(gate.AutoEvidence.Step16, TagEvidence, text)
	}
	return gate, nil
}
