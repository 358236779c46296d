// Package review holds the reviewer scoring sub-document stored under
// meta.reviewerV1 of a dossier.
package review

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dossier/internal/dossier"
)

// Version tags the rubric sub-document.
const Version = "reviewer-v1"

// MaxScore is the highest score of a single rubric item.
const MaxScore = 2

// Rubric keys in display order.
const (
	KeyProblem      = "problem"
	KeyStakeholders = "stakeholders"
	KeyMetrics      = "metrics"
	KeyEvidence     = "evidence"
	KeyDecision     = "decision"
)

// Item describes one rubric row.
type Item struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Hint  string `json:"hint"`
}

var rubric = []Item{
	{KeyProblem, "Problem is specific and testable (user + job + pain + impact)", "Not a solution. Not vague. One user, one job, one measurable impact."},
	{KeyStakeholders, "Stakeholder map matches reality (users, buyer, approver, payer)", "Clear owner/payer and why they care."},
	{KeyMetrics, "Lead metrics + baselines are measurable next week", "At least 2 lead metrics + how/when measured + guardrails if relevant."},
	{KeyEvidence, "Validation evidence is credible (not just opinions)", "Observations/quotes/counts. Enough participants to justify a direction."},
	{KeyDecision, "Decision discipline (Go / One-iteration / Stop) is justified", "The decision follows the evidence, not optimism."},
}

// Rubric returns the rubric rows in display order.
func Rubric() []Item {
	return append([]Item(nil), rubric...)
}

// Keys returns the rubric keys in display order.
func Keys() []string {
	keys := make([]string, len(rubric))
	for i, it := range rubric {
		keys[i] = it.Key
	}
	return keys
}

// Review is the reviewer's scoring of a dossier.
type Review struct {
	Version      string             `json:"version"`
	UpdatedAt    string             `json:"updatedAt"`
	Scores       map[string]float64 `json:"scores"`
	Notes        map[string]string  `json:"notes"`
	OverallNotes string             `json:"overallNotes"`
}

// Default returns an empty review stamped with now.
func Default(now string) Review {
	r := Review{
		Version:   Version,
		UpdatedAt: now,
		Scores:    make(map[string]float64, len(rubric)),
		Notes:     make(map[string]string, len(rubric)),
	}
	for _, k := range Keys() {
		r.Scores[k] = 0
		r.Notes[k] = ""
	}
	return r
}

// Total sums the item scores, 0..10.
func (r Review) Total() float64 {
	var total float64
	for _, k := range Keys() {
		total += r.Scores[k]
	}
	return total
}

// Clamp limits every score to 0..MaxScore and restricts both maps to the
// rubric keys. Fractional scores are kept.
func (r Review) Clamp() Review {
	out := Default(r.UpdatedAt)
	out.OverallNotes = r.OverallNotes
	for _, k := range Keys() {
		out.Scores[k] = clampScore(r.Scores[k])
		out.Notes[k] = r.Notes[k]
	}
	return out
}

// Decode reads the review embedded in raw. A missing or foreign sub-document
// yields the default review; unreadable scores become 0 and fractional
// scores are kept.
func Decode(raw json.RawMessage, now string) Review {
	var obj map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil {
		return Default(now)
	}
	if v, _ := obj["version"].(string); v != Version {
		return Default(now)
	}
	r := Default(now)
	if ts, ok := obj["updatedAt"].(string); ok {
		r.UpdatedAt = ts
	}
	scores, _ := obj["scores"].(map[string]any)
	notes, _ := obj["notes"].(map[string]any)
	for _, k := range Keys() {
		r.Scores[k] = score(scores[k])
		r.Notes[k] = text(notes[k])
	}
	r.OverallNotes = text(obj["overallNotes"])
	return r
}

func score(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = n
	case bool:
		if x {
			f = 1
		}
	default:
		return 0
	}
	return clampScore(f)
}

func clampScore(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(MaxScore, f))
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Load returns the review stored on d.
func Load(d *dossier.Dossier, now string) Review {
	return Decode(d.Meta.Reviewer, now)
}

// Store clamps r, stamps it with now and embeds it into d. The document's
// own updatedAt is touched as well.
func Store(d *dossier.Dossier, r Review, now time.Time) error {
	r = r.Clamp()
	r.UpdatedAt = dossier.FormatTime(now)
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("review: encode: %w", err)
	}
	d.Meta.Reviewer = b
	dossier.Touch(d, now)
	return nil
}
