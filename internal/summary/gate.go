package summary

import (
	"strings"

	"github.com/starford/dossier/internal/stepcodec"
)

// MaxGateScore is the highest possible gate total.
const MaxGateScore = 50

// Gate is the rollup of the gate review step.
type Gate struct {
	OK          bool   `json:"ok"`
	Present     bool   `json:"present"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
	Decision    string `json:"decision"`
	Label       string `json:"label"`
	Scores      [5]int `json:"scores"`
	Total       int    `json:"total"`
	Max         int    `json:"max"`
	Rationale   string `json:"rationale"`
	NextActions string `json:"nextActions"`
	Auto14      string `json:"auto14"`
	Auto16      string `json:"auto16"`
	Note        string `json:"note,omitempty"`
}

// DecisionLabel renders a decision for display.
func DecisionLabel(decision string) string {
	switch decision {
	case stepcodec.DecisionGo:
		return "GO"
	case stepcodec.DecisionStop:
		return "STOP"
	default:
		return "ONE-ITERATION"
	}
}

// RollupGate summarises a gate payload. present reports whether the step
// was stored at all.
func RollupGate(p stepcodec.Step110, updatedAt string, present bool) Gate {
	decision := stepcodec.CoerceDecision(p.Decision)
	g := Gate{
		Present:     present,
		UpdatedAt:   updatedAt,
		Decision:    decision,
		Label:       DecisionLabel(decision),
		Scores:      p.Scores(),
		Total:       p.Total(),
		Max:         MaxGateScore,
		Rationale:   p.Rationale,
		NextActions: p.NextActions,
		Auto14:      p.AutoEvidence.Step14,
		Auto16:      p.AutoEvidence.Step16,
	}
	g.OK = notBlank(g.Rationale) || notBlank(g.NextActions) || g.Total > 0 ||
		notBlank(g.Auto14) || notBlank(g.Auto16)
	if !present {
		g.Note = "Step 1.10 is empty."
	}
	return g
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

// LeadMetricNames returns the trimmed names of the lead metrics in order.
func LeadMetricNames(p stepcodec.Step14) []string {
	names := make([]string, len(p.LeadMetrics))
	for i, m := range p.LeadMetrics {
		names[i] = strings.TrimSpace(m.Name)
	}
	return names
}
