package summary

import (
	"math"
	"slices"
	"strings"

	"github.com/starford/dossier/internal/stepcodec"
)

// Thresholds are the soft evidence-sufficiency targets.
type Thresholds struct {
	MinSessions        int  `yaml:"min_sessions"`
	MinQuotes          int  `yaml:"min_quotes"`
	MinWorkarounds     int  `yaml:"min_workarounds"`
	MinBaselineSignals int  `yaml:"min_baseline_signals"`
	RequireConsent     bool `yaml:"require_consent"`
	TopPains           int  `yaml:"top_pains"`
}

// DefaultThresholds returns the stock targets.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSessions:        5,
		MinQuotes:          5,
		MinWorkarounds:     1,
		MinBaselineSignals: 2,
		RequireConsent:     true,
		TopPains:           5,
	}
}

// PainCount is a case-folded pain phrase and its frequency.
type PainCount struct {
	Pain  string `json:"pain"`
	Count int    `json:"count"`
}

// Threshold is the outcome of one sufficiency check.
type Threshold struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Have  int    `json:"have"`
	Want  int    `json:"want"`
	Pass  bool   `json:"pass"`
}

// Evidence aggregates the logged sessions of step 1-6.
type Evidence struct {
	Total           int            `json:"total"`
	Target          int            `json:"target"`
	ByKind          map[string]int `json:"byKind"`
	Unmapped        int            `json:"unmapped"`
	MappedPct       int            `json:"mappedPct"`
	AvgSeverity     float64        `json:"avgSeverity"`
	Quotes          int            `json:"quotes"`
	Workarounds     int            `json:"workarounds"`
	BaselineSignals int            `json:"baselineSignals"`
	ConsentObtained bool           `json:"consentObtained"`
	TopPains        []PainCount    `json:"topPains"`
	Checks          []Threshold    `json:"checks"`
}

// AggregateEvidence computes counts, averages and threshold checks over the
// sessions of p. The session target is the plan's own target when set.
func AggregateEvidence(p stepcodec.Step16, th Thresholds) Evidence {
	e := Evidence{
		Total:           len(p.Sessions),
		Target:          th.MinSessions,
		ByKind:          make(map[string]int),
		ConsentObtained: p.Consent.Obtained,
		TopPains:        []PainCount{},
	}
	if p.TargetSessions > 0 {
		e.Target = p.TargetSessions
	}
	for _, k := range stepcodec.SessionKinds() {
		e.ByKind[k] = 0
	}

	var (
		sevSum float64
		sevN   int
	)
	painIdx := make(map[string]int)
	for _, s := range p.Sessions {
		e.ByKind[s.Kind]++
		if len(s.MappedMetrics) == 0 {
			e.Unmapped++
		}
		if s.Severity010 != nil {
			sevSum += math.Max(0, math.Min(10, *s.Severity010))
			sevN++
		}
		e.Quotes += len(s.Quotes)
		if strings.TrimSpace(s.Workaround) != "" {
			e.Workarounds++
		}
		if strings.TrimSpace(s.BaselineSignal) != "" {
			e.BaselineSignals++
		}
		for _, pain := range s.Pains {
			key := strings.ToLower(strings.TrimSpace(pain))
			if key == "" {
				continue
			}
			if i, seen := painIdx[key]; seen {
				e.TopPains[i].Count++
				continue
			}
			painIdx[key] = len(e.TopPains)
			e.TopPains = append(e.TopPains, PainCount{Pain: key, Count: 1})
		}
	}

	if e.Total > 0 {
		e.MappedPct = int(math.Round(float64(e.Total-e.Unmapped) / float64(e.Total) * 100))
	}
	if sevN > 0 {
		e.AvgSeverity = math.Round(sevSum/float64(sevN)*10) / 10
	}

	// Stable sort keeps first-seen order among equal counts.
	slices.SortStableFunc(e.TopPains, func(a, b PainCount) int { return b.Count - a.Count })
	if th.TopPains > 0 && len(e.TopPains) > th.TopPains {
		e.TopPains = e.TopPains[:th.TopPains]
	}

	e.Checks = []Threshold{
		threshold("sessions", "Sessions logged", e.Total, e.Target),
		threshold("quotes", "Quotes captured", e.Quotes, th.MinQuotes),
		threshold("workarounds", "Workarounds recorded", e.Workarounds, th.MinWorkarounds),
		threshold("baseline", "Baseline signals", e.BaselineSignals, th.MinBaselineSignals),
	}
	if th.RequireConsent {
		c := Threshold{Key: "consent", Label: "Consent obtained", Want: 1, Pass: p.Consent.Obtained}
		if c.Pass {
			c.Have = 1
		}
		e.Checks = append(e.Checks, c)
	}
	return e
}

func threshold(key, label string, have, want int) Threshold {
	return Threshold{Key: key, Label: label, Have: have, Want: want, Pass: have >= want}
}

// Passed counts passing checks.
func (e Evidence) Passed() int {
	n := 0
	for _, c := range e.Checks {
		if c.Pass {
			n++
		}
	}
	return n
}
