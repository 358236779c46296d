package summary

import (
	"fmt"
	"strings"

	"github.com/starford/dossier/internal/dossier"
)

// PrintTimeLayout renders timestamps in printed summaries.
const PrintTimeLayout = "2006-01-02 15:04 UTC"

func printTime(s string) string {
	t, ok := dossier.ParseTime(s)
	if !ok {
		return s
	}
	return t.UTC().Format(PrintTimeLayout)
}

// PrintSummary renders the plain-text dossier summary used for printing
// and copying. The output depends only on d.
func (x *Extractor) PrintSummary(d *dossier.Dossier) string {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("Dossier summary")
	add("Project: %s", d.DisplayName())
	add("Dossier ID: %s", d.ID)
	add("Updated: %s", printTime(d.UpdatedAt))
	add("")

	add("1.1 Problem")
	add("%s", orDash(d.Meta.OneLineProblem))
	add("")

	add("1.4 Lead metrics (names)")
	for i, name := range x.LeadMetrics(d) {
		add("- Lead metric %d: %s", i+1, orDash(name))
	}
	add("")

	add("1.6 Evidence (live counts)")
	if e, ok := x.Evidence(d); ok {
		add("- Sessions: %d", e.Total)
		add("- Mapped: %d%%", e.MappedPct)
		add("- Avg severity: %.1f", e.AvgSeverity)
		add("- Top pains: %s", renderPains(e.TopPains))
	} else {
		add("—")
	}
	add("")

	g := x.Gate(d)
	add("1.10 Gate decision")
	add("Decision: %s · Score: %d/%d", g.Label, g.Total, g.Max)
	if g.UpdatedAt != "" {
		add("Last updated: %s", printTime(g.UpdatedAt))
	}
	add("")
	add("Rationale:")
	add("%s", orDash(g.Rationale))
	add("")
	add("Next actions:")
	add("%s", orDash(g.NextActions))
	add("")

	add("1.10 Saved evidence snapshots")
	add("")
	add("Snapshot from 1.4:")
	add("%s", orDash(g.Auto14))
	add("")
	add("Snapshot from 1.6:")
	add("%s", orDash(g.Auto16))

	return strings.Join(lines, "\n")
}
