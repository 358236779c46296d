package summary

import (
	"fmt"
	"strings"

	"github.com/starford/dossier/internal/stepcodec"
)

// Snapshot tags identify inserted blocks.
const (
	TagMetrics  = "1.4"
	TagEvidence = "1.6"
)

func openTag(tag string) string  { return "[[auto:" + tag + "]]" }
func closeTag(tag string) string { return "[[/auto:" + tag + "]]" }

// InsertTagged places block between the delimiters of tag inside text.
// An existing block with the same tag is replaced; otherwise the block is
// appended after a blank line.
func InsertTagged(text, tag, block string) string {
	wrapped := openTag(tag) + "\n" + strings.TrimSpace(block) + "\n" + closeTag(tag)

	start := strings.Index(text, openTag(tag))
	if start >= 0 {
		if rel := strings.Index(text[start:], closeTag(tag)); rel >= 0 {
			end := start + rel + len(closeTag(tag))
			return text[:start] + wrapped + text[end:]
		}
	}
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return wrapped
	}
	return trimmed + "\n\n" + wrapped
}

// ExtractTagged returns the content of the tag block in text.
func ExtractTagged(text, tag string) (string, bool) {
	start := strings.Index(text, openTag(tag))
	if start < 0 {
		return "", false
	}
	body := text[start+len(openTag(tag)):]
	end := strings.Index(body, closeTag(tag))
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

// CountTagged counts opening delimiters of tag in text.
func CountTagged(text, tag string) int {
	return strings.Count(text, openTag(tag))
}

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "—"
	}
	return s
}

func checkbox(pass bool) string {
	if pass {
		return "[x]"
	}
	return "[ ]"
}

// RenderEvidence formats an evidence aggregate as stable plain text.
func RenderEvidence(e Evidence) string {
	var b strings.Builder
	b.WriteString("Evidence snapshot (1.6)\n")
	fmt.Fprintf(&b, "Sessions: %d of %d target", e.Total, e.Target)
	var kinds []string
	for _, k := range stepcodec.SessionKinds() {
		kinds = append(kinds, fmt.Sprintf("%s %d", k, e.ByKind[k]))
	}
	fmt.Fprintf(&b, " (%s)\n", strings.Join(kinds, ", "))
	fmt.Fprintf(&b, "Mapped to metrics: %d%% (%d unmapped)\n", e.MappedPct, e.Unmapped)
	fmt.Fprintf(&b, "Avg severity: %.1f / 10\n", e.AvgSeverity)
	fmt.Fprintf(&b, "Quotes: %d, workarounds: %d, baseline signals: %d\n", e.Quotes, e.Workarounds, e.BaselineSignals)
	b.WriteString("Top pains: " + renderPains(e.TopPains) + "\n")
	b.WriteString("Checks:")
	for _, c := range e.Checks {
		fmt.Fprintf(&b, "\n- %s %s (%d/%d)", checkbox(c.Pass), c.Label, c.Have, c.Want)
	}
	return b.String()
}

func renderPains(pains []PainCount) string {
	if len(pains) == 0 {
		return "—"
	}
	parts := make([]string, len(pains))
	for i, p := range pains {
		parts[i] = fmt.Sprintf("%s (%d)", p.Pain, p.Count)
	}
	return strings.Join(parts, ", ")
}

// RenderMetrics formats the lead metrics of step 1-4 as stable plain text.
func RenderMetrics(p stepcodec.Step14) string {
	var b strings.Builder
	b.WriteString("Lead metrics snapshot (1.4)")
	if len(p.LeadMetrics) == 0 {
		b.WriteString("\n—")
	}
	for _, m := range p.LeadMetrics {
		fmt.Fprintf(&b, "\n- %s: %s | baseline: %s | target: %s | window: %s | measured by: %s",
			m.ID, orDash(m.Name), orDash(m.Baseline), orDash(m.Target), orDash(m.Window), orDash(m.HowMeasured))
	}
	fmt.Fprintf(&b, "\nGuardrails: %s", orDash(p.Guardrails))
	return b.String()
}
