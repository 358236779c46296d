package dossier

import "slices"

// FirstStepID is the step a new dossier resumes at.
const FirstStepID = "1-1"

// Step is one entry of the fixed questionnaire.
type Step struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Sprint string `json:"sprint"`
}

// Sprint groups consecutive steps.
type Sprint struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

var steps = []Step{
	{ID: "1-1", Title: "Problem Definition", Sprint: "A"},
	{ID: "1-2", Title: "Stakeholder & Owner/Payer Map", Sprint: "A"},
	{ID: "1-3", Title: "Workarounds & Status Quo", Sprint: "A"},
	{ID: "1-4", Title: "Measurable Indicators", Sprint: "B"},
	{ID: "1-5", Title: "Disconfirming Hypotheses", Sprint: "B"},
	{ID: "1-6", Title: "Problem Validation Interviews/Observation", Sprint: "B"},
	{ID: "1-7", Title: "Before/After & Solution Hypothesis", Sprint: "C"},
	{ID: "1-8", Title: "Alternatives Scan", Sprint: "C"},
	{ID: "1-9", Title: "Value Hook", Sprint: "C"},
	{ID: "1-10", Title: "Gate Review", Sprint: "C"},
}

var sprints = []Sprint{
	{ID: "A", Title: "Define & Map", Steps: []string{"1-1", "1-2", "1-3"}},
	{ID: "B", Title: "Quantify & Test", Steps: []string{"1-4", "1-5", "1-6"}},
	{ID: "C", Title: "Synthesize & Decide", Steps: []string{"1-7", "1-8", "1-9", "1-10"}},
}

// Steps returns the catalog in questionnaire order.
func Steps() []Step {
	return slices.Clone(steps)
}

// StepIDs returns every step id in questionnaire order.
func StepIDs() []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}

// Sprints returns the sprint grouping.
func Sprints() []Sprint {
	out := make([]Sprint, len(sprints))
	for i, s := range sprints {
		out[i] = Sprint{ID: s.ID, Title: s.Title, Steps: slices.Clone(s.Steps)}
	}
	return out
}

func indexOf(id string) int {
	return slices.IndexFunc(steps, func(s Step) bool { return s.ID == id })
}

// LookupStep returns the catalog entry for id.
func LookupStep(id string) (Step, bool) {
	i := indexOf(id)
	if i < 0 {
		return Step{}, false
	}
	return steps[i], true
}

// KnownStep reports whether id names a catalog step.
func KnownStep(id string) bool {
	return indexOf(id) >= 0
}

// PrevStep returns the step before id, if any.
func PrevStep(id string) (string, bool) {
	i := indexOf(id)
	if i <= 0 {
		return "", false
	}
	return steps[i-1].ID, true
}

// NextStep returns the step after id, if any.
func NextStep(id string) (string, bool) {
	i := indexOf(id)
	if i < 0 || i >= len(steps)-1 {
		return "", false
	}
	return steps[i+1].ID, true
}
