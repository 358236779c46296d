package stepcodec

// Payload is the current-generation payload of one step.
type Payload interface {
	StepID() string
}

// Version discriminators of second-generation step schemas.
const (
	Step14Version  = "1.4-v2"
	Step16Version  = "1.6-v2"
	Step110Version = "1.10-v2"
)

// Step11 is the problem definition.
type Step11 struct {
	User    string `json:"user"`
	JTBD    string `json:"jtbd"`
	Pain    string `json:"pain"`
	Impact  string `json:"impact"`
	OneLine string `json:"oneLine"`
}

func (Step11) StepID() string { return "1-1" }

// Step12 maps stakeholders.
type Step12 struct {
	PrimaryUsers  string `json:"primaryUsers"`
	Buyers        string `json:"buyers"`
	Approvers     string `json:"approvers"`
	Influencers   string `json:"influencers"`
	Beneficiaries string `json:"beneficiaries"`
	Blockers      string `json:"blockers"`
	Notes         string `json:"notes"`
}

func (Step12) StepID() string { return "1-2" }

// Step13 captures workarounds and the status quo.
type Step13 struct {
	CurrentWorkflow     string `json:"currentWorkflow"`
	Workarounds         string `json:"workarounds"`
	WhyItPersists       string `json:"whyItPersists"`
	CostsAndRisks       string `json:"costsAndRisks"`
	ConstraintsSnapshot string `json:"constraintsSnapshot"`
}

func (Step13) StepID() string { return "1-3" }

// MetricSpec is a first-generation lead metric.
type MetricSpec struct {
	Name        string `json:"name"`
	Baseline    string `json:"baseline"`
	Target      string `json:"target"`
	HowMeasured string `json:"howMeasured"`
	Window      string `json:"window"`
}

// Step14V1 is the first generation of the measurable indicators step: two
// fixed metric slots.
type Step14V1 struct {
	LeadMetric1     MetricSpec `json:"leadMetric1"`
	LeadMetric2     MetricSpec `json:"leadMetric2"`
	Guardrails      string     `json:"guardrails"`
	MeasurementPlan string     `json:"measurementPlan"`
}

// LeadMetric is a second-generation lead metric with a stable id that
// evidence sessions map to.
type LeadMetric struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Baseline    string `json:"baseline"`
	Target      string `json:"target"`
	HowMeasured string `json:"howMeasured"`
	Window      string `json:"window"`
}

// Step14 is the current measurable indicators payload.
type Step14 struct {
	Version         string       `json:"version"`
	LeadMetrics     []LeadMetric `json:"leadMetrics"`
	Guardrails      string       `json:"guardrails"`
	MeasurementPlan string       `json:"measurementPlan"`
	Notes           string       `json:"notes"`
}

func (Step14) StepID() string { return "1-4" }

// Hypothesis is one disconfirming hypothesis.
type Hypothesis struct {
	Statement         string `json:"statement"`
	HowWrong          string `json:"howWrong"`
	TestPlan          string `json:"testPlan"`
	EvidenceToCollect string `json:"evidenceToCollect"`
}

// Step15 holds three disconfirming hypotheses.
type Step15 struct {
	H1 Hypothesis `json:"h1"`
	H2 Hypothesis `json:"h2"`
	H3 Hypothesis `json:"h3"`
}

func (Step15) StepID() string { return "1-5" }

// Validation methods and session kinds.
const (
	MethodInterviews  = "interviews"
	MethodObservation = "observation"
	MethodMixed       = "mixed"

	KindInterview   = "interview"
	KindObservation = "observation"
	KindArtifact    = "artifact"
)

var (
	methods      = []string{MethodInterviews, MethodObservation, MethodMixed}
	sessionKinds = []string{KindInterview, KindObservation, KindArtifact}
)

// SessionKinds returns the allowed session kinds in display order.
func SessionKinds() []string {
	return append([]string(nil), sessionKinds...)
}

// Step16V1 is the first generation of the validation step: a flat plan.
type Step16V1 struct {
	Method               string `json:"method"`
	TargetParticipants   string `json:"targetParticipants"`
	SamplingBox          string `json:"samplingBox"`
	ScriptOrProtocol     string `json:"scriptOrProtocol"`
	ConsentPrivacyNotes  string `json:"consentPrivacyNotes"`
	SchedulePlan         string `json:"schedulePlan"`
	DataCapturePlan      string `json:"dataCapturePlan"`
	WhatCountsAsPassFail string `json:"whatCountsAsPassFail"`
}

// Plan is the structured validation plan.
type Plan struct {
	Method             string `json:"method"`
	TargetParticipants string `json:"targetParticipants"`
	SamplingBox        string `json:"samplingBox"`
	Script             string `json:"script"`
	Schedule           string `json:"schedule"`
	DataCapture        string `json:"dataCapture"`
	DecisionRule       string `json:"decisionRule"`
}

// Consent records whether consent was obtained and how privacy is handled.
type Consent struct {
	Obtained bool   `json:"obtained"`
	Notes    string `json:"notes"`
}

// Session is one logged evidence record. A nil Severity010 means the
// stored rating could not be read; it is left out of averages.
type Session struct {
	ID             string   `json:"id"`
	Kind           string   `json:"kind"`
	Date           string   `json:"date"`
	Participant    string   `json:"participant"`
	Quotes         []string `json:"quotes"`
	Pains          []string `json:"pains"`
	Severity010    *float64 `json:"severity010"`
	Workaround     string   `json:"workaround"`
	BaselineSignal string   `json:"baselineSignal"`
	MappedMetrics  []string `json:"mappedMetrics"`
	Notes          string   `json:"notes"`
}

// Step16 is the current validation payload: plan plus logged sessions.
type Step16 struct {
	Version        string    `json:"version"`
	Plan           Plan      `json:"plan"`
	Consent        Consent   `json:"consent"`
	TargetSessions int       `json:"targetSessions"`
	Sessions       []Session `json:"sessions"`
}

func (Step16) StepID() string { return "1-6" }

// Step17 is the before/after and solution hypothesis.
type Step17 struct {
	BeforeState          string `json:"beforeState"`
	AfterState           string `json:"afterState"`
	SolutionHypothesis   string `json:"solutionHypothesis"`
	WorkflowChange       string `json:"workflowChange"`
	RisksAndFailureModes string `json:"risksAndFailureModes"`
}

func (Step17) StepID() string { return "1-7" }

// Step18 scans alternatives.
type Step18 struct {
	DoNothing            string `json:"doNothing"`
	DirectCompetitors    string `json:"directCompetitors"`
	AdjacentAlternatives string `json:"adjacentAlternatives"`
	InternalAlternatives string `json:"internalAlternatives"`
	WhyYouWin            string `json:"whyYouWin"`
}

func (Step18) StepID() string { return "1-8" }

// Step19 is the value hook.
type Step19 struct {
	ValueHook    string `json:"valueHook"`
	WhoCares     string `json:"whoCares"`
	MetricTied   string `json:"metricTied"`
	ProofPoint   string `json:"proofPoint"`
	CallToAction string `json:"callToAction"`
}

func (Step19) StepID() string { return "1-9" }

// Gate decisions.
const (
	DecisionGo           = "go"
	DecisionOneIteration = "one-iteration"
	DecisionStop         = "stop"

	// DefaultDecision replaces any stored value outside the domain.
	DefaultDecision = DecisionOneIteration

	legacyDecisionIterate = "iterate"
)

var decisions = []string{DecisionGo, DecisionOneIteration, DecisionStop}

// CoerceDecision maps v into {go, one-iteration, stop}.
func CoerceDecision(v string) string {
	if v == legacyDecisionIterate {
		return DecisionOneIteration
	}
	return oneOf(v, decisions, DefaultDecision)
}

// Checklist marks which earlier steps have usable evidence.
type Checklist struct {
	Step11 bool `json:"step11"`
	Step12 bool `json:"step12"`
	Step13 bool `json:"step13"`
	Step14 bool `json:"step14"`
	Step15 bool `json:"step15"`
	Step16 bool `json:"step16"`
	Step17 bool `json:"step17"`
	Step18 bool `json:"step18"`
	Step19 bool `json:"step19"`
}

// Any reports whether any entry is checked.
func (c Checklist) Any() bool {
	return c != Checklist{}
}

// AutoEvidence holds snapshot text inserted from steps 1-4 and 1-6.
type AutoEvidence struct {
	Step14 string `json:"step14"`
	Step16 string `json:"step16"`
}

// Step110V1 is the first generation of the gate review.
type Step110V1 struct {
	EvidenceQuality    int       `json:"evidenceQuality"`
	Severity           int       `json:"severity"`
	WillingnessToPay   int       `json:"willingnessToPay"`
	Feasibility        int       `json:"feasibility"`
	Differentiation    int       `json:"differentiation"`
	ArtifactsChecklist Checklist `json:"artifactsChecklist"`
	Decision           string    `json:"decision"`
	Rationale          string    `json:"rationale"`
	NextActions        string    `json:"nextActions"`
}

// Step110 is the current gate review payload.
type Step110 struct {
	Version            string       `json:"version"`
	EvidenceQuality    int          `json:"evidenceQuality"`
	Severity           int          `json:"severity"`
	WillingnessToPay   int          `json:"willingnessToPay"`
	Feasibility        int          `json:"feasibility"`
	Differentiation    int          `json:"differentiation"`
	ArtifactsChecklist Checklist    `json:"artifactsChecklist"`
	Decision           string       `json:"decision"`
	Rationale          string       `json:"rationale"`
	NextActions        string       `json:"nextActions"`
	AutoEvidence       AutoEvidence `json:"autoEvidence"`
}

func (Step110) StepID() string { return "1-10" }

// Scores returns the five sub-scores in rubric order.
func (s Step110) Scores() [5]int {
	return [5]int{s.EvidenceQuality, s.Severity, s.WillingnessToPay, s.Feasibility, s.Differentiation}
}

// Total is the 0..50 sum of the sub-scores.
func (s Step110) Total() int {
	total := 0
	for _, v := range s.Scores() {
		total += v
	}
	return total
}
