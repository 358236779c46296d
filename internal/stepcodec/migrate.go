package stepcodec

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/starford/dossier/internal/apperr"
)

var (
	// ErrUnknownGeneration is returned for a payload whose version tag
	// matches no known generation of its step.
	ErrUnknownGeneration = errors.New("stepcodec: unknown payload generation")
	// ErrNotObject is returned for a payload that is not a JSON object.
	ErrNotObject = errors.New("stepcodec: payload is not an object")
)

// DefaultTargetSessions is the evidence session target of a fresh plan.
const DefaultTargetSessions = 5

// schema is the registered generation history of one step. migrate maps
// every known generation to the current one and must be idempotent.
type schema struct {
	current  string
	defaults func() Payload
	migrate  func(o object) (Payload, error)
}

var registry = map[string]schema{
	"1-1":  {defaults: func() Payload { return Step11{} }, migrate: single(decode11)},
	"1-2":  {defaults: func() Payload { return Step12{} }, migrate: single(decode12)},
	"1-3":  {defaults: func() Payload { return Step13{} }, migrate: single(decode13)},
	"1-4":  {current: Step14Version, defaults: func() Payload { return defaultStep14() }, migrate: migrate14},
	"1-5":  {defaults: func() Payload { return Step15{} }, migrate: single(decode15)},
	"1-6":  {current: Step16Version, defaults: func() Payload { return defaultStep16() }, migrate: migrate16},
	"1-7":  {defaults: func() Payload { return Step17{} }, migrate: single(decode17)},
	"1-8":  {defaults: func() Payload { return Step18{} }, migrate: single(decode18)},
	"1-9":  {defaults: func() Payload { return Step19{} }, migrate: single(decode19)},
	"1-10": {current: Step110Version, defaults: func() Payload { return defaultStep110() }, migrate: migrate110},
}

// CurrentVersion returns the version tag of the current generation of
// stepID, or "" for single-generation steps.
func CurrentVersion(stepID string) string {
	return registry[stepID].current
}

// Default returns the untouched payload of stepID.
func Default(stepID string) (Payload, bool) {
	s, ok := registry[stepID]
	if !ok {
		return nil, false
	}
	return s.defaults(), true
}

// Migrate converts a decoded stored payload of stepID to the current
// generation. Applying it to its own output is a no-op.
func Migrate(stepID string, v any) (Payload, error) {
	s, ok := registry[stepID]
	if !ok {
		return nil, fmt.Errorf("stepcodec: step %q: %w", stepID, apperr.ErrUnknownStep)
	}
	o, ok := asObject(v)
	if !ok {
		return nil, ErrNotObject
	}
	return s.migrate(o)
}

func single[T Payload](decode func(object) T) func(object) (Payload, error) {
	return func(o object) (Payload, error) {
		return decode(o), nil
	}
}

func unknownGeneration(tag string) error {
	return fmt.Errorf("%w: %q", ErrUnknownGeneration, tag)
}

func decode11(o object) Step11 {
	return Step11{
		User:    o.str("user"),
		JTBD:    o.str("jtbd"),
		Pain:    o.str("pain"),
		Impact:  o.str("impact"),
		OneLine: o.str("oneLine"),
	}
}

func decode12(o object) Step12 {
	return Step12{
		PrimaryUsers:  o.str("primaryUsers"),
		Buyers:        o.str("buyers"),
		Approvers:     o.str("approvers"),
		Influencers:   o.str("influencers"),
		Beneficiaries: o.str("beneficiaries"),
		Blockers:      o.str("blockers"),
		Notes:         o.str("notes"),
	}
}

func decode13(o object) Step13 {
	return Step13{
		CurrentWorkflow:     o.str("currentWorkflow"),
		Workarounds:         o.str("workarounds"),
		WhyItPersists:       o.str("whyItPersists"),
		CostsAndRisks:       o.str("costsAndRisks"),
		ConstraintsSnapshot: o.str("constraintsSnapshot"),
	}
}

func decodeHypothesis(o object) Hypothesis {
	return Hypothesis{
		Statement:         o.str("statement"),
		HowWrong:          o.str("howWrong"),
		TestPlan:          o.str("testPlan"),
		EvidenceToCollect: o.str("evidenceToCollect"),
	}
}

func decode15(o object) Step15 {
	return Step15{
		H1: decodeHypothesis(o.obj("h1")),
		H2: decodeHypothesis(o.obj("h2")),
		H3: decodeHypothesis(o.obj("h3")),
	}
}

func decode17(o object) Step17 {
	return Step17{
		BeforeState:          o.str("beforeState"),
		AfterState:           o.str("afterState"),
		SolutionHypothesis:   o.str("solutionHypothesis"),
		WorkflowChange:       o.str("workflowChange"),
		RisksAndFailureModes: o.str("risksAndFailureModes"),
	}
}

func decode18(o object) Step18 {
	return Step18{
		DoNothing:            o.str("doNothing"),
		DirectCompetitors:    o.str("directCompetitors"),
		AdjacentAlternatives: o.str("adjacentAlternatives"),
		InternalAlternatives: o.str("internalAlternatives"),
		WhyYouWin:            o.str("whyYouWin"),
	}
}

func decode19(o object) Step19 {
	return Step19{
		ValueHook:    o.str("valueHook"),
		WhoCares:     o.str("whoCares"),
		MetricTied:   o.str("metricTied"),
		ProofPoint:   o.str("proofPoint"),
		CallToAction: o.str("callToAction"),
	}
}

// --- 1-4 ---

func defaultStep14() Step14 {
	return Step14{
		Version:     Step14Version,
		LeadMetrics: []LeadMetric{{ID: "m1"}, {ID: "m2"}},
	}
}

func migrate14(o object) (Payload, error) {
	switch tag := o.str("version"); tag {
	case Step14Version:
		return decode14(o), nil
	case "":
		return upgrade14(decode14V1(o)), nil
	default:
		return nil, unknownGeneration(tag)
	}
}

// metricSpec reads a first-generation metric, which may be a plain string
// naming the metric.
func metricSpec(v any) MetricSpec {
	if s, ok := v.(string); ok {
		return MetricSpec{Name: s}
	}
	o, _ := asObject(v)
	return MetricSpec{
		Name:        o.str("name"),
		Baseline:    o.str("baseline"),
		Target:      o.str("target"),
		HowMeasured: o.str("howMeasured"),
		Window:      o.str("window"),
	}
}

func decode14V1(o object) Step14V1 {
	return Step14V1{
		LeadMetric1:     metricSpec(o["leadMetric1"]),
		LeadMetric2:     metricSpec(o["leadMetric2"]),
		Guardrails:      o.str("guardrails"),
		MeasurementPlan: o.str("measurementPlan"),
	}
}

func upgrade14(v Step14V1) Step14 {
	lead := func(id string, m MetricSpec) LeadMetric {
		return LeadMetric{
			ID:          id,
			Name:        m.Name,
			Baseline:    m.Baseline,
			Target:      m.Target,
			HowMeasured: m.HowMeasured,
			Window:      m.Window,
		}
	}
	return Step14{
		Version:         Step14Version,
		LeadMetrics:     []LeadMetric{lead("m1", v.LeadMetric1), lead("m2", v.LeadMetric2)},
		Guardrails:      v.Guardrails,
		MeasurementPlan: v.MeasurementPlan,
	}
}

func decode14(o object) Step14 {
	out := Step14{
		Version:         Step14Version,
		Guardrails:      o.str("guardrails"),
		MeasurementPlan: o.str("measurementPlan"),
		Notes:           o.str("notes"),
	}
	raw, isList := o["leadMetrics"].([]any)
	if !isList {
		out.LeadMetrics = defaultStep14().LeadMetrics
		return out
	}
	out.LeadMetrics = make([]LeadMetric, 0, len(raw))
	for i, item := range raw {
		m := metricSpec(item)
		id := ""
		if mo, ok := asObject(item); ok {
			id = strings.TrimSpace(mo.str("id"))
		}
		if id == "" {
			id = fmt.Sprintf("m%d", i+1)
		}
		out.LeadMetrics = append(out.LeadMetrics, LeadMetric{
			ID:          id,
			Name:        m.Name,
			Baseline:    m.Baseline,
			Target:      m.Target,
			HowMeasured: m.HowMeasured,
			Window:      m.Window,
		})
	}
	return out
}

// --- 1-6 ---

func defaultStep16() Step16 {
	return Step16{
		Version:        Step16Version,
		Plan:           Plan{Method: MethodMixed},
		TargetSessions: DefaultTargetSessions,
		Sessions:       []Session{},
	}
}

func migrate16(o object) (Payload, error) {
	switch tag := o.str("version"); tag {
	case Step16Version:
		return decode16(o), nil
	case "":
		return upgrade16(decode16V1(o)), nil
	default:
		return nil, unknownGeneration(tag)
	}
}

func decode16V1(o object) Step16V1 {
	return Step16V1{
		Method:               oneOf(o.str("method"), methods, MethodMixed),
		TargetParticipants:   o.str("targetParticipants"),
		SamplingBox:          o.str("samplingBox"),
		ScriptOrProtocol:     o.str("scriptOrProtocol"),
		ConsentPrivacyNotes:  o.str("consentPrivacyNotes"),
		SchedulePlan:         o.str("schedulePlan"),
		DataCapturePlan:      o.str("dataCapturePlan"),
		WhatCountsAsPassFail: o.str("whatCountsAsPassFail"),
	}
}

func upgrade16(v Step16V1) Step16 {
	out := defaultStep16()
	out.Plan = Plan{
		Method:             v.Method,
		TargetParticipants: v.TargetParticipants,
		SamplingBox:        v.SamplingBox,
		Script:             v.ScriptOrProtocol,
		Schedule:           v.SchedulePlan,
		DataCapture:        v.DataCapturePlan,
		DecisionRule:       v.WhatCountsAsPassFail,
	}
	out.Consent.Notes = v.ConsentPrivacyNotes
	return out
}

func decode16(o object) Step16 {
	plan := o.obj("plan")
	consent := o.obj("consent")
	out := Step16{
		Version: Step16Version,
		Plan: Plan{
			Method:             oneOf(plan.str("method"), methods, MethodMixed),
			TargetParticipants: plan.str("targetParticipants"),
			SamplingBox:        plan.str("samplingBox"),
			Script:             plan.str("script"),
			Schedule:           plan.str("schedule"),
			DataCapture:        plan.str("dataCapture"),
			DecisionRule:       plan.str("decisionRule"),
		},
		Consent: Consent{
			Obtained: consent.boolean("obtained"),
			Notes:    consent.str("notes"),
		},
		TargetSessions: DefaultTargetSessions,
		Sessions:       []Session{},
	}
	if o.has("targetSessions") {
		out.TargetSessions = int(math.Round(math.Max(0, o.num("targetSessions"))))
	}
	for i, item := range o.list("sessions") {
		so, ok := asObject(item)
		if !ok {
			continue
		}
		out.Sessions = append(out.Sessions, decodeSession(i, so))
	}
	return out
}

// decodeSession normalizes one session. Early second-generation sessions
// carried pain1..pain3 and a single quote; they are folded into the lists.
func decodeSession(i int, o object) Session {
	s := Session{
		ID:             strings.TrimSpace(o.str("id")),
		Kind:           oneOf(o.str("kind"), sessionKinds, KindInterview),
		Date:           o.str("date"),
		Participant:    o.str("participant"),
		Quotes:         o.strs("quotes"),
		Pains:          o.strs("pains"),
		Workaround:     o.str("workaround"),
		BaselineSignal: o.str("baselineSignal"),
		MappedMetrics:  o.strs("mappedMetrics"),
		Notes:          o.str("notes"),
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("s%d", i+1)
	}
	if sev, ok := o.rating("severity010"); ok {
		sev = clamp(sev, 0, 10)
		s.Severity010 = &sev
	}
	if q := strings.TrimSpace(o.str("quote")); q != "" && !slices.Contains(s.Quotes, q) {
		s.Quotes = append(s.Quotes, q)
	}
	for _, k := range []string{"pain1", "pain2", "pain3"} {
		if p := strings.TrimSpace(o.str(k)); p != "" {
			s.Pains = append(s.Pains, p)
		}
	}
	return s
}

// --- 1-10 ---

func defaultStep110() Step110 {
	return Step110{Version: Step110Version, Decision: DefaultDecision}
}

func migrate110(o object) (Payload, error) {
	// The first generation differs only in its decision domain
	// (go|iterate|stop), which upgrade110 coerces.
	switch tag := o.str("version"); tag {
	case Step110Version, "":
		return decode110(o), nil
	default:
		return nil, unknownGeneration(tag)
	}
}

func decodeChecklist(o object) Checklist {
	return Checklist{
		Step11: o.boolean("step11"),
		Step12: o.boolean("step12"),
		Step13: o.boolean("step13"),
		Step14: o.boolean("step14"),
		Step15: o.boolean("step15"),
		Step16: o.boolean("step16"),
		Step17: o.boolean("step17"),
		Step18: o.boolean("step18"),
		Step19: o.boolean("step19"),
	}
}

func decodeAutoEvidence(o object) AutoEvidence {
	return AutoEvidence{Step14: o.str("step14"), Step16: o.str("step16")}
}

func decode110V1(o object) Step110V1 {
	return Step110V1{
		EvidenceQuality:    o.score("evidenceQuality", 10),
		Severity:           o.score("severity", 10),
		WillingnessToPay:   o.score("willingnessToPay", 10),
		Feasibility:        o.score("feasibility", 10),
		Differentiation:    o.score("differentiation", 10),
		ArtifactsChecklist: decodeChecklist(o.obj("artifactsChecklist")),
		Decision:           o.str("decision"),
		Rationale:          o.str("rationale"),
		NextActions:        o.str("nextActions"),
	}
}

func upgrade110(v Step110V1) Step110 {
	return Step110{
		Version:            Step110Version,
		EvidenceQuality:    v.EvidenceQuality,
		Severity:           v.Severity,
		WillingnessToPay:   v.WillingnessToPay,
		Feasibility:        v.Feasibility,
		Differentiation:    v.Differentiation,
		ArtifactsChecklist: v.ArtifactsChecklist,
		Decision:           CoerceDecision(v.Decision),
		Rationale:          v.Rationale,
		NextActions:        v.NextActions,
	}
}

func decode110(o object) Step110 {
	out := upgrade110(decode110V1(o))
	out.AutoEvidence = decodeAutoEvidence(o.obj("autoEvidence"))
	return out
}
