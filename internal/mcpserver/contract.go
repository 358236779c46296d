package mcpserver

// DossierFormatContract describes the stored dossier document and the step
// payloads that LLM consumers should follow when writing steps or importing.
const DossierFormatContract = `# Research Dossier Format Contract

A dossier is one JSON document holding the ten steps of the problem
validation workflow.

## Document

` + "```" + `json
{
  "version": "rhs-dossier-v1",
  "id": "7c1e1f9a-2d8b-4a57-9b0e-3c2f6a1d4e55",
  "createdAt": "2025-03-01T09:00:00.000Z",
  "updatedAt": "2025-03-04T16:20:11.532Z",
  "lastVisitedStepId": "1-4",
  "meta": {
    "projectName": "Referral triage",
    "organisation": "",
    "primaryUser": "",
    "setting": "",
    "oneLineProblem": "",
    "notes": ""
  },
  "steps": {
    "1-1": { "user": "Triage nurse", "updatedAt": "2025-03-02T10:00:00.000Z" }
  }
}
` + "```" + `

## Rules

1. ` + "`" + `id` + "`" + `, ` + "`" + `createdAt` + "`" + ` and ` + "`" + `updatedAt` + "`" + ` are required strings. Timestamps are
   ISO-8601 UTC with milliseconds.
2. ` + "`" + `meta` + "`" + ` and ` + "`" + `steps` + "`" + `, when present, are objects. Missing meta fields become "".
3. Step keys are ` + "`" + `1-1` + "`" + ` through ` + "`" + `1-10` + "`" + `. Unknown keys are preserved but ignored.
4. Each step value is the payload object with an ` + "`" + `updatedAt` + "`" + ` stamp added by the
   server. Do not set it yourself.
5. Writing step 1-1 with a non-blank ` + "`" + `oneLine` + "`" + ` copies it into
   ` + "`" + `meta.oneLineProblem` + "`" + `.

## Steps

| Step | Title | Fields |
|------|-------|--------|
| 1-1 | Problem Definition | user, jtbd, pain, impact, oneLine |
| 1-2 | Stakeholder & Owner/Payer Map | primaryUsers, buyers, approvers, influencers, beneficiaries, blockers, notes |
| 1-3 | Workarounds & Status Quo | currentWorkflow, workarounds, whyItPersists, costsAndRisks, constraintsSnapshot |
| 1-4 | Measurable Indicators | version "1.4-v2", leadMetrics[] {id, name, baseline, target, howMeasured, window}, guardrails, measurementPlan, notes |
| 1-5 | Disconfirming Hypotheses | h1, h2, h3 each {statement, howWrong, testPlan, evidenceToCollect} |
| 1-6 | Problem Validation Interviews/Observation | version "1.6-v2", plan {method, targetParticipants, samplingBox, script, schedule, dataCapture, decisionRule}, consent {obtained, notes}, targetSessions, sessions[] |
| 1-7 | Before/After & Solution Hypothesis | beforeState, afterState, solutionHypothesis, workflowChange, risksAndFailureModes |
| 1-8 | Alternatives Scan | doNothing, directCompetitors, adjacentAlternatives, internalAlternatives, whyYouWin |
| 1-9 | Value Hook | valueHook, whoCares, metricTied, proofPoint, callToAction |
| 1-10 | Gate Review | version "1.10-v2", evidenceQuality, severity, willingnessToPay, feasibility, differentiation (0-10 each), artifactsChecklist {step11..step19}, decision, rationale, nextActions, autoEvidence {step14, step16} |

A 1-6 session is {id, kind, date, participant, quotes[], pains[],
severity010 (0-10), workaround, baselineSignal, mappedMetrics[], notes}.
` + "`" + `kind` + "`" + ` is one of interview, observation, artifact. ` + "`" + `plan.method` + "`" + ` is one of
interviews, observation, mixed. ` + "`" + `decision` + "`" + ` is one of go, one-iteration, stop.

## Older generations

Payloads without a ` + "`" + `version` + "`" + ` field are read as the first generation and
converted on write:

- 1-4: ` + "`" + `leadMetric1` + "`" + ` / ` + "`" + `leadMetric2` + "`" + ` (a name string or a metric object).
- 1-6: flat plan fields (` + "`" + `scriptOrProtocol` + "`" + `, ` + "`" + `consentPrivacyNotes` + "`" + `, ...).
- 1-10: scores, checklist and decision without ` + "`" + `autoEvidence` + "`" + `. "iterate" means one-iteration.

An unrecognised ` + "`" + `version` + "`" + ` is rejected.

## Snapshots

Text between ` + "`" + `[[auto:1.4]]` + "`" + ` ... ` + "`" + `[[/auto:1.4]]` + "`" + ` and ` + "`" + `[[auto:1.6]]` + "`" + ` ... ` + "`" + `[[/auto:1.6]]` + "`" + `
in ` + "`" + `autoEvidence` + "`" + ` is generated by the server. Text outside the delimiters is
yours and is kept when a snapshot is refreshed.
`
