package model

// Verdict is the adjudication label for a claim.
type Verdict string

const (
	VerdictProved  Verdict = "Proved"  // Evidence clearly supports the claim
	VerdictRefuted Verdict = "Refuted" // Evidence directly contradicts the claim
	VerdictUnclear Verdict = "Unclear" // Evidence is missing or inconclusive
)

// Valid reports whether v is one of the three known labels.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictProved, VerdictRefuted, VerdictUnclear:
		return true
	}
	return false
}

// ParseFailureRationale is the sentinel rationale recorded when the LLM
// response could not be mapped to a verdict.
const ParseFailureRationale = "parse failure"

// VerdictRecord is the terminal verification result for one claim.
// Produced exactly once per claim and never revised within a run.
type VerdictRecord struct {
	ClaimID    string   `json:"claim_id"`
	Verdict    Verdict  `json:"verdict"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"` // Always in [0,1]
	Sources    []string `json:"sources,omitempty"`
	Diagnostic string   `json:"diagnostic,omitempty"` // Set when the verdict degraded to a fallback
}
