package model

// Claim represents a single factual assertion extracted from an article.
// Claims are immutable after extraction and scoped to one pipeline run.
type Claim struct {
	ID               string `json:"id"`                          // Unique within a run (claim-001, claim-002, ...)
	Text             string `json:"text"`                        // The factual statement itself
	SourceSpan       string `json:"source_span,omitempty"`       // Originating article excerpt, if known
	IncidentCategory string `json:"incident_category,omitempty"` // Category of the incident the claim belongs to
	IncidentSummary  string `json:"incident_summary,omitempty"`  // Summary of the incident the claim belongs to
	SearchStatement  string `json:"search_statement,omitempty"`  // " OR "-joined search queries from extraction
	Date             string `json:"date,omitempty"`              // Date mentioned in the claim, if any
	Place            string `json:"place,omitempty"`             // Place mentioned in the claim, if any
}

// Incident groups related facts that describe one coherent event.
// This mirrors the structured output requested from the LLM.
type Incident struct {
	Summary         string `json:"incident_summary"`
	Category        string `json:"incident_category,omitempty"`
	SearchStatement string `json:"search_statement"`
	Facts           []Fact `json:"facts"`
}

// Fact is a single validatable statement inside an incident.
type Fact struct {
	Statement string  `json:"statement"`
	Date      *string `json:"date"`
	Place     *string `json:"place"`
}

// SearchQuery is one search-engine query derived from a claim.
// Many queries may map to the same claim.
type SearchQuery struct {
	ClaimID      string `json:"claim_id"`
	Query        string `json:"query_string"`
	ProviderHint string `json:"provider_hint,omitempty"` // Empty means all providers
	Refined      bool   `json:"refined,omitempty"`       // Whether the LLM reworded this query
}
