package model

import "time"

// EvidenceArticle is one news article retrieved from a search provider.
type EvidenceArticle struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Snippet        string    `json:"snippet"`
	SourceProvider string    `json:"source_provider"`       // Which search API returned it
	SourceName     string    `json:"source_name,omitempty"` // Publisher name as reported by the API
	PublishedAt    time.Time `json:"published_at"`          // Zero when the provider omitted it
	Content        string    `json:"content,omitempty"`     // Full page text when enrichment ran
}

// FilteredEvidenceSet is the ranked, URL-deduplicated evidence for one claim.
// Invariant: no two articles share a normalized URL.
type FilteredEvidenceSet struct {
	ClaimID     string            `json:"claim_id"`
	Articles    []EvidenceArticle `json:"articles"`
	Diagnostics []string          `json:"diagnostics,omitempty"` // Recoverable provider failures, for auditability
}

// Empty reports whether the set carries no usable evidence.
func (s *FilteredEvidenceSet) Empty() bool {
	return s == nil || len(s.Articles) == 0
}
