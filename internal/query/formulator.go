// Package query derives search queries from claims, with an LLM refinement
// step that can never block the pipeline: refinement failures fall back to
// a deterministic query built from the claim text.
package query

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/ppiankov/factweave/internal/llm"
	"github.com/ppiankov/factweave/internal/model"
)

// fallbackMaxTokens caps the deterministic fallback query length.
const fallbackMaxTokens = 12

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "their": true, "this": true,
	"to": true, "was": true, "were": true, "with": true, "had": true,
}

const refineSystemPrompt = `You rewrite search queries for a news search API. Given a factual claim and draft queries, return improved queries that maximize recall without changing the subject of the claim.

Return a JSON object: {"queries": ["...", "..."]}. Keep each query under 12 words. Do not add quotes or boolean operators.`

// Formulator converts each claim into one or more search queries.
type Formulator struct {
	provider   llm.Provider // nil disables refinement
	maxQueries int
}

// NewFormulator creates a new query formulator. A nil provider disables
// LLM refinement entirely; only deterministic queries are produced.
func NewFormulator(provider llm.Provider, maxQueries int) *Formulator {
	if maxQueries <= 0 {
		maxQueries = 4
	}
	return &Formulator{provider: provider, maxQueries: maxQueries}
}

// Formulate returns at least one query per claim. Queries come from the
// extraction stage's search statement when present, optionally reworded by
// the LLM; the deterministic fallback guarantees output when both fail.
func (f *Formulator) Formulate(ctx context.Context, claim model.Claim) []model.SearchQuery {
	drafts := SplitSearchStatement(claim.SearchStatement)

	refined := false
	if f.provider != nil && len(drafts) > 0 {
		if better, err := f.refine(ctx, claim, drafts); err == nil && len(better) > 0 {
			drafts = better
			refined = true
		}
	}

	return f.build(claim, drafts, refined)
}

// FormulateDeterministic returns queries without consulting the LLM: the
// split search statement when present, else the fallback query. Resumed
// runs use it so reformulating the same claims is reproducible.
func (f *Formulator) FormulateDeterministic(claim model.Claim) []model.SearchQuery {
	return f.build(claim, SplitSearchStatement(claim.SearchStatement), false)
}

func (f *Formulator) build(claim model.Claim, drafts []string, refined bool) []model.SearchQuery {
	if len(drafts) == 0 {
		drafts = []string{FallbackQuery(claim)}
	}
	if len(drafts) > f.maxQueries {
		drafts = drafts[:f.maxQueries]
	}

	queries := make([]model.SearchQuery, 0, len(drafts))
	for _, q := range drafts {
		queries = append(queries, model.SearchQuery{
			ClaimID: claim.ID,
			Query:   q,
			Refined: refined,
		})
	}
	return queries
}

// refine asks the LLM for better wording. Any failure is swallowed by the
// caller; this stage never depends on LLM availability.
func (f *Formulator) refine(ctx context.Context, claim model.Claim, drafts []string) ([]string, error) {
	prompt := "Claim: " + claim.Text + "\n\nDraft queries:\n- " + strings.Join(drafts, "\n- ")

	resp, err := f.provider.Complete(ctx, llm.CompletionRequest{
		System:      refineSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   300,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Content)), &parsed); err != nil {
		return nil, &model.ParseError{Raw: resp.Content, Err: err}
	}

	var out []string
	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
	}
	return out, nil
}

// SplitSearchStatement splits an " OR "-joined search statement into
// individual queries, dropping empties and duplicates.
func SplitSearchStatement(statement string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(statement, " OR ") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

// FallbackQuery builds a deterministic query directly from the claim text:
// lowercase content tokens, stopwords removed, capped length. Identical
// claims always produce identical queries.
func FallbackQuery(claim model.Claim) string {
	tokens := Tokenize(claim.Text)

	var kept []string
	for _, tok := range tokens {
		if stopwords[tok] {
			continue
		}
		kept = append(kept, tok)
		if len(kept) == fallbackMaxTokens {
			break
		}
	}

	if len(kept) == 0 {
		// Claim was all stopwords; use the raw tokens rather than nothing
		kept = tokens
	}
	return strings.Join(kept, " ")
}

// Tokenize lowercases text and splits it into alphanumeric tokens.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ContentTokens returns the deduplicated non-stopword tokens of text.
// Shared with the evidence filter so relevance and fallback queries agree
// on what counts as a content word.
func ContentTokens(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		if stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
