// Package verify adjudicates claims against retrieved evidence using one
// LLM call per claim. Verification never aborts the run: every failure
// degrades to an Unclear verdict with a diagnostic.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/factweave/internal/llm"
	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/retry"
)

// promptCharBudget caps the evidence portion of the prompt. Evidence is
// added highest-ranked first until the budget runs out.
const promptCharBudget = 12000

const verifySystemPrompt = `You are a fact verification assistant.

Based on the provided news articles, determine if the fact is:
- Proved (if the fact's core claim is supported clearly by any article),
- Refuted (if any article directly contradicts the fact),
- Unclear (if articles do not give enough information).

Respond with a JSON object in exactly this form:
{
  "verdict": "Proved" | "Refuted" | "Unclear",
  "confidence": <number between 0 and 1>,
  "rationale": "<2-3 line reasoning>",
  "sources": ["<source names used to justify the verdict, empty if Unclear>"]
}`

// verdictResponse is the structured form the LLM must return.
type verdictResponse struct {
	Verdict    string   `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Sources    []string `json:"sources"`
}

// Verifier produces a VerdictRecord per claim.
type Verifier struct {
	provider llm.Provider
	config   model.LLMConfig
	policy   retry.Policy
}

// NewVerifier creates a new verifier.
func NewVerifier(provider llm.Provider, config model.LLMConfig) *Verifier {
	return &Verifier{
		provider: provider,
		config:   config,
		policy:   retry.DefaultPolicy(),
	}
}

// Verify adjudicates one claim against its evidence set. It never returns
// an error: empty evidence maps to Unclear, and malformed or failed LLM
// responses degrade to the parse-failure fallback.
func (v *Verifier) Verify(ctx context.Context, claim model.Claim, evidence *model.FilteredEvidenceSet) model.VerdictRecord {
	if evidence.Empty() {
		return model.VerdictRecord{
			ClaimID:    claim.ID,
			Verdict:    model.VerdictUnclear,
			Rationale:  "no evidence retrieved for this claim",
			Confidence: 0,
		}
	}

	prompt := buildPrompt(claim, evidence)

	var resp *llm.CompletionResponse
	err := v.policy.Do(ctx, retry.IsTransient, func() error {
		var callErr error
		resp, callErr = v.provider.Complete(ctx, llm.CompletionRequest{
			System:      verifySystemPrompt,
			Prompt:      prompt,
			MaxTokens:   v.config.MaxTokens,
			Temperature: v.config.Temperature,
			JSONMode:    true,
		})
		return callErr
	})
	if err != nil {
		return fallbackRecord(claim.ID, fmt.Sprintf("LLM call failed: %v", err))
	}

	record, parseErr := parseVerdict(claim.ID, resp.Content)
	if parseErr != nil {
		return fallbackRecord(claim.ID, parseErr.Error())
	}
	return record
}

// buildPrompt embeds the claim and ranked evidence, truncating to budget
// with highest-ranked evidence first.
func buildPrompt(claim model.Claim, evidence *model.FilteredEvidenceSet) string {
	var b strings.Builder
	b.WriteString("Fact to verify:\n\"")
	b.WriteString(claim.Text)
	b.WriteString("\"\n")
	if claim.Date != "" {
		fmt.Fprintf(&b, "Date mentioned: %s\n", claim.Date)
	}
	if claim.Place != "" {
		fmt.Fprintf(&b, "Place mentioned: %s\n", claim.Place)
	}
	b.WriteString("\nBelow are the contents of multiple news articles. Each article includes its title, description, and the source name.\n\nArticles:\n")

	used := 0
	for i, article := range evidence.Articles {
		entry := formatArticle(i+1, article)
		if used+len(entry) > promptCharBudget {
			break
		}
		b.WriteString(entry)
		used += len(entry)
	}

	b.WriteString("\nAnalyze the articles and return the JSON verdict object.")
	return b.String()
}

func formatArticle(n int, article model.EvidenceArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nArticle %d:\nTitle: %s\nDescription: %s\nSource: %s\n", n, article.Title, article.Snippet, article.SourceName)
	if !article.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", article.PublishedAt.Format("2006-01-02"))
	}
	if article.Content != "" {
		fmt.Fprintf(&b, "Excerpt: %s\n", article.Content)
	}
	return b.String()
}

// parseVerdict strictly maps the completion to a VerdictRecord. Unknown
// labels and out-of-range confidence are parse failures, not clamped.
func parseVerdict(claimID, content string) (model.VerdictRecord, error) {
	var parsed verdictResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &parsed); err != nil {
		return model.VerdictRecord{}, &model.ParseError{Raw: content, Err: err}
	}

	verdict := model.Verdict(strings.TrimSpace(parsed.Verdict))
	if !verdict.Valid() {
		return model.VerdictRecord{}, &model.ParseError{Raw: content, Err: fmt.Errorf("unknown verdict label %q", parsed.Verdict)}
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return model.VerdictRecord{}, &model.ParseError{Raw: content, Err: fmt.Errorf("confidence %v out of range", parsed.Confidence)}
	}

	return model.VerdictRecord{
		ClaimID:    claimID,
		Verdict:    verdict,
		Rationale:  parsed.Rationale,
		Confidence: parsed.Confidence,
		Sources:    parsed.Sources,
	}, nil
}

// fallbackRecord is the safe default when verification degrades.
func fallbackRecord(claimID, diagnostic string) model.VerdictRecord {
	return model.VerdictRecord{
		ClaimID:    claimID,
		Verdict:    model.VerdictUnclear,
		Rationale:  model.ParseFailureRationale,
		Confidence: 0,
		Diagnostic: diagnostic,
	}
}
