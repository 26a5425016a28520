// Package extract turns raw article text into structured claims via the LLM.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/factweave/internal/llm"
	"github.com/ppiankov/factweave/internal/model"
)

const extractSystemPrompt = `Read the following article and identify distinct substories or incidents within it. Each substory should represent only one coherent incident, even if it contains multiple factual claims.

For each identified incident, extract and return the information in the following format:

{
  "incidents": [
    {
      "incident_summary": "<A concise summary of the incident>",
      "incident_category": "<One or two words categorizing the incident, e.g. conflict, politics, disaster, crime, economy>",
      "search_statement": "<Multiple distinct natural language search queries about the incident, joined using ' OR '>",
      "facts": [
        {
          "statement": "<A factual claim related to the incident>",
          "date": "<Date if mentioned, else null>",
          "place": "<Place if mentioned, else null>"
        }
      ]
    }
  ]
}

Guidelines:
- A "fact" is a statement that can be validated as true, false, or partially true using external sources.
- Each group of facts must relate to only one incident.
- Do not group together claims that describe different events.
- For the "search_statement":
  - Generate 2 to 4 distinct natural language search queries that someone might use to look up the incident online.
  - Ensure that these queries do not repeat phrasing and each focuses on a slightly different angle or keyword set relevant to the same incident.
  - Concatenate these search queries using ' OR ' (capitalized, with spaces) so they can be used directly in a search API.
- If a fact does not mention a date or place, return those fields as null.`

// incidentsEnvelope is the structured form the LLM must return.
type incidentsEnvelope struct {
	Incidents []model.Incident `json:"incidents"`
}

// ClaimExtractor extracts atomic claims from article text using an LLM call.
type ClaimExtractor struct {
	provider llm.Provider
	config   model.LLMConfig
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(provider llm.Provider, config model.LLMConfig) *ClaimExtractor {
	return &ClaimExtractor{provider: provider, config: config}
}

// Extract asks the LLM for incidents and flattens them into claims with
// deterministic per-run IDs. An LLM or parse failure is an ExtractionError
// (fatal for the run); zero incidents is a valid empty result.
func (e *ClaimExtractor) Extract(ctx context.Context, articleText string) ([]model.Claim, error) {
	if strings.TrimSpace(articleText) == "" {
		return nil, &model.ExtractionError{Reason: "empty article text"}
	}

	prompt := fmt.Sprintf("Article Text:\n---\n%s\n---\n\nReturn a JSON object with an \"incidents\" key, where the value is a list of incident objects.", articleText)

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:      extractSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   e.config.MaxTokens,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, &model.ExtractionError{Reason: "LLM call failed", Err: err}
	}

	incidents, err := parseIncidents(resp.Content)
	if err != nil {
		return nil, &model.ExtractionError{Reason: "malformed LLM response", Err: err}
	}

	return Flatten(incidents), nil
}

// parseIncidents validates the raw completion against the expected schema.
func parseIncidents(content string) ([]model.Incident, error) {
	raw := llm.ExtractJSON(content)

	var envelope incidentsEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, &model.ParseError{Raw: content, Err: err}
	}

	for i, inc := range envelope.Incidents {
		if strings.TrimSpace(inc.SearchStatement) == "" {
			return nil, &model.ParseError{Raw: content, Err: fmt.Errorf("incident %d missing search_statement", i)}
		}
		for j, fact := range inc.Facts {
			if strings.TrimSpace(fact.Statement) == "" {
				return nil, &model.ParseError{Raw: content, Err: fmt.Errorf("incident %d fact %d missing statement", i, j)}
			}
		}
	}

	return envelope.Incidents, nil
}

// Flatten converts incidents into the claim sequence the rest of the
// pipeline consumes. IDs are stable for a given extraction result, which
// lets reruns resume against persisted artifacts.
func Flatten(incidents []model.Incident) []model.Claim {
	var claims []model.Claim
	n := 0
	for _, inc := range incidents {
		for _, fact := range inc.Facts {
			n++
			claim := model.Claim{
				ID:               fmt.Sprintf("claim-%03d", n),
				Text:             fact.Statement,
				IncidentCategory: inc.Category,
				IncidentSummary:  inc.Summary,
				SearchStatement:  inc.SearchStatement,
			}
			if fact.Date != nil {
				claim.Date = *fact.Date
			}
			if fact.Place != nil {
				claim.Place = *fact.Place
			}
			claims = append(claims, claim)
		}
	}
	return claims
}
