package model

import "fmt"

// ConfigurationError indicates missing or invalid credentials/settings.
// It is fatal and surfaced before the pipeline starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// ExtractionError indicates the LLM was unusable at the first stage.
// It is the only stage error that fails a run.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %v", e.Reason, e.Err)
	}
	return "extraction: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ProviderError indicates a single search-provider request failed after
// retries. Recovered locally: the affected query/provider pair is skipped.
type ProviderError struct {
	Provider   string
	Query      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: query %q: status %d", e.Provider, e.Query, e.StatusCode)
	}
	return fmt.Sprintf("provider %s: query %q: %v", e.Provider, e.Query, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError indicates a malformed LLM response. Recovered locally via a
// fallback value; never fatal to the run.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse LLM response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
