// Package pipeline orchestrates the four verification stages: claim
// extraction, query formulation, evidence retrieval, and verdict
// generation. Each stage persists its artifact before the next starts,
// and present artifacts let an interrupted run resume where it stopped.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/factweave/internal/artifact"
	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/worker"
)

// Stage identifies where the pipeline currently is.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageExtracting  Stage = "extracting"
	StageFormulating Stage = "formulating"
	StageFetching    Stage = "fetching"
	StageVerifying   Stage = "verifying"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Status is one progress notification.
type Status struct {
	Stage   Stage
	Message string
	Resumed bool // Stage output loaded from an existing artifact
}

// StatusFunc receives progress notifications. Callers use it for terminal
// output or run tracking; nil disables notifications.
type StatusFunc func(Status)

// ClaimExtractor turns article text into claims.
type ClaimExtractor interface {
	Extract(ctx context.Context, articleText string) ([]model.Claim, error)
}

// QueryFormulator turns one claim into search queries. The deterministic
// variant must not call the LLM; resumed runs use it so reruns over the
// same claims always produce the same queries.
type QueryFormulator interface {
	Formulate(ctx context.Context, claim model.Claim) []model.SearchQuery
	FormulateDeterministic(claim model.Claim) []model.SearchQuery
}

// EvidenceFetcher retrieves and reconciles evidence per claim.
type EvidenceFetcher interface {
	Fetch(ctx context.Context, claims []model.Claim, queries []model.SearchQuery) map[string]*model.FilteredEvidenceSet
}

// ClaimVerifier adjudicates one claim against its evidence.
type ClaimVerifier interface {
	Verify(ctx context.Context, claim model.Claim, evidence *model.FilteredEvidenceSet) model.VerdictRecord
}

// Pipeline runs the stages in order against one article.
type Pipeline struct {
	extractor  ClaimExtractor
	formulator QueryFormulator
	fetcher    EvidenceFetcher
	verifier   ClaimVerifier
	store      *artifact.Store
	config     *model.Config
	status     StatusFunc
}

// NewPipeline assembles a pipeline from its stage components.
func NewPipeline(extractor ClaimExtractor, formulator QueryFormulator, fetcher EvidenceFetcher, verifier ClaimVerifier, store *artifact.Store, cfg *model.Config, status StatusFunc) *Pipeline {
	if status == nil {
		status = func(Status) {}
	}
	return &Pipeline{
		extractor:  extractor,
		formulator: formulator,
		fetcher:    fetcher,
		verifier:   verifier,
		store:      store,
		config:     cfg,
		status:     status,
	}
}

// Result is the complete output of one run.
type Result struct {
	Claims   []model.Claim
	Queries  []model.SearchQuery
	Evidence map[string]*model.FilteredEvidenceSet
	Verdicts []model.VerdictRecord
	Elapsed  time.Duration
}

// Run executes all stages for the given article text. Extraction failures
// are fatal; downstream stages degrade per claim instead of failing the
// run. Cancellation is honored between stages.
func (p *Pipeline) Run(ctx context.Context, articleText string) (*Result, error) {
	start := time.Now()

	claims, claimsResumed, err := p.extract(ctx, articleText)
	if err != nil {
		p.status(Status{Stage: StageFailed, Message: err.Error()})
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		p.status(Status{Stage: StageFailed, Message: err.Error()})
		return nil, err
	}

	queries, err := p.formulate(ctx, claims, claimsResumed)
	if err != nil {
		p.status(Status{Stage: StageFailed, Message: err.Error()})
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		p.status(Status{Stage: StageFailed, Message: err.Error()})
		return nil, err
	}

	evidence, err := p.fetch(ctx, claims, queries)
	if err != nil {
		p.status(Status{Stage: StageFailed, Message: err.Error()})
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		p.status(Status{Stage: StageFailed, Message: err.Error()})
		return nil, err
	}

	verdicts, err := p.verify(ctx, claims, evidence)
	if err != nil {
		p.status(Status{Stage: StageFailed, Message: err.Error()})
		return nil, err
	}

	p.status(Status{Stage: StageDone, Message: fmt.Sprintf("%d claims verified", len(verdicts))})
	return &Result{
		Claims:   claims,
		Queries:  queries,
		Evidence: evidence,
		Verdicts: verdicts,
		Elapsed:  time.Since(start),
	}, nil
}

func (p *Pipeline) resume(file string) bool {
	return p.config.Artifacts.Resume && p.store.Has(file)
}

func (p *Pipeline) extract(ctx context.Context, articleText string) ([]model.Claim, bool, error) {
	if p.resume(artifact.FileClaims) {
		claims, err := p.store.LoadClaims()
		if err == nil {
			p.status(Status{Stage: StageExtracting, Resumed: true, Message: fmt.Sprintf("%d claims loaded", len(claims))})
			return claims, true, nil
		}
		// Unreadable artifact falls through to a fresh extraction
	}

	p.status(Status{Stage: StageExtracting})
	claims, err := p.extractor.Extract(ctx, articleText)
	if err != nil {
		return nil, false, err
	}
	if err := p.store.SaveClaims(claims); err != nil {
		return nil, false, fmt.Errorf("persisting claims: %w", err)
	}
	return claims, false, nil
}

func (p *Pipeline) formulate(ctx context.Context, claims []model.Claim, claimsResumed bool) ([]model.SearchQuery, error) {
	if p.resume(artifact.FileQueries) {
		queries, err := p.store.LoadQueries()
		if err == nil {
			p.status(Status{Stage: StageFormulating, Resumed: true, Message: fmt.Sprintf("%d queries loaded", len(queries))})
			return queries, nil
		}
	}

	p.status(Status{Stage: StageFormulating})
	var queries []model.SearchQuery
	for _, claim := range claims {
		// A resumed claim set with no queries artifact reformulates
		// deterministically, so the rerun never depends on the LLM.
		if claimsResumed {
			queries = append(queries, p.formulator.FormulateDeterministic(claim)...)
		} else {
			queries = append(queries, p.formulator.Formulate(ctx, claim)...)
		}
	}
	if err := p.store.SaveQueries(queries); err != nil {
		return nil, fmt.Errorf("persisting queries: %w", err)
	}
	return queries, nil
}

func (p *Pipeline) fetch(ctx context.Context, claims []model.Claim, queries []model.SearchQuery) (map[string]*model.FilteredEvidenceSet, error) {
	if p.resume(artifact.FileEvidence) {
		sets, err := p.store.LoadEvidence()
		if err == nil {
			p.status(Status{Stage: StageFetching, Resumed: true, Message: fmt.Sprintf("evidence for %d claims loaded", len(sets))})
			return sets, nil
		}
	}

	p.status(Status{Stage: StageFetching})
	sets := p.fetcher.Fetch(ctx, claims, queries)
	if err := p.store.SaveEvidence(sets); err != nil {
		return nil, fmt.Errorf("persisting evidence: %w", err)
	}
	return sets, nil
}

// verifyJob verifies one claim on the worker pool. It carries the run
// context so cancellation reaches in-flight LLM calls.
type verifyJob struct {
	ctx      context.Context
	index    int
	claim    model.Claim
	evidence *model.FilteredEvidenceSet
	verifier ClaimVerifier
}

type verifyResult struct {
	index  int
	record model.VerdictRecord
}

func (r verifyResult) GetError() error { return nil }

func (j verifyJob) Execute(context.Context) worker.Result {
	return verifyResult{index: j.index, record: j.verifier.Verify(j.ctx, j.claim, j.evidence)}
}

func (p *Pipeline) verify(ctx context.Context, claims []model.Claim, evidence map[string]*model.FilteredEvidenceSet) ([]model.VerdictRecord, error) {
	if p.resume(artifact.FileVerdicts) {
		verdicts, err := p.store.LoadVerdicts()
		if err == nil {
			p.status(Status{Stage: StageVerifying, Resumed: true, Message: fmt.Sprintf("%d verdicts loaded", len(verdicts))})
			return verdicts, nil
		}
	}

	p.status(Status{Stage: StageVerifying})

	pool := worker.NewPool(p.config.Concurrency.VerifyWorkers)
	pool.Start()
	for i, claim := range claims {
		set := evidence[claim.ID]
		if set == nil {
			set = &model.FilteredEvidenceSet{ClaimID: claim.ID}
		}
		pool.Submit(verifyJob{ctx: ctx, index: i, claim: claim, evidence: set, verifier: p.verifier})
	}

	// Re-join in claim order regardless of completion order
	verdicts := make([]model.VerdictRecord, len(claims))
	for _, res := range pool.Wait() {
		vr := res.(verifyResult)
		verdicts[vr.index] = vr.record
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.store.SaveVerdicts(verdicts); err != nil {
		return nil, fmt.Errorf("persisting verdicts: %w", err)
	}
	return verdicts, nil
}
