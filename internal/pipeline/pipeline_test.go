package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ppiankov/factweave/internal/artifact"
	"github.com/ppiankov/factweave/internal/model"
)

type fakeExtractor struct {
	claims []model.Claim
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, articleText string) ([]model.Claim, error) {
	f.calls++
	return f.claims, f.err
}

type fakeFormulator struct {
	refined       int
	deterministic int
}

func (f *fakeFormulator) Formulate(ctx context.Context, claim model.Claim) []model.SearchQuery {
	f.refined++
	return []model.SearchQuery{{ClaimID: claim.ID, Query: "query for " + claim.ID}}
}

func (f *fakeFormulator) FormulateDeterministic(claim model.Claim) []model.SearchQuery {
	f.deterministic++
	return []model.SearchQuery{{ClaimID: claim.ID, Query: "query for " + claim.ID}}
}

type fakeFetcher struct {
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, claims []model.Claim, queries []model.SearchQuery) map[string]*model.FilteredEvidenceSet {
	f.calls++
	sets := make(map[string]*model.FilteredEvidenceSet)
	for _, c := range claims {
		sets[c.ID] = &model.FilteredEvidenceSet{
			ClaimID:  c.ID,
			Articles: []model.EvidenceArticle{{URL: "https://a.example/" + c.ID, Title: c.Text}},
		}
	}
	return sets
}

type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, claim model.Claim, evidence *model.FilteredEvidenceSet) model.VerdictRecord {
	verdict := model.VerdictProved
	if evidence.Empty() {
		verdict = model.VerdictUnclear
	}
	return model.VerdictRecord{ClaimID: claim.ID, Verdict: verdict, Confidence: 0.9}
}

func testConfig(dir string) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Artifacts.Dir = dir
	cfg.Concurrency.VerifyWorkers = 2
	return cfg
}

func twoClaims() []model.Claim {
	return []model.Claim{
		{ID: "claim-001", Text: "first fact"},
		{ID: "claim-002", Text: "second fact"},
	}
}

func newTestPipeline(t *testing.T, dir string, ext *fakeExtractor, fetch *fakeFetcher) *Pipeline {
	t.Helper()
	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return NewPipeline(ext, &fakeFormulator{}, fetch, &fakeVerifier{}, store, testConfig(dir), nil)
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	ext := &fakeExtractor{claims: twoClaims()}
	p := newTestPipeline(t, dir, ext, &fakeFetcher{})

	result, err := p.Run(context.Background(), "article text")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Claims) != 2 {
		t.Errorf("expected 2 claims, got %d", len(result.Claims))
	}
	if len(result.Queries) != 2 {
		t.Errorf("expected 1 query per claim, got %d", len(result.Queries))
	}
	if len(result.Verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(result.Verdicts))
	}

	// Verdict order follows claim order regardless of worker scheduling
	for i, claim := range result.Claims {
		if result.Verdicts[i].ClaimID != claim.ID {
			t.Errorf("verdict %d is for %s, want %s", i, result.Verdicts[i].ClaimID, claim.ID)
		}
	}

	// Every stage persisted its artifact
	store, _ := artifact.NewStore(dir)
	for _, name := range []string{artifact.FileClaims, artifact.FileQueries, artifact.FileEvidence, artifact.FileVerdicts} {
		if !store.Has(name) {
			t.Errorf("missing artifact %s after a complete run", name)
		}
	}
}

func TestRun_ResumesFromClaimsArtifact(t *testing.T) {
	dir := t.TempDir()

	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.SaveClaims(twoClaims()); err != nil {
		t.Fatalf("seeding claims artifact: %v", err)
	}

	ext := &fakeExtractor{err: errors.New("extractor must not run")}
	p := newTestPipeline(t, dir, ext, &fakeFetcher{})

	result, err := p.Run(context.Background(), "article text")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ext.calls != 0 {
		t.Errorf("extractor called %d times despite existing artifact", ext.calls)
	}
	if len(result.Verdicts) != 2 {
		t.Errorf("resumed run must still produce verdicts, got %d", len(result.Verdicts))
	}
}

func TestRun_ResumedClaimsFormulateDeterministically(t *testing.T) {
	dir := t.TempDir()

	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.SaveClaims(twoClaims()); err != nil {
		t.Fatalf("seeding claims artifact: %v", err)
	}

	form := &fakeFormulator{}
	p := NewPipeline(&fakeExtractor{}, form, &fakeFetcher{}, &fakeVerifier{}, store, testConfig(dir), nil)

	if _, err := p.Run(context.Background(), "article text"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if form.refined != 0 {
		t.Errorf("resumed claims must not re-enter LLM refinement, got %d calls", form.refined)
	}
	if form.deterministic != 2 {
		t.Errorf("expected 2 deterministic formulations, got %d", form.deterministic)
	}
}

func TestRun_ResumeDisabledReruns(t *testing.T) {
	dir := t.TempDir()

	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.SaveClaims(twoClaims()); err != nil {
		t.Fatalf("seeding claims artifact: %v", err)
	}

	ext := &fakeExtractor{claims: twoClaims()}
	cfg := testConfig(dir)
	cfg.Artifacts.Resume = false
	p := NewPipeline(ext, &fakeFormulator{}, &fakeFetcher{}, &fakeVerifier{}, store, cfg, nil)

	if _, err := p.Run(context.Background(), "article text"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ext.calls != 1 {
		t.Errorf("extractor must run when resume is off, got %d calls", ext.calls)
	}
}

func TestRun_ExtractionFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	ext := &fakeExtractor{err: &model.ExtractionError{Reason: "malformed response"}}
	fetch := &fakeFetcher{}
	p := newTestPipeline(t, dir, ext, fetch)

	var failed bool
	p.status = func(s Status) {
		if s.Stage == StageFailed {
			failed = true
		}
	}

	_, err := p.Run(context.Background(), "article text")
	if err == nil {
		t.Fatal("extraction failure must fail the run")
	}
	var extErr *model.ExtractionError
	if !errors.As(err, &extErr) {
		t.Errorf("expected ExtractionError, got %T", err)
	}
	if fetch.calls != 0 {
		t.Errorf("downstream stages must not run after a fatal failure")
	}
	if !failed {
		t.Error("failure must be reported through the status callback")
	}
}

func TestRun_CancelledBeforeFetch(t *testing.T) {
	dir := t.TempDir()
	ext := &fakeExtractor{claims: twoClaims()}
	fetch := &fakeFetcher{}
	p := newTestPipeline(t, dir, ext, fetch)

	ctx, cancel := context.WithCancel(context.Background())
	p.status = func(s Status) {
		// Cancel cooperatively once formulation starts
		if s.Stage == StageFormulating {
			cancel()
		}
	}

	_, err := p.Run(ctx, "article text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fetch.calls != 0 {
		t.Errorf("fetch must not start after cancellation")
	}
}

// A claim-heavy article must not stall the verify stage: claim count far
// exceeds the worker count and the pool's internal buffering.
func TestRun_ManyClaimsCompletes(t *testing.T) {
	dir := t.TempDir()

	claims := make([]model.Claim, 30)
	for i := range claims {
		claims[i] = model.Claim{ID: fmt.Sprintf("claim-%03d", i+1), Text: fmt.Sprintf("fact number %d", i+1)}
	}

	ext := &fakeExtractor{claims: claims}
	p := newTestPipeline(t, dir, ext, &fakeFetcher{})

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := p.Run(context.Background(), "article text")
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("Run failed: %v", out.err)
		}
		if len(out.result.Verdicts) != len(claims) {
			t.Fatalf("expected %d verdicts, got %d", len(claims), len(out.result.Verdicts))
		}
		for i, claim := range claims {
			if out.result.Verdicts[i].ClaimID != claim.ID {
				t.Errorf("verdict %d is for %s, want %s", i, out.result.Verdicts[i].ClaimID, claim.ID)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run stalled with more claims than verify workers")
	}
}

func TestRun_ZeroClaimsCompletes(t *testing.T) {
	dir := t.TempDir()
	ext := &fakeExtractor{claims: nil}
	p := newTestPipeline(t, dir, ext, &fakeFetcher{})

	result, err := p.Run(context.Background(), "article with nothing checkable")
	if err != nil {
		t.Fatalf("a claim-free article is a valid run: %v", err)
	}
	if len(result.Verdicts) != 0 {
		t.Errorf("expected no verdicts, got %d", len(result.Verdicts))
	}
}
