package query

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ppiankov/factweave/internal/llm"
	"github.com/ppiankov/factweave/internal/model"
)

type fakeProvider struct {
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Name() string                         { return "fake" }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func TestFormulate_SplitsSearchStatement(t *testing.T) {
	claim := model.Claim{
		ID:              "claim-001",
		Text:            "Nine sites were struck in the operation.",
		SearchStatement: "strikes on nine sites OR military operation targets OR strikes on nine sites",
	}

	f := NewFormulator(nil, 4)
	queries := f.Formulate(context.Background(), claim)

	if len(queries) != 2 {
		t.Fatalf("expected 2 deduplicated queries, got %d", len(queries))
	}
	for _, q := range queries {
		if q.ClaimID != "claim-001" {
			t.Errorf("query must carry claim id, got %q", q.ClaimID)
		}
		if q.Refined {
			t.Error("no provider configured, queries must not be marked refined")
		}
	}
}

func TestFormulate_CapsQueryCount(t *testing.T) {
	claim := model.Claim{
		ID:              "claim-001",
		Text:            "x",
		SearchStatement: "a1 OR b2 OR c3 OR d4 OR e5 OR f6",
	}

	f := NewFormulator(nil, 3)
	queries := f.Formulate(context.Background(), claim)
	if len(queries) != 3 {
		t.Errorf("expected cap at 3 queries, got %d", len(queries))
	}
}

func TestFormulate_RefinementApplied(t *testing.T) {
	provider := &fakeProvider{content: `{"queries": ["better query one", "better query two"]}`}
	claim := model.Claim{ID: "claim-001", Text: "some claim", SearchStatement: "draft query"}

	f := NewFormulator(provider, 4)
	queries := f.Formulate(context.Background(), claim)

	if len(queries) != 2 {
		t.Fatalf("expected 2 refined queries, got %d", len(queries))
	}
	if queries[0].Query != "better query one" || !queries[0].Refined {
		t.Errorf("expected refined query, got %+v", queries[0])
	}
}

func TestFormulate_RefinementFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	claim := model.Claim{ID: "claim-001", Text: "some claim", SearchStatement: "draft query"}

	f := NewFormulator(provider, 4)
	queries := f.Formulate(context.Background(), claim)

	if len(queries) != 1 {
		t.Fatalf("expected the draft query to survive refinement failure, got %d", len(queries))
	}
	if queries[0].Query != "draft query" || queries[0].Refined {
		t.Errorf("expected unrefined draft query, got %+v", queries[0])
	}
}

func TestFormulate_NoSearchStatementUsesFallback(t *testing.T) {
	claim := model.Claim{ID: "claim-001", Text: "The bridge was closed for repairs in March."}

	f := NewFormulator(nil, 4)
	queries := f.Formulate(context.Background(), claim)

	if len(queries) != 1 {
		t.Fatalf("expected exactly one fallback query, got %d", len(queries))
	}
	if queries[0].Query != "bridge closed repairs march" {
		t.Errorf("unexpected fallback query: %q", queries[0].Query)
	}
}

func TestFormulateDeterministic_SkipsProvider(t *testing.T) {
	provider := &fakeProvider{content: `{"queries": ["reworded query"]}`}
	claim := model.Claim{
		ID:              "claim-001",
		Text:            "some claim",
		SearchStatement: "first draft OR second draft",
	}

	f := NewFormulator(provider, 4)
	queries := f.FormulateDeterministic(claim)

	if provider.calls != 0 {
		t.Errorf("deterministic formulation must not call the provider, got %d calls", provider.calls)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 queries from the search statement, got %d", len(queries))
	}
	if queries[0].Query != "first draft" || queries[0].Refined {
		t.Errorf("expected unrefined draft query, got %+v", queries[0])
	}

	again := f.FormulateDeterministic(claim)
	if !reflect.DeepEqual(queries, again) {
		t.Error("repeated deterministic formulation must produce identical queries")
	}
}

func TestFallbackQuery_Deterministic(t *testing.T) {
	claim := model.Claim{
		ID:   "claim-001",
		Text: "The Indian armed forces executed targeted strikes on nine sites in the early hours of Wednesday.",
	}

	first := FallbackQuery(claim)
	for i := 0; i < 10; i++ {
		if got := FallbackQuery(claim); got != first {
			t.Fatalf("fallback query must be deterministic: %q != %q", got, first)
		}
	}
	if first == "" {
		t.Fatal("fallback query must not be empty")
	}
}

func TestFallbackQuery_CapsTokens(t *testing.T) {
	claim := model.Claim{
		ID:   "claim-001",
		Text: "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron",
	}

	got := FallbackQuery(claim)
	want := "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu"
	if got != want {
		t.Errorf("expected 12-token cap, got %q", got)
	}
}

func TestSplitSearchStatement(t *testing.T) {
	got := SplitSearchStatement("one query OR  two query  OR ")
	want := []string{"one query", "two query"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSearchStatement = %v, want %v", got, want)
	}
}
