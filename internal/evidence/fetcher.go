// Package evidence retrieves and reconciles news articles for each claim:
// concurrent multi-provider fan-out, URL deduplication, relevance and
// recency filtering, and ranking into the set the verifier consumes.
package evidence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/news"
	"github.com/ppiankov/factweave/internal/query"
)

// nowFunc is the clock used for the recency window (injectable for tests)
var nowFunc = time.Now

// Fetcher dispatches queries to every provider and reconciles the results
// into one FilteredEvidenceSet per claim.
type Fetcher struct {
	providers []news.Provider
	cfg       model.EvidenceConfig
	opts      news.SearchOptions
	workers   int
	enricher  *PageEnricher // nil disables page enrichment
}

// NewFetcher creates an evidence fetcher over the given providers.
func NewFetcher(providers []news.Provider, cfg model.EvidenceConfig, newsCfg model.NewsConfig, workers int, enricher *PageEnricher) *Fetcher {
	if workers <= 0 {
		workers = 8
	}
	return &Fetcher{
		providers: providers,
		cfg:       cfg,
		opts: news.SearchOptions{
			Language: newsCfg.Language,
			Country:  newsCfg.Country,
			Max:      newsCfg.MaxPerQuery,
		},
		workers:  workers,
		enricher: enricher,
	}
}

// task is one query x provider request.
type task struct {
	claimID  string
	query    string
	provider news.Provider
}

// taskResult preserves the task index so merge order stays deterministic
// regardless of completion order.
type taskResult struct {
	articles []model.EvidenceArticle
	err      error
}

// Fetch runs every query against every provider concurrently and returns a
// FilteredEvidenceSet per claim. Provider failures degrade to diagnostics
// on the affected claim's set; Fetch itself never fails the run.
func (f *Fetcher) Fetch(ctx context.Context, claims []model.Claim, queries []model.SearchQuery) map[string]*model.FilteredEvidenceSet {
	opts := f.opts
	if f.cfg.RecencyWindowDays > 0 {
		opts.From = nowFunc().AddDate(0, 0, -f.cfg.RecencyWindowDays)
	}

	var tasks []task
	for _, q := range queries {
		for _, p := range f.providers {
			if q.ProviderHint != "" && q.ProviderHint != p.Name() {
				continue
			}
			tasks = append(tasks, task{claimID: q.ClaimID, query: q.Query, provider: p})
		}
	}

	results := make([]taskResult, len(tasks))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, f.workers)

	for i, tk := range tasks {
		wg.Add(1)
		go func(idx int, tk task) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = taskResult{err: ctx.Err()}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			articles, err := tk.provider.Search(ctx, tk.query, opts)
			results[idx] = taskResult{articles: articles, err: err}
		}(i, tk)
	}
	wg.Wait()

	// Union per claim in task order so "first occurrence wins" is stable
	merged := make(map[string][]model.EvidenceArticle)
	diagnostics := make(map[string][]string)
	for i, tk := range tasks {
		res := results[i]
		if res.err != nil {
			diagnostics[tk.claimID] = append(diagnostics[tk.claimID], res.err.Error())
			continue
		}
		merged[tk.claimID] = append(merged[tk.claimID], res.articles...)
	}

	sets := make(map[string]*model.FilteredEvidenceSet, len(claims))
	for _, claim := range claims {
		set := &model.FilteredEvidenceSet{
			ClaimID:     claim.ID,
			Articles:    f.reconcile(claim, merged[claim.ID]),
			Diagnostics: diagnostics[claim.ID],
		}
		if f.enricher != nil && f.cfg.EnrichTop > 0 {
			f.enricher.Enrich(ctx, set, f.cfg.EnrichTop)
		}
		sets[claim.ID] = set
	}
	return sets
}

// reconcile dedupes by normalized URL, filters by relevance and recency,
// ranks by overlap then publication date, and caps the set.
func (f *Fetcher) reconcile(claim model.Claim, articles []model.EvidenceArticle) []model.EvidenceArticle {
	claimTokens := query.ContentTokens(claim.Text)
	minOverlap := f.cfg.MinTokenOverlap
	if len(claimTokens) < 4 && minOverlap > 1 {
		// Short claims cannot be expected to share many tokens
		minOverlap = 1
	}

	var cutoff time.Time
	if f.cfg.RecencyWindowDays > 0 {
		cutoff = nowFunc().AddDate(0, 0, -f.cfg.RecencyWindowDays)
	}

	type ranked struct {
		article model.EvidenceArticle
		overlap int
		order   int
	}

	seen := make(map[string]bool)
	var kept []ranked
	for i, article := range articles {
		if article.URL == "" {
			continue
		}
		key := NormalizeURL(article.URL)
		if seen[key] {
			continue
		}
		seen[key] = true

		if !cutoff.IsZero() && !article.PublishedAt.IsZero() && article.PublishedAt.Before(cutoff) {
			continue
		}

		overlap := tokenOverlap(claimTokens, article.Title+" "+article.Snippet)
		if overlap < minOverlap {
			continue
		}

		kept = append(kept, ranked{article: article, overlap: overlap, order: i})
	}

	sort.SliceStable(kept, func(a, b int) bool {
		if kept[a].overlap != kept[b].overlap {
			return kept[a].overlap > kept[b].overlap
		}
		ta, tb := kept[a].article.PublishedAt, kept[b].article.PublishedAt
		if !ta.Equal(tb) {
			// Undated articles sort after dated ones
			if ta.IsZero() {
				return false
			}
			if tb.IsZero() {
				return true
			}
			return ta.After(tb)
		}
		return kept[a].order < kept[b].order
	})

	max := f.cfg.MaxPerClaim
	if max <= 0 || max > len(kept) {
		max = len(kept)
	}

	out := make([]model.EvidenceArticle, 0, max)
	for _, r := range kept[:max] {
		out = append(out, r.article)
	}
	return out
}

// tokenOverlap counts distinct claim content tokens present in text.
func tokenOverlap(claimTokens []string, text string) int {
	textTokens := make(map[string]bool)
	for _, tok := range query.Tokenize(text) {
		textTokens[tok] = true
	}

	overlap := 0
	for _, tok := range claimTokens {
		if textTokens[tok] {
			overlap++
		}
	}
	return overlap
}
