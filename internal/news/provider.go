// Package news implements the two independent news-search providers the
// evidence fetcher fans out to. Each provider call is a bounded-retry
// operation; exhausting retries yields a ProviderError, never a run abort.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/factweave/internal/cache"
	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/retry"
	"github.com/ppiankov/factweave/internal/worker"
)

// SearchOptions narrows a provider search.
type SearchOptions struct {
	Language string
	Country  string
	Max      int
	From     time.Time // Earliest publication date; zero means unconstrained
}

// Provider is a single news-search API.
type Provider interface {
	// Name returns the provider name as recorded on evidence articles
	Name() string

	// Search runs one query and returns normalized articles
	Search(ctx context.Context, query string, opts SearchOptions) ([]model.EvidenceArticle, error)
}

// client bundles the plumbing shared by both providers: HTTP transport,
// per-host rate limiting, response caching, and the retry policy.
type client struct {
	httpClient *http.Client
	limiter    *worker.Limiter
	cache      cache.Cache // nil disables caching
	cacheTTL   time.Duration
	policy     retry.Policy
}

func newClient(cfg model.NewsConfig, limiter *worker.Limiter, respCache cache.Cache, cacheTTL time.Duration) *client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}

	return &client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		limiter:  limiter,
		cache:    respCache,
		cacheTTL: cacheTTL,
		policy:   policy,
	}
}

// getJSON performs a rate-limited GET with bounded retry and decodes the
// response body into out. Non-2xx statuses surface as retry.StatusError so
// the policy can distinguish 429/5xx from permanent failures.
func (c *client) getJSON(ctx context.Context, url string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, url); err != nil {
			return err
		}
	}

	var body []byte
	err := c.policy.Do(ctx, retry.IsTransient, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &retry.StatusError{Status: resp.StatusCode, Body: string(data)}
		}
		body = data
		return nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(body, out)
}

// cached wraps a search in the response cache. The key covers everything
// that changes the result set.
func (c *client) cached(provider, query string, opts SearchOptions, fetch func() ([]model.EvidenceArticle, error)) ([]model.EvidenceArticle, error) {
	if c.cache == nil {
		return fetch()
	}

	key := cache.CacheKey(fmt.Sprintf("%s|%s|%s|%s|%d|%s", provider, query, opts.Language, opts.Country, opts.Max, opts.From.Format(time.RFC3339)))
	if data, found := c.cache.Get(key); found {
		var articles []model.EvidenceArticle
		if err := json.Unmarshal(data, &articles); err == nil {
			return articles, nil
		}
	}

	articles, err := fetch()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(articles); err == nil {
		_ = c.cache.Set(key, data, c.cacheTTL)
	}
	return articles, nil
}
