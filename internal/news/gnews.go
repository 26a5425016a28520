package news

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/ppiankov/factweave/internal/cache"
	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/worker"
)

// GNewsProvider queries the GNews.io search API.
type GNewsProvider struct {
	client  *client
	apiKey  string
	baseURL string
}

// NewGNewsProvider creates the GNews.io provider.
func NewGNewsProvider(cfg model.NewsConfig, limiter *worker.Limiter, respCache cache.Cache, cacheTTL time.Duration) *GNewsProvider {
	baseURL := cfg.GNewsURL
	if baseURL == "" {
		baseURL = "https://gnews.io/api/v4/search"
	}
	return &GNewsProvider{
		client:  newClient(cfg, limiter, respCache, cacheTTL),
		apiKey:  cfg.GNewsAPIKey,
		baseURL: baseURL,
	}
}

// Name returns the provider name
func (p *GNewsProvider) Name() string { return "gnews" }

type gnewsResponse struct {
	Articles []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Content     string    `json:"content"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Search runs one query against GNews.io.
func (p *GNewsProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]model.EvidenceArticle, error) {
	if p.apiKey == "" {
		return nil, &model.ConfigurationError{Field: "news.gnews_api_key", Reason: "not set"}
	}

	return p.client.cached(p.Name(), query, opts, func() ([]model.EvidenceArticle, error) {
		params := url.Values{}
		params.Set("q", query)
		params.Set("token", p.apiKey)
		params.Set("sortby", "relevance")
		if opts.Language != "" {
			params.Set("lang", opts.Language)
		}
		if opts.Country != "" {
			params.Set("country", opts.Country)
		}
		if opts.Max > 0 {
			params.Set("max", strconv.Itoa(opts.Max))
		}
		if !opts.From.IsZero() {
			params.Set("from", opts.From.UTC().Format(time.RFC3339))
		}

		var resp gnewsResponse
		if err := p.client.getJSON(ctx, p.baseURL+"?"+params.Encode(), &resp); err != nil {
			return nil, &model.ProviderError{Provider: p.Name(), Query: query, Err: err}
		}

		articles := make([]model.EvidenceArticle, 0, len(resp.Articles))
		for _, r := range resp.Articles {
			articles = append(articles, model.EvidenceArticle{
				URL:            r.URL,
				Title:          r.Title,
				Snippet:        r.Description,
				Content:        r.Content,
				SourceProvider: p.Name(),
				SourceName:     r.Source.Name,
				PublishedAt:    r.PublishedAt.UTC(),
			})
		}
		return articles, nil
	})
}
