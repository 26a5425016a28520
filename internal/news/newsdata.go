package news

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ppiankov/factweave/internal/cache"
	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/worker"
)

// newsDataTimeLayout is the pubDate format NewsData.io returns.
const newsDataTimeLayout = "2006-01-02 15:04:05"

// NewsDataProvider queries the NewsData.io latest-news API.
type NewsDataProvider struct {
	client  *client
	apiKey  string
	baseURL string
}

// NewNewsDataProvider creates the NewsData.io provider.
func NewNewsDataProvider(cfg model.NewsConfig, limiter *worker.Limiter, respCache cache.Cache, cacheTTL time.Duration) *NewsDataProvider {
	baseURL := cfg.NewsDataURL
	if baseURL == "" {
		baseURL = "https://newsdata.io/api/1/news"
	}
	return &NewsDataProvider{
		client:  newClient(cfg, limiter, respCache, cacheTTL),
		apiKey:  cfg.NewsDataAPIKey,
		baseURL: baseURL,
	}
}

// Name returns the provider name
func (p *NewsDataProvider) Name() string { return "newsdata" }

type newsDataResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Results []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Description string `json:"description"`
		PubDate     string `json:"pubDate"`
		SourceName  string `json:"source_name"`
		SourceID    string `json:"source_id"`
	} `json:"results"`
}

// Search runs one query against NewsData.io.
func (p *NewsDataProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]model.EvidenceArticle, error) {
	if p.apiKey == "" {
		return nil, &model.ConfigurationError{Field: "news.newsdata_api_key", Reason: "not set"}
	}

	return p.client.cached(p.Name(), query, opts, func() ([]model.EvidenceArticle, error) {
		params := url.Values{}
		params.Set("apikey", p.apiKey)
		params.Set("q", query)
		if opts.Language != "" {
			params.Set("language", opts.Language)
		}
		if opts.Country != "" {
			params.Set("country", opts.Country)
		}

		var resp newsDataResponse
		if err := p.client.getJSON(ctx, p.baseURL+"?"+params.Encode(), &resp); err != nil {
			return nil, &model.ProviderError{Provider: p.Name(), Query: query, Err: err}
		}
		if resp.Status != "success" {
			return nil, &model.ProviderError{Provider: p.Name(), Query: query, Err: fmt.Errorf("api error: %s", resp.Message)}
		}

		max := opts.Max
		if max <= 0 || max > len(resp.Results) {
			max = len(resp.Results)
		}

		articles := make([]model.EvidenceArticle, 0, max)
		for _, r := range resp.Results[:max] {
			sourceName := r.SourceName
			if sourceName == "" {
				sourceName = r.SourceID
			}
			article := model.EvidenceArticle{
				URL:            r.Link,
				Title:          r.Title,
				Snippet:        r.Description,
				SourceProvider: p.Name(),
				SourceName:     sourceName,
			}
			if t, err := time.Parse(newsDataTimeLayout, r.PubDate); err == nil {
				article.PublishedAt = t.UTC()
			}
			articles = append(articles, article)
		}
		return articles, nil
	})
}
