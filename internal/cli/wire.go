package cli

import (
	"os"

	"github.com/spf13/viper"

	"github.com/ppiankov/factweave/internal/artifact"
	"github.com/ppiankov/factweave/internal/cache"
	"github.com/ppiankov/factweave/internal/evidence"
	"github.com/ppiankov/factweave/internal/extract"
	"github.com/ppiankov/factweave/internal/llm"
	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/news"
	"github.com/ppiankov/factweave/internal/pipeline"
	"github.com/ppiankov/factweave/internal/query"
	"github.com/ppiankov/factweave/internal/verify"
	"github.com/ppiankov/factweave/internal/worker"
)

// buildConfig assembles the effective configuration: defaults, then the
// config file, then environment variables. API keys come from the
// environment only.
func buildConfig() *model.Config {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		// A malformed config file surfaces later through validation
		cfg = model.DefaultConfig()
	}

	cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.News.NewsDataAPIKey = os.Getenv("NEWSDATA_API_KEY")
	cfg.News.GNewsAPIKey = os.Getenv("GNEWS_API_KEY")
	cfg.Output.Verbose = verbose

	return cfg
}

// buildPipeline assembles the real stage components around an artifact
// store. Both news providers share one rate limiter and response cache.
func buildPipeline(cfg *model.Config, store *artifact.Store, status pipeline.StatusFunc) (*pipeline.Pipeline, error) {
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	extractor := extract.NewClaimExtractor(provider, cfg.LLM)
	formulator := query.NewFormulator(provider, cfg.Evidence.MaxQueriesPerClaim)

	var respCache cache.Cache
	if cfg.Cache.Enabled {
		respCache = cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
	}
	limiter := worker.NewLimiter(cfg.News.RatePerSecond, cfg.News.RateBurst)
	// GNews free tier throttles harder than NewsData
	limiter.SetDomainRate("gnews.io", 1, 2)

	providers := []news.Provider{
		news.NewNewsDataProvider(cfg.News, limiter, respCache, cfg.Cache.TTL),
		news.NewGNewsProvider(cfg.News, limiter, respCache, cfg.Cache.TTL),
	}

	var enricher *evidence.PageEnricher
	if cfg.Evidence.EnrichTop > 0 {
		enricher = evidence.NewPageEnricher(cfg.Evidence)
	}
	fetcher := evidence.NewFetcher(providers, cfg.Evidence, cfg.News, cfg.Concurrency.FetchWorkers, enricher)

	verifier := verify.NewVerifier(provider, cfg.LLM)

	return pipeline.NewPipeline(extractor, formulator, fetcher, verifier, store, cfg, status), nil
}
