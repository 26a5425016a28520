package model

import "time"

// Config is the process-wide configuration, constructed once at startup and
// passed by reference to every component. No component reads environment
// state directly.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	News        NewsConfig        `yaml:"news" mapstructure:"news"`
	Evidence    EvidenceConfig    `yaml:"evidence" mapstructure:"evidence"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Artifacts   ArtifactConfig    `yaml:"artifacts" mapstructure:"artifacts"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// LLMConfig configures the language-model collaborator.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"-"` // Secrets never serialize to config files
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// NewsConfig configures the two news-search providers.
type NewsConfig struct {
	NewsDataAPIKey string        `yaml:"-" mapstructure:"-"`
	GNewsAPIKey    string        `yaml:"-" mapstructure:"-"`
	NewsDataURL    string        `yaml:"newsdata_url" mapstructure:"newsdata_url"`
	GNewsURL       string        `yaml:"gnews_url" mapstructure:"gnews_url"`
	Language       string        `yaml:"language" mapstructure:"language"`
	Country        string        `yaml:"country" mapstructure:"country"`
	MaxPerQuery    int           `yaml:"max_per_query" mapstructure:"max_per_query"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// EvidenceConfig configures merge, filter, and ranking behavior.
// Thresholds are explicit constants rather than inferred behavior.
type EvidenceConfig struct {
	MinTokenOverlap    int           `yaml:"min_token_overlap" mapstructure:"min_token_overlap"`       // Claim/article shared content tokens
	RecencyWindowDays  int           `yaml:"recency_window_days" mapstructure:"recency_window_days"`   // 0 disables the recency filter
	MaxPerClaim        int           `yaml:"max_per_claim" mapstructure:"max_per_claim"`               // Evidence cap after ranking
	MaxQueriesPerClaim int           `yaml:"max_queries_per_claim" mapstructure:"max_queries_per_claim"`
	EnrichTop          int           `yaml:"enrich_top" mapstructure:"enrich_top"` // 0 disables page enrichment
	UserAgent          string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	PageTimeout        time.Duration `yaml:"page_timeout" mapstructure:"page_timeout"`
}

// CacheConfig configures provider-response caching.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig bounds the pipeline's parallelism.
type ConcurrencyConfig struct {
	FetchWorkers  int `yaml:"fetch_workers" mapstructure:"fetch_workers"`   // query x provider requests in flight
	VerifyWorkers int `yaml:"verify_workers" mapstructure:"verify_workers"` // claims verified in parallel
	BatchWorkers  int `yaml:"batch_workers" mapstructure:"batch_workers"`   // articles processed in parallel
}

// ArtifactConfig controls where stage artifacts and run records land.
type ArtifactConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	TrackDir string `yaml:"track_dir" mapstructure:"track_dir"`
	Resume   bool   `yaml:"resume" mapstructure:"resume"` // Resume from existing stage artifacts
}

// OutputConfig controls terminal output.
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     30,
			MaxTokens:   2500,
			Temperature: 0.2,
		},
		News: NewsConfig{
			NewsDataURL:   "https://newsdata.io/api/1/news",
			GNewsURL:      "https://gnews.io/api/v4/search",
			Language:      "en",
			Country:       "in",
			MaxPerQuery:   10,
			Timeout:       10 * time.Second,
			RatePerSecond: 2,
			RateBurst:     4,
			MaxRetries:    3,
		},
		Evidence: EvidenceConfig{
			MinTokenOverlap:    2,
			RecencyWindowDays:  365,
			MaxPerClaim:        8,
			MaxQueriesPerClaim: 4,
			EnrichTop:          0,
			UserAgent:          "Factweave/0.1 (+https://github.com/ppiankov/factweave)",
			MaxBodyBytes:       2_000_000,
			PageTimeout:        10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".factweave-cache",
			TTL:     30 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			FetchWorkers:  8,
			VerifyWorkers: 4,
			BatchWorkers:  2,
		},
		Artifacts: ArtifactConfig{
			Dir:      ".",
			TrackDir: "runs",
			Resume:   true,
		},
	}
}

// Validate checks that every required credential is present. A missing key
// is a fatal ConfigurationError surfaced before pipeline start.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return &ConfigurationError{Field: "llm.api_key", Reason: "OPENAI_API_KEY is not set"}
	}
	if c.News.NewsDataAPIKey == "" {
		return &ConfigurationError{Field: "news.newsdata_api_key", Reason: "NEWSDATA_API_KEY is not set"}
	}
	if c.News.GNewsAPIKey == "" {
		return &ConfigurationError{Field: "news.gnews_api_key", Reason: "GNEWS_API_KEY is not set"}
	}
	if c.Evidence.MaxPerClaim <= 0 {
		return &ConfigurationError{Field: "evidence.max_per_claim", Reason: "must be positive"}
	}
	if c.Evidence.MaxQueriesPerClaim <= 0 {
		return &ConfigurationError{Field: "evidence.max_queries_per_claim", Reason: "must be positive"}
	}
	return nil
}
