package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factweave/internal/artifact"
	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/pipeline"
	"github.com/ppiankov/factweave/internal/track"
	"github.com/ppiankov/factweave/internal/worker"
)

var (
	batchConcurrency int
	batchTimeout     time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Verify multiple articles from a manifest in parallel",
	Long: `Batch verifies multiple articles concurrently:
- Read article file paths from a manifest (one per line, # comments)
- Run the full pipeline per article with a bounded worker count
- Each article gets its own tracked run directory with artifacts

Example:
  factweave batch articles.txt
  factweave batch articles.txt --concurrency 4 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 2, "number of articles verified in parallel")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the news response cache")
	batchCmd.Flags().IntVar(&enrichTop, "enrich-top", 0, "fetch full page text for the top N evidence articles per claim")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "override the configured LLM model")
}

// articleRunner runs one article through its own tracked pipeline.
type articleRunner struct {
	cfg     *model.Config
	tracker *track.Tracker
}

func (r *articleRunner) Process(ctx context.Context, path string) *worker.ArticleResult {
	articleText, err := os.ReadFile(path)
	if err != nil {
		return &worker.ArticleResult{Path: path, Error: fmt.Errorf("read article: %w", err)}
	}

	run, err := r.tracker.Begin(string(articleText))
	if err != nil {
		return &worker.ArticleResult{Path: path, Error: err}
	}

	// Per-run config copy: each article resumes from its own directory
	cfg := *r.cfg
	cfg.Artifacts.Dir = run.Dir()

	store, err := artifact.NewStore(run.Dir())
	if err != nil {
		return &worker.ArticleResult{Path: path, Error: err}
	}

	p, err := buildPipeline(&cfg, store, func(s pipeline.Status) {
		run.StageStarted(string(s.Stage), s.Resumed)
	})
	if err != nil {
		return &worker.ArticleResult{Path: path, Error: err}
	}

	result, err := p.Run(ctx, string(articleText))
	if result != nil {
		_ = run.Finish(result.Claims, result.Queries, result.Verdicts, err)
	} else {
		_ = run.Finish(nil, nil, nil, err)
	}
	if err != nil {
		return &worker.ArticleResult{Path: path, RunDir: run.Dir(), Error: err}
	}

	return &worker.ArticleResult{Path: path, RunDir: run.Dir(), Verdicts: result.Verdicts}
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg := buildConfig()
	cfg.Cache.Enabled = !noCache
	cfg.Evidence.EnrichTop = enrichTop
	cfg.Concurrency.BatchWorkers = batchConcurrency
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	tracker, err := track.NewTracker(cfg.Artifacts.TrackDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Manifest: %s\n", manifest)
	fmt.Fprintf(os.Stderr, "Workers:  %d\n\n", batchConcurrency)

	processor := worker.NewBatchProcessor(&articleRunner{cfg: cfg, tracker: tracker}, batchConcurrency)
	results, err := processor.ProcessFile(ctx, manifest)
	if err != nil {
		return fmt.Errorf("process manifest: %w", err)
	}

	successCount := 0
	failureCount := 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}
		successCount++

		counts := make(map[model.Verdict]int)
		for _, v := range result.Verdicts {
			counts[v.Verdict]++
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d claims (%d proved, %d refuted, %d unclear) -> %s\n",
			result.Path, len(result.Verdicts),
			counts[model.VerdictProved], counts[model.VerdictRefuted], counts[model.VerdictUnclear],
			result.RunDir)
	}

	fmt.Fprintf(os.Stderr, "\nTotal: %d articles, %d succeeded, %d failed\n", len(results), successCount, failureCount)
	if failureCount > 0 {
		return fmt.Errorf("%d of %d articles failed", failureCount, len(results))
	}
	return nil
}
