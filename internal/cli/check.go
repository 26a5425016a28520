package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factweave/internal/artifact"
	"github.com/ppiankov/factweave/internal/llm"
	"github.com/ppiankov/factweave/internal/model"
	"github.com/ppiankov/factweave/internal/pipeline"
	"github.com/ppiankov/factweave/internal/track"
)

var (
	artifactsDir string
	noResume     bool
	noCache      bool
	enrichTop    int
	timeout      time.Duration
	llmModel     string
	newsLang     string
	newsCountry  string
	trackRun     bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <article-file|->",
	Short: "Verify the claims in a single article",
	Long: `Check runs the full verification pipeline for one article:
- Extract checkable claims with the configured LLM
- Formulate news search queries per claim
- Retrieve coverage from NewsData.io and GNews.io
- Adjudicate each claim as Proved, Refuted, or Unclear

Stage outputs land next to the article as JSON artifacts. Re-running
the command resumes from whatever artifacts already exist; delete an
artifact to redo its stage.

Example:
  factweave check article.txt
  factweave check article.txt --artifacts-dir ./out --no-resume
  factweave check article.txt --enrich-top 3 --llm-model gpt-4o
  pbpaste | factweave check -`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&artifactsDir, "artifacts-dir", ".", "directory for stage artifacts")
	checkCmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore existing artifacts and rerun every stage")
	checkCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the news response cache")
	checkCmd.Flags().IntVar(&enrichTop, "enrich-top", 0, "fetch full page text for the top N evidence articles per claim")
	checkCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall run timeout")
	checkCmd.Flags().StringVar(&llmModel, "llm-model", "", "override the configured LLM model")
	checkCmd.Flags().StringVar(&newsLang, "language", "", "news search language code")
	checkCmd.Flags().StringVar(&newsCountry, "country", "", "news search country code")
	checkCmd.Flags().BoolVar(&trackRun, "track", false, "record the run under the track directory")
}

func runCheck(cmd *cobra.Command, args []string) error {
	articlePath := args[0]

	var articleText []byte
	var err error
	if articlePath == "-" {
		articleText, err = io.ReadAll(os.Stdin)
	} else {
		articleText, err = os.ReadFile(articlePath)
	}
	if err != nil {
		return fmt.Errorf("read article: %w", err)
	}

	cfg := buildConfig()
	cfg.Artifacts.Dir = artifactsDir
	cfg.Artifacts.Resume = !noResume
	cfg.Cache.Enabled = !noCache
	cfg.Evidence.EnrichTop = enrichTop
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if newsLang != "" {
		cfg.News.Language = newsLang
	}
	if newsCountry != "" {
		cfg.News.Country = newsCountry
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if verbose {
		if provider, perr := llm.NewProvider(cfg.LLM); perr == nil && !provider.IsAvailable(ctx) {
			fmt.Fprintln(os.Stderr, "Warning: LLM provider availability check failed")
		}
	}

	// Tracked runs get their own directory for article and artifacts
	var run *track.Run
	if trackRun {
		tracker, err := track.NewTracker(cfg.Artifacts.TrackDir)
		if err != nil {
			return err
		}
		run, err = tracker.Begin(string(articleText))
		if err != nil {
			return err
		}
		cfg.Artifacts.Dir = run.Dir()
		fmt.Fprintf(os.Stderr, "Run: %s\n", run.ID())
	}

	store, err := artifact.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		return err
	}

	status := func(s pipeline.Status) {
		if run != nil {
			run.StageStarted(string(s.Stage), s.Resumed)
		}
		if s.Resumed {
			fmt.Fprintf(os.Stderr, "✓ %s (resumed: %s)\n", s.Stage, s.Message)
			return
		}
		if s.Message != "" {
			fmt.Fprintf(os.Stderr, "⚙️  %s: %s\n", s.Stage, s.Message)
		} else {
			fmt.Fprintf(os.Stderr, "⚙️  %s...\n", s.Stage)
		}
	}

	p, err := buildPipeline(cfg, store, status)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, string(articleText))
	if run != nil {
		if result != nil {
			_ = run.Finish(result.Claims, result.Queries, result.Verdicts, err)
		} else {
			_ = run.Finish(nil, nil, nil, err)
		}
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	printVerdicts(result)
	fmt.Fprintf(os.Stderr, "\nArtifacts: %s\n", store.Dir())
	return nil
}

func printVerdicts(result *pipeline.Result) {
	claimText := make(map[string]string, len(result.Claims))
	for _, c := range result.Claims {
		claimText[c.ID] = c.Text
	}

	counts := make(map[model.Verdict]int)
	fmt.Println()
	for _, v := range result.Verdicts {
		counts[v.Verdict]++
		fmt.Printf("[%s] %s\n", v.Verdict, claimText[v.ClaimID])
		fmt.Printf("    confidence: %.2f\n", v.Confidence)
		if v.Rationale != "" {
			fmt.Printf("    rationale:  %s\n", v.Rationale)
		}
		for _, src := range v.Sources {
			fmt.Printf("    source:     %s\n", src)
		}
		fmt.Println()
	}

	fmt.Printf("%d claims: %d proved, %d refuted, %d unclear (%.1fs)\n",
		len(result.Verdicts),
		counts[model.VerdictProved],
		counts[model.VerdictRefuted],
		counts[model.VerdictUnclear],
		result.Elapsed.Seconds())
}
