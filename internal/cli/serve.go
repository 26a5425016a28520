package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factweave/internal/artifact"
	"github.com/ppiankov/factweave/internal/llm"
	"github.com/ppiankov/factweave/internal/pipeline"
	"github.com/ppiankov/factweave/internal/server"
	"github.com/ppiankov/factweave/internal/track"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification pipeline as an HTTP service",
	Long: `Serve exposes the pipeline over HTTP:
  POST /runs                        submit an article, returns a run ID
  GET  /runs/{id}                   poll run status
  GET  /runs/{id}/artifacts/{name}  download a stage artifact

Example:
  factweave serve --addr :8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&enrichTop, "enrich-top", 0, "fetch full page text for the top N evidence articles per claim")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	cfg.Evidence.EnrichTop = enrichTop

	if err := cfg.Validate(); err != nil {
		return err
	}
	// Surface a bad provider name now instead of on the first request
	if _, err := llm.NewProvider(cfg.LLM); err != nil {
		return err
	}

	tracker, err := track.NewTracker(cfg.Artifacts.TrackDir)
	if err != nil {
		return err
	}

	factory := func(store *artifact.Store, status pipeline.StatusFunc) *pipeline.Pipeline {
		// Fresh server runs never resume from a previous run's artifacts
		runCfg := *cfg
		runCfg.Artifacts.Resume = false
		p, err := buildPipeline(&runCfg, store, status)
		if err != nil {
			panic(fmt.Sprintf("building pipeline: %v", err))
		}
		return p
	}

	srv := server.New(tracker, factory)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Listening on %s\n", serveAddr)
	return srv.ListenAndServe(ctx, serveAddr)
}
