package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/factweave/internal/model"
)

// ArticleProcessor runs the verification pipeline for one article file.
type ArticleProcessor interface {
	Process(ctx context.Context, path string) *ArticleResult
}

// ArticleResult is the outcome of one article run.
type ArticleResult struct {
	Path     string
	RunDir   string
	Verdicts []model.VerdictRecord
	Error    error
}

// GetError returns the error from the article result
func (r *ArticleResult) GetError() error {
	return r.Error
}

// articleJob adapts one article path to the pool's Job interface.
type articleJob struct {
	path      string
	processor ArticleProcessor
}

func (j *articleJob) Execute(ctx context.Context) Result {
	return j.processor.Process(ctx, j.path)
}

// BatchProcessor verifies multiple articles concurrently.
type BatchProcessor struct {
	processor   ArticleProcessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor ArticleProcessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessArticles runs the pipeline for every article path concurrently.
func (b *BatchProcessor) ProcessArticles(ctx context.Context, paths []string) []*ArticleResult {
	if len(paths) == 0 {
		return []*ArticleResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, path := range paths {
		pool.Submit(&articleJob{path: path, processor: b.processor})
	}

	results := pool.Wait()

	articleResults := make([]*ArticleResult, len(results))
	for i, result := range results {
		articleResults[i] = result.(*ArticleResult)
	}

	return articleResults
}

// ProcessFile reads article paths from a manifest file and processes them
// concurrently.
func (b *BatchProcessor) ProcessFile(ctx context.Context, manifestPath string) ([]*ArticleResult, error) {
	paths, err := ReadArticleList(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read article list: %w", err)
	}

	return b.ProcessArticles(ctx, paths), nil
}

// ReadArticleList reads article paths from a manifest (one per line).
// Empty lines and # comments are skipped, duplicates dropped.
func ReadArticleList(manifestPath string) ([]string, error) {
	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	return paths, nil
}
