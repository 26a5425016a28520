// Package track records per-run history: each run gets its own directory
// holding the input article, the stage artifacts, and a metrics summary.
package track

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/factweave/internal/model"
)

const (
	articleFile = "article.txt"
	metricsFile = "metrics.json"
)

// nowFunc is the tracker clock (injectable for tests)
var nowFunc = time.Now

// StageTiming is one entry in the run timeline.
type StageTiming struct {
	Stage     string    `json:"stage"`
	StartedAt time.Time `json:"started_at"`
	Resumed   bool      `json:"resumed,omitempty"`
}

// Metrics summarizes one finished run.
type Metrics struct {
	RunID          string         `json:"run_id"`
	State          string         `json:"state"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	DurationMS     int64          `json:"duration_ms"`
	ClaimCount     int            `json:"claim_count"`
	QueryCount     int            `json:"query_count"`
	VerdictCounts  map[string]int `json:"verdict_counts"`
	MeanConfidence float64        `json:"mean_confidence"`
	Timeline       []StageTiming  `json:"timeline"`
	Error          string         `json:"error,omitempty"`
}

// Tracker creates run directories under one base directory.
type Tracker struct {
	baseDir string
}

// NewTracker creates a tracker rooted at dir.
func NewTracker(dir string) (*Tracker, error) {
	if dir == "" {
		dir = "runs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating track directory: %w", err)
	}
	return &Tracker{baseDir: dir}, nil
}

// Begin opens a new run directory and stores the input article.
func (t *Tracker) Begin(articleText string) (*Run, error) {
	started := nowFunc().UTC()
	id := started.Format("20060102-150405") + fmt.Sprintf("-%04d", started.Nanosecond()%10000)
	dir := filepath.Join(t.baseDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, articleFile), []byte(articleText), 0o644); err != nil {
		return nil, fmt.Errorf("storing article: %w", err)
	}
	return &Run{id: id, dir: dir, startedAt: started}, nil
}

// Run is one tracked pipeline execution.
type Run struct {
	id        string
	dir       string
	startedAt time.Time

	mu       sync.Mutex
	timeline []StageTiming
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Dir returns the run directory. The pipeline's artifact store is pointed
// here so artifacts land next to the article and metrics.
func (r *Run) Dir() string { return r.dir }

// StageStarted appends a timeline entry. Safe for concurrent use.
func (r *Run) StageStarted(stage string, resumed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeline = append(r.timeline, StageTiming{Stage: stage, StartedAt: nowFunc().UTC(), Resumed: resumed})
}

// Finish writes metrics.json summarizing the run. A nil runErr marks the
// run done; otherwise state is failed and the error is recorded.
func (r *Run) Finish(claims []model.Claim, queries []model.SearchQuery, verdicts []model.VerdictRecord, runErr error) error {
	finished := nowFunc().UTC()

	counts := make(map[string]int)
	var confidenceSum float64
	for _, v := range verdicts {
		counts[string(v.Verdict)]++
		confidenceSum += v.Confidence
	}
	var mean float64
	if len(verdicts) > 0 {
		mean = confidenceSum / float64(len(verdicts))
	}

	state := "done"
	errText := ""
	if runErr != nil {
		state = "failed"
		errText = runErr.Error()
	}

	r.mu.Lock()
	timeline := append([]StageTiming(nil), r.timeline...)
	r.mu.Unlock()

	metrics := Metrics{
		RunID:          r.id,
		State:          state,
		StartedAt:      r.startedAt,
		FinishedAt:     finished,
		DurationMS:     finished.Sub(r.startedAt).Milliseconds(),
		ClaimCount:     len(claims),
		QueryCount:     len(queries),
		VerdictCounts:  counts,
		MeanConfidence: mean,
		Timeline:       timeline,
		Error:          errText,
	}

	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, metricsFile), data, 0o644); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// RunDir resolves the directory of a tracked run by ID, including runs
// recorded by an earlier process. IDs that are not a plain directory name
// are rejected.
func (t *Tracker) RunDir(runID string) (string, error) {
	if runID == "" || runID == ".." || runID != filepath.Base(runID) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	dir := filepath.Join(t.baseDir, runID)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("resolving run %s: %w", runID, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("run %s: not a directory", runID)
	}
	return dir, nil
}

// LoadMetrics reads a run's metrics summary by ID.
func (t *Tracker) LoadMetrics(runID string) (*Metrics, error) {
	data, err := os.ReadFile(filepath.Join(t.baseDir, runID, metricsFile))
	if err != nil {
		return nil, fmt.Errorf("reading metrics for %s: %w", runID, err)
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding metrics for %s: %w", runID, err)
	}
	return &m, nil
}
