// Package server exposes the pipeline over HTTP: submit an article,
// poll run status, and download stage artifacts.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ppiankov/factweave/internal/artifact"
	"github.com/ppiankov/factweave/internal/pipeline"
	"github.com/ppiankov/factweave/internal/track"
)

// maxArticleBytes bounds the request body for run submission.
const maxArticleBytes = 1 << 20

// PipelineFactory builds a pipeline writing artifacts to the given store.
// The server calls it once per run so each run gets its own directory.
type PipelineFactory func(store *artifact.Store, status pipeline.StatusFunc) *pipeline.Pipeline

// Server handles run submission and inspection.
type Server struct {
	router  *mux.Router
	tracker *track.Tracker
	factory PipelineFactory

	mu   sync.RWMutex
	runs map[string]*runState
}

// runState is the live view of one run.
type runState struct {
	ID    string `json:"run_id"`
	State string `json:"state"` // running, done, failed
	Stage string `json:"stage"`
	Error string `json:"error,omitempty"`

	dir string
}

// New creates a server.
func New(tracker *track.Tracker, factory PipelineFactory) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		tracker: tracker,
		factory: factory,
		runs:    make(map[string]*runState),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/runs", s.handleCreateRun).Methods(http.MethodPost)
	s.router.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/artifacts/{name}", s.handleGetArtifact).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type createRunRequest struct {
	Article string `json:"article"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxArticleBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Article == "" {
		writeError(w, http.StatusBadRequest, "article is required")
		return
	}

	run, err := s.tracker.Begin(req.Article)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("starting run: %v", err))
		return
	}

	state := &runState{ID: run.ID(), State: "running", Stage: string(pipeline.StageIdle), dir: run.Dir()}
	s.mu.Lock()
	s.runs[run.ID()] = state
	s.mu.Unlock()

	go s.execute(run, state, req.Article)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"run_id": run.ID()})
}

// execute runs the pipeline for one submitted article. Runs outlive the
// submitting request, so they get their own context.
func (s *Server) execute(run *track.Run, state *runState, articleText string) {
	store, err := artifact.NewStore(run.Dir())
	if err != nil {
		s.finish(run, state, nil, fmt.Errorf("creating artifact store: %w", err))
		return
	}

	p := s.factory(store, func(st pipeline.Status) {
		run.StageStarted(string(st.Stage), st.Resumed)
		s.mu.Lock()
		state.Stage = string(st.Stage)
		s.mu.Unlock()
	})

	result, err := p.Run(context.Background(), articleText)
	s.finish(run, state, result, err)
}

func (s *Server) finish(run *track.Run, state *runState, result *pipeline.Result, err error) {
	s.mu.Lock()
	if err != nil {
		state.State = "failed"
		state.Error = err.Error()
	} else {
		state.State = "done"
		state.Stage = string(pipeline.StageDone)
	}
	s.mu.Unlock()

	if result != nil {
		_ = run.Finish(result.Claims, result.Queries, result.Verdicts, err)
	} else {
		_ = run.Finish(nil, nil, nil, err)
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	state, ok := s.runs[id]
	var snapshot runState
	if ok {
		snapshot = *state
	}
	s.mu.RUnlock()

	if ok {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshot)
		return
	}

	// Not in memory: the run may predate this process
	metrics, err := s.tracker.LoadMetrics(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(metrics)
}

var artifactNames = map[string]bool{
	artifact.FileClaims:   true,
	artifact.FileQueries:  true,
	artifact.FileEvidence: true,
	artifact.FileVerdicts: true,
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, name := vars["id"], vars["name"]

	if !artifactNames[name] {
		writeError(w, http.StatusNotFound, "unknown artifact")
		return
	}

	s.mu.RLock()
	state, ok := s.runs[id]
	s.mu.RUnlock()

	var dir string
	if ok {
		dir = state.dir
	} else {
		// Not in memory: the run may predate this process. Resolve its
		// directory from the tracker, as handleGetRun does for metrics.
		resolved, err := s.tracker.RunDir(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown run")
			return
		}
		dir = resolved
	}

	store, err := artifact.NewStore(dir)
	if err != nil || !store.Has(name) {
		writeError(w, http.StatusNotFound, "artifact not available yet")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, store.Path(name))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
