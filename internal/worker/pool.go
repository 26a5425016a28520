// Package worker provides the bounded-concurrency building blocks the
// pipeline runs on: a job pool for verification and batch fan-out, and a
// per-domain rate limiter for the news APIs.
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a pool of workers that execute jobs concurrently.
// Completed results accumulate in memory rather than on a channel, so
// workers never block on an undrained results buffer and Submit cannot
// deadlock no matter how many jobs are queued ahead of Wait.
type Pool struct {
	workers    int
	jobQueue   chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once

	mu      sync.Mutex
	results []Result
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			p.mu.Lock()
			p.results = append(p.results, result)
			p.mu.Unlock()
		}
	}
}

// Submit submits a job to the pool for execution. It blocks only while
// the queue is momentarily full; workers always drain it.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait waits for all submitted jobs to complete and returns their
// results. Completion order is not submission order; callers that need
// ordering carry an index in the job.
func (p *Pool) Wait() []Result {
	p.closeOnce.Do(func() {
		close(p.jobQueue)
	})
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results
}

// Shutdown shuts down the worker pool immediately. Queued jobs that
// never ran produce no results.
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
}
