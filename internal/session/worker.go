package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/harshaverse/karmic/internal/platform/logger"
)

// Job is one optimization run, submitted after the session is already in
// the Processing state.
type Job struct {
	AssetID string
	Run     func(ctx context.Context) error
	Fail    func(id string, cause error)
}

// Pool runs optimization jobs on a fixed set of goroutines. A panicking
// pipeline fails its own session and never takes the worker down.
type Pool struct {
	jobs        chan Job
	concurrency int
	log         *logger.Logger
	wg          sync.WaitGroup
}

func NewPool(concurrency, queueSize int, log *logger.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		jobs:        make(chan Job, queueSize),
		concurrency: concurrency,
		log:         log.With("component", "OptimizerPool"),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.log.Info("Starting optimizer pool", "concurrency", p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		workerID := i + 1
		p.wg.Add(1)
		go p.runLoop(ctx, workerID)
	}
}

// Submit enqueues a job, blocking until a queue slot frees up.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

// Wait blocks until every worker loop has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runLoop(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case job := <-p.jobs:
			func() {
				defer func() {
					if r := recover(); r != nil {
						p.log.Error("Optimization panic",
							"worker_id", workerID,
							"asset_id", job.AssetID,
							"panic", r,
						)
						job.Fail(job.AssetID, fmt.Errorf("optimization panic: %v", r))
					}
				}()
				if err := job.Run(ctx); err != nil {
					// Pipelines fail their own session; this is a safety net.
					job.Fail(job.AssetID, err)
				}
			}()
		}
	}
}
