package ntp

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Target identifies one daemon
type Target struct {
	Host string
	Port int
}

// String returns host:port
func (t Target) String() string {
	return targetKey(t.Host, t.Port)
}

// JobResult contains the outcome of querying one target.
type JobResult struct {
	Target   Target
	Result   *Result
	Error    error
	Duration time.Duration
}

type job struct {
	index  int
	target Target
}

// WorkerPool queries several daemons with bounded parallelism.
type WorkerPool struct {
	size    int
	querier Querier
}

// NewWorkerPool creates a new worker pool with the specified size.
// size determines the maximum number of concurrent queries.
func NewWorkerPool(size int, querier Querier) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		querier: querier,
	}
}

// QueryAll queries every target once. Results are in target order; targets
// not reached before ctx is done carry the context error.
func (wp *WorkerPool) QueryAll(ctx context.Context, targets []Target) ([]JobResult, error) {
	if len(targets) == 0 {
		return nil, errors.New("no targets to query")
	}

	results := make([]JobResult, len(targets))
	jobs := make(chan job)

	workerCount := wp.size
	if workerCount > len(targets) {
		workerCount = len(targets)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = wp.process(ctx, j.target)
			}
		}()
	}

	submitted := 0
submit:
	for i, target := range targets {
		select {
		case jobs <- job{index: i, target: target}:
			submitted++
		case <-ctx.Done():
			break submit
		}
	}
	close(jobs)
	wg.Wait()

	for i := submitted; i < len(targets); i++ {
		results[i] = JobResult{Target: targets[i], Error: ctx.Err()}
	}

	return results, nil
}

func (wp *WorkerPool) process(ctx context.Context, target Target) JobResult {
	start := time.Now()
	result, err := wp.querier.Query(ctx, target.Host, target.Port)

	return JobResult{
		Target:   target,
		Result:   result,
		Error:    err,
		Duration: time.Since(start),
	}
}

// Size returns the configured worker pool size.
func (wp *WorkerPool) Size() int {
	return wp.size
}
