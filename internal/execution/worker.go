package execution

import (
	"context"
	"sync"
	"time"

	"btp/internal/domain"
)

// Progress receives completion updates from the worker pool.
type Progress interface {
	Update(succeeded, failed int)
	Finish()
}

// WorkerPool runs jobs for several targets in parallel.
type WorkerPool struct {
	workers  int
	progress Progress
}

var _ Executor = (*WorkerPool)(nil)

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(workers int) *WorkerPool {
	return &WorkerPool{workers: workers}
}

// SetProgress sets the progress reporter for the worker pool
func (wp *WorkerPool) SetProgress(progress Progress) {
	wp.progress = progress
}

// Execute runs job for every target and returns the results in target order.
func (wp *WorkerPool) Execute(ctx context.Context, targets []*domain.Target, job Job) ([]JobResult, time.Duration) {
	if len(targets) == 0 {
		return nil, 0
	}

	type indexed struct {
		index  int
		target *domain.Target
	}
	queue := make(chan indexed, len(targets))
	for i, t := range targets {
		queue <- indexed{index: i, target: t}
	}
	close(queue)

	results := make([]JobResult, len(targets))
	var mu sync.Mutex
	var succeeded, failed int
	startTime := time.Now()

	workerCount := wp.workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(targets) {
		workerCount = len(targets)
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				start := time.Now()
				result := job(ctx, item.target)
				result.Target = item.target
				result.Duration = time.Since(start)
				results[item.index] = result

				mu.Lock()
				if result.Err != nil {
					failed++
				} else {
					succeeded++
				}
				if wp.progress != nil {
					wp.progress.Update(succeeded, failed)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wp.progress != nil {
		wp.progress.Finish()
	}
	return results, time.Since(startTime)
}
