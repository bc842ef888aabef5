package execution

import (
	"context"
	"time"

	"btp/internal/domain"
)

// Job is the work done for one target, e.g. discovering its test tree.
type Job func(ctx context.Context, target *domain.Target) JobResult

// JobResult is the outcome of a Job.
type JobResult struct {
	Target   *domain.Target
	Tree     *domain.Tree
	Err      error
	Duration time.Duration
}

// Executor runs a job for each target
type Executor interface {
	Execute(ctx context.Context, targets []*domain.Target, job Job) ([]JobResult, time.Duration)
}
