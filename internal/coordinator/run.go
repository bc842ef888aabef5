package coordinator

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"btp/internal/domain"
	"btp/internal/execution"
	"btp/internal/metrics"
	"btp/internal/monitor"
	"btp/internal/selection"
)

// Run executes the selected tests, one session per target, all targets in
// parallel. The reporter is called from one goroutine per target and must be
// safe for concurrent use. An empty selection runs everything.
//
// Targets with an active session are rejected and marked so in the record.
// Launch failures are reported as errors on the target root and returned
// joined; a non-zero exit code is not an error.
func (c *Coordinator) Run(ctx context.Context, items []domain.SelectionItem, reporter monitor.Reporter) (*domain.RunRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(items) == 0 {
		items = []domain.SelectionItem{{ID: domain.AllTargetsID}}
	}
	plans := selection.NewResolver(c.targetIDs()).Plans(items)
	if len(plans) == 0 {
		return nil, domain.ErrEmptySelection
	}

	start := time.Now()
	runs := make([]domain.TargetRun, len(plans))
	summaries := make([]monitor.Summary, len(plans))
	errs := make([]error, len(plans))

	var wg sync.WaitGroup
	for i, plan := range plans {
		target := c.index[plan.TargetID]
		if plan.Skip {
			c.log.Info("Skipping excluded binary", "target", target.ID)
			runs[i] = domain.TargetRun{TargetID: target.ID, Error: "excluded"}
			continue
		}
		if target.Tree.Failed() {
			c.log.Warn("Skipping binary whose discovery failed", "target", target.ID)
			runs[i] = domain.TargetRun{TargetID: target.ID, Error: "discovery failed: " + target.Tree.RootNode().Error}
			continue
		}
		wg.Add(1)
		go func(i int, target *domain.Target, plan selection.Plan) {
			defer wg.Done()
			runs[i], summaries[i], errs[i] = c.runTarget(ctx, target, plan, reporter)
		}(i, target, plan)
	}
	wg.Wait()

	record := c.record(start, runs, summaries)
	if c.storage != nil {
		if err := c.storage.Save(record); err != nil {
			c.log.Error("Failed to save run results", "err", err)
		}
	}
	return record, errors.Join(errs...)
}

func (c *Coordinator) runTarget(ctx context.Context, target *domain.Target, plan selection.Plan, reporter monitor.Reporter) (domain.TargetRun, monitor.Summary, error) {
	run := domain.TargetRun{TargetID: target.ID, Filter: plan.Filter}
	log := c.log.With("target", target.ID)

	args := slices.Clone(RunArgs)
	if len(plan.Filter) > 0 {
		args = append(args, "-t", selection.JoinFilter(plan.Filter))
	}
	session, err := c.runner.Start(ctx, target.ID, execution.Proc{
		Path:   target.Path,
		Args:   args,
		Dir:    target.WorkDir(),
		Env:    target.EnvList(),
		Stderr: func(line string) { log.Debug("stderr", "line", line) },
	})
	if errors.Is(err, domain.ErrSessionActive) {
		metrics.RecordSession(target.ID, "rejected")
		run.Rejected = true
		run.Error = err.Error()
		return run, monitor.Summary{}, nil
	}
	if err != nil {
		metrics.RecordSession(target.ID, "launch_error")
		run.ExitCode = -1
		run.Error = err.Error()
		if root := target.Tree.RootNode(); root != nil {
			reporter.Errored(root, []domain.Message{{Text: err.Error()}})
		}
		return run, monitor.Summary{}, err
	}

	mon := monitor.New(target, target.Tree, reporter, c.parser)
	for line := range session.Lines() {
		mon.Feed(line)
	}
	exit := session.Wait()

	var summary monitor.Summary
	if session.Cancelled() {
		// cases still open stay in their last reported state
		run.Cancelled = true
		summary = mon.Summary()
		metrics.RecordSession(target.ID, "cancelled")
		log.Info("Run cancelled", "passed", summary.Passed, "failed", summary.Failed)
	} else {
		summary = mon.Close()
		metrics.RecordSession(target.ID, "completed")
	}

	run.ExitCode = exit.Code
	if exit.Code != 0 && !run.Cancelled {
		run.StderrHead = session.StderrHead()
		log.Warn("Test binary exited with non-zero code", "code", exit.Code, "stderr", run.StderrHead)
	}
	if exit.Err != nil && !run.Cancelled {
		run.Error = exit.Err.Error()
	}
	return run, summary, nil
}

func (c *Coordinator) record(start time.Time, runs []domain.TargetRun, summaries []monitor.Summary) *domain.RunRecord {
	elapsed := time.Since(start)
	record := &domain.RunRecord{
		Meta: domain.RunMeta{
			RunID:           uuid.New().String(),
			Targets:         len(runs),
			Duration:        elapsed.Round(time.Millisecond).String(),
			DurationSeconds: elapsed.Seconds(),
			Timestamp:       start.Format(time.RFC3339),
		},
		Targets: runs,
	}
	for _, s := range summaries {
		record.Meta.PassedCases += s.Passed
		record.Meta.FailedCases += s.Failed
		record.Meta.ErroredCases += s.Errored
		record.Results = append(record.Results, s.Results...)
	}
	return record
}
