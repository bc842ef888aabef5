// Package coordinator serializes discovery, run, debug and cancel requests over
// the registered test binaries.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"btp/internal/discovery"
	"btp/internal/domain"
	"btp/internal/execution"
	"btp/internal/launch"
	"btp/internal/logger"
	"btp/internal/metrics"
	"btp/internal/parser"
	"btp/internal/storage"
)

var (
	// RunArgs select the suite-level log reporter and leave exception
	// translation and leak detection to the binary.
	RunArgs = []string{"--log_level=test_suite", "--catch_system_errors=no", "--detect_memory_leaks=0", "--color_output=no"}
	// DebugArgs ask for full reporting when started under a debugger.
	DebugArgs = []string{"--log_level=all", "--report_level=detailed", "--color_output=no"}
)

// TreeSink is notified whenever a target's tree is replaced by discovery.
type TreeSink interface {
	TreeReplaced(targetID string, tree *domain.Tree)
}

// Options configures a Coordinator. Runner is required.
type Options struct {
	Runner     *execution.Runner
	Workers    int
	Progress   execution.Progress
	Parser     parser.Parser
	Storage    storage.Storage
	Sink       TreeSink
	LaunchFile string
	Launcher   launch.Launcher
}

// Coordinator owns the target set. Discovery takes the write lock, runs and
// debug requests hold the read lock until they finish.
type Coordinator struct {
	mu      sync.RWMutex
	targets []*domain.Target
	index   map[string]*domain.Target

	runner     *execution.Runner
	discoverer *discovery.Discoverer
	pool       execution.Executor
	parser     parser.Parser
	storage    storage.Storage
	sink       TreeSink
	launchFile string
	launcher   launch.Launcher
	log        *log.Logger
}

// New creates a coordinator with no targets.
func New(opts Options) *Coordinator {
	pool := execution.NewWorkerPool(opts.Workers)
	if opts.Progress != nil {
		pool.SetProgress(opts.Progress)
	}
	p := opts.Parser
	if p == nil {
		p = parser.NewBoostParser()
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = launch.FileLauncher{}
	}
	return &Coordinator{
		index:      make(map[string]*domain.Target),
		runner:     opts.Runner,
		discoverer: discovery.NewDiscoverer(opts.Runner),
		pool:       pool,
		parser:     p,
		storage:    opts.Storage,
		sink:       opts.Sink,
		launchFile: opts.LaunchFile,
		launcher:   launcher,
		log:        logger.WithComponent("coordinator"),
	}
}

// SetSink replaces the tree sink.
func (c *Coordinator) SetSink(sink TreeSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Targets returns the registered targets in registration order.
func (c *Coordinator) Targets() []*domain.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.targets)
}

// Target returns a registered target by id.
func (c *Coordinator) Target(id string) (*domain.Target, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.index[id]
	return t, ok
}

// Load replaces the target set and discovers every target in parallel. Every
// target ends up with a tree; failed discoveries get an error tree and their
// errors are returned joined.
func (c *Coordinator) Load(ctx context.Context, targets []*domain.Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.targets = slices.Clone(targets)
	c.index = make(map[string]*domain.Target, len(targets))
	for _, t := range targets {
		c.index[t.ID] = t
	}

	results, elapsed := c.pool.Execute(ctx, c.targets, c.discoverer.Job())
	var errs []error
	for _, r := range results {
		c.replaceTree(r.Target, r.Tree, r.Err, r.Duration)
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Target.ID, r.Err))
		}
	}
	c.log.Info("Discovery finished", "targets", len(targets), "failed", len(errs), "elapsed", elapsed.Round(time.Millisecond))
	return errors.Join(errs...)
}

// Reload rediscovers one target, e.g. after its binary was rebuilt.
func (c *Coordinator) Reload(ctx context.Context, targetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.index[targetID]
	if !ok {
		return fmt.Errorf("unknown target %q", targetID)
	}
	start := time.Now()
	tree, err := c.discoverer.Discover(ctx, target)
	c.replaceTree(target, tree, err, time.Since(start))
	return err
}

func (c *Coordinator) replaceTree(target *domain.Target, tree *domain.Tree, err error, d time.Duration) {
	if tree == nil {
		tree = domain.ErrorTree(target, err)
	}
	target.Tree = tree
	metrics.RecordDiscovery(target.ID, d, err)
	if c.sink != nil {
		c.sink.TreeReplaced(target.ID, tree)
	}
}

func (c *Coordinator) targetIDs() []string {
	ids := make([]string, len(c.targets))
	for i, t := range c.targets {
		ids[i] = t.ID
	}
	return ids
}

// Cancel kills every running session. It does not wait for the processes and
// does not take the lock, so it can interrupt a Run in progress.
func (c *Coordinator) Cancel() int {
	return c.runner.CancelAll()
}
