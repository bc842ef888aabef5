package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"btp/internal/domain"
	"btp/internal/execution"
	"btp/internal/logger"
)

// Args makes the binary print its test hierarchy as a colorless DOT graph on stderr.
var Args = []string{"--list_content=DOT", "--color_output=no"}

// CommandRunner runs a short-lived command and captures its output.
type CommandRunner interface {
	Output(ctx context.Context, proc execution.Proc) (execution.Output, error)
}

// Discoverer asks target binaries for their test hierarchy.
type Discoverer struct {
	runner CommandRunner
	log    *log.Logger
}

// NewDiscoverer creates a new Discoverer
func NewDiscoverer(runner CommandRunner) *Discoverer {
	return &Discoverer{runner: runner, log: logger.WithComponent("discovery")}
}

// Discover runs the binary in list mode and builds its test tree. On failure
// the returned tree is the single error node for the target, never nil.
func (d *Discoverer) Discover(ctx context.Context, target *domain.Target) (*domain.Tree, error) {
	tree, err := d.discover(ctx, target)
	if err != nil {
		d.log.Error("Discovery failed", "target", target.ID, "path", target.Path, "err", err)
		return domain.ErrorTree(target, err), err
	}
	d.log.Debug("Discovered tests", "target", target.ID, "nodes", tree.Len(), "cases", tree.Cases(tree.Root))
	return tree, nil
}

func (d *Discoverer) discover(ctx context.Context, target *domain.Target) (*domain.Tree, error) {
	out, err := d.runner.Output(ctx, execution.Proc{
		Path: target.Path,
		Args: Args,
		Dir:  target.WorkDir(),
		Env:  target.EnvList(),
	})
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, &domain.DiscoveryFormatError{
			Reason: fmt.Sprintf("binary exited with code %d: %s", out.ExitCode, firstLine(out.Stderr)),
		}
	}

	graph, err := ParseGraph(string(out.Stderr))
	if err != nil {
		return nil, err
	}
	return BuildTree(target, graph)
}

// Job adapts the discoverer for the execution worker pool.
func (d *Discoverer) Job() execution.Job {
	return func(ctx context.Context, target *domain.Target) execution.JobResult {
		tree, err := d.Discover(ctx, target)
		return execution.JobResult{Tree: tree, Err: err}
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
