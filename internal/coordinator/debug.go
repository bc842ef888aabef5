package coordinator

import (
	"context"
	"fmt"
	"slices"

	"btp/internal/domain"
	"btp/internal/launch"
	"btp/internal/selection"
)

// Debug prepares the target's named launch profile for the selected tests and
// hands it to the launcher. The debuggee itself is never supervised here.
func (c *Coordinator) Debug(ctx context.Context, items []domain.SelectionItem) (launch.Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(items) == 0 {
		items = []domain.SelectionItem{{ID: domain.AllTargetsID}}
	}
	plans := selection.NewResolver(c.targetIDs()).Plans(items)
	switch {
	case len(plans) == 0:
		return nil, domain.ErrEmptySelection
	case len(plans) > 1:
		return nil, domain.ErrMultiTargetDebug
	}
	plan := plans[0]
	target := c.index[plan.TargetID]
	// an excluded root leaves nothing to debug; an empty filter would mean "everything"
	if plan.Skip {
		return nil, domain.ErrEmptySelection
	}
	if target.Tree.Failed() {
		return nil, fmt.Errorf("%s: %w: %s", target.ID, domain.ErrDiscoveryFailed, target.Tree.RootNode().Error)
	}

	if target.DebugProfile == "" {
		return nil, domain.ErrNoDebugProfile
	}
	if c.runner.Active(target.ID) {
		c.log.Warn("Rejecting debug, binary is already running", "target", target.ID)
		return nil, domain.ErrSessionActive
	}

	file, err := launch.Load(c.launchFile)
	if err != nil {
		return nil, err
	}
	profile, err := file.Profile(target.DebugProfile)
	if err != nil {
		return nil, err
	}

	args := slices.Clone(DebugArgs)
	if len(plan.Filter) > 0 {
		args = append(args, "-t", selection.JoinFilter(plan.Filter))
	}
	profile.Prepare(target.Path, args, target.WorkDir(), target.Env)

	c.log.Info("Launching debug session", "target", target.ID, "profile", target.DebugProfile, "filter", plan.Filter)
	if err := c.launcher.Launch(ctx, file, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
