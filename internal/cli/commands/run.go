package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"btp/internal/domain"
	"btp/internal/metrics"
	"btp/internal/monitor"
	"btp/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	cmds *Commands
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	c := rc.cmds
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	targets, err := c.load(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		color.Yellow("No binaries configured")
		return nil
	}

	// Ctrl+C kills the binaries; their partial results are still reported.
	go func() {
		<-ctx.Done()
		c.coordinator.Cancel()
	}()

	items := selection(args, c.config.Flags.Exclude)
	console := ui.NewConsoleReporter(os.Stdout, c.flags.Echo)
	if !c.flags.Verbose && !c.flags.Echo {
		console.SetProgress(ui.NewProgressBar(countCases(targets, items), "Running tests"))
	}

	record, err := c.coordinator.Run(context.WithoutCancel(ctx), items, monitor.MultiReporter{console, metrics.Reporter{}})
	console.Finish()
	if record == nil {
		return err
	}
	fmt.Println()
	c.formatter.PrintRunSummary(record)
	if err != nil {
		return err
	}

	failed := record.Meta.FailedCases + record.Meta.ErroredCases
	if failed > 0 && c.config.Flags.OpenViewer {
		if err := c.explore(context.Background()); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d test case(s) failed", failed)
	}
	return nil
}

// countCases estimates how many cases a selection runs, for the progress bar.
func countCases(targets []*domain.Target, items []domain.SelectionItem) int {
	if len(items) == 0 {
		items = []domain.SelectionItem{{ID: domain.AllTargetsID}}
	}
	total := 0
	for _, t := range targets {
		for _, item := range items {
			n := 0
			if item.ID == domain.AllTargetsID {
				n = t.Tree.Cases(t.Tree.Root)
			} else if domain.TargetOf(item.ID) == t.ID {
				n = t.Tree.Cases(item.ID)
			}
			if item.Excluded {
				total -= n
			} else {
				total += n
			}
		}
	}
	return max(total, 0)
}
