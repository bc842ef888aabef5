package commands

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"btp/internal/logger"
)

// ExploreCommand handles the explore command
type ExploreCommand struct {
	cmds *Commands
}

// Execute runs the command
func (ec *ExploreCommand) Execute(cmd *cobra.Command, args []string) error {
	c := ec.cmds
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if _, err := c.load(ctx); err != nil {
		return err
	}
	return c.explore(ctx)
}

// explore shows the interactive tree. The TUI owns the terminal until it exits.
func (c *Commands) explore(ctx context.Context) error {
	if c.config.LogFile == "" {
		prev := logger.SetOutput(io.Discard)
		defer logger.SetOutput(prev)
	}
	return c.newViewer().View(ctx)
}
