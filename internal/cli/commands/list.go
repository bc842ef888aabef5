package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ListCommand handles the list command
type ListCommand struct {
	cmds *Commands
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	c := lc.cmds
	targets, err := c.load(cmd.Context())
	if err != nil {
		return err
	}

	switch c.config.Flags.Output {
	case "yaml":
		return c.formatter.PrintYAML(targets)
	case "", "text":
		if len(targets) == 0 {
			color.Yellow("No binaries configured")
			return nil
		}
		// the last run is optional, it only marks failed cases
		last, _ := c.storage.Load()
		c.formatter.PrintTrees(targets, last)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", c.config.Flags.Output)
	}
}
