package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// DebugCommand handles the debug command
type DebugCommand struct {
	cmds *Commands
}

// Execute runs the command
func (dc *DebugCommand) Execute(cmd *cobra.Command, args []string) error {
	c := dc.cmds
	if _, err := c.load(cmd.Context()); err != nil {
		return err
	}

	profile, err := c.coordinator.Debug(cmd.Context(), selection(args, c.config.Flags.Exclude))
	if err != nil {
		return err
	}
	color.Green("✓ Launch profile %q prepared in %s", profile.Name(), c.config.GetLaunchPath())
	color.Cyan("  program: %v", profile["program"])
	color.Cyan("  args:    %v", profile["args"])
	return nil
}
