package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"btp/internal/cli"
	"btp/internal/cli/commands"
	"btp/internal/config"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "btp",
		Short: "Boost test binary explorer",
		Long: `Discover the test trees of compiled Boost.Test binaries, run selected tests with live
results, and prepare debugger launch profiles.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Create initial config with defaults
	cfg := config.New()

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	cmds := commands.NewCommands(cfg, &flags)
	cmds.Register(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
