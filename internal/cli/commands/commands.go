package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"btp/internal/cli"
	"btp/internal/config"
	"btp/internal/coordinator"
	"btp/internal/domain"
	"btp/internal/execution"
	"btp/internal/logger"
	"btp/internal/storage"
	"btp/internal/ui"
	"btp/internal/watch"
)

// Commands holds all CLI commands
type Commands struct {
	config *config.Config
	flags  *cli.Flags

	// set up once the config is loaded
	coordinator *coordinator.Coordinator
	storage     storage.Storage
	formatter   *ui.Formatter
	newViewer   func() ui.Viewer

	Run     *RunCommand
	List    *ListCommand
	Debug   *DebugCommand
	Watch   *WatchCommand
	Explore *ExploreCommand
}

// NewCommands creates all commands. Dependencies are built in setup, after
// flags are parsed and the config file is read.
func NewCommands(cfg *config.Config, flags *cli.Flags) *Commands {
	c := &Commands{config: cfg, flags: flags}
	c.Run = &RunCommand{cmds: c}
	c.List = &ListCommand{cmds: c}
	c.Debug = &DebugCommand{cmds: c}
	c.Watch = &WatchCommand{cmds: c}
	c.Explore = &ExploreCommand{cmds: c}
	c.newViewer = func() ui.Viewer { return ui.NewExplorer(c.coordinator, c.storage) }
	return c
}

func (c *Commands) setup(cmd *cobra.Command, _ []string) error {
	c.flags.Apply(c.config)
	if err := c.config.Load(); err != nil {
		return err
	}
	if c.flags.LogLevel != "" {
		c.config.LogLevel = c.flags.LogLevel
	}
	if err := logger.Configure(c.config.LogLevel, c.config.LogFile); err != nil {
		return err
	}

	c.storage = storage.NewJSONStorage(c.config)
	if c.config.ResultsDSN != "" {
		db, err := storage.NewMySQLStorage(c.config.ResultsDSN)
		if err != nil {
			return err
		}
		c.storage = storage.MultiStorage{c.storage, db}
	}

	var progress execution.Progress
	if len(c.config.Binaries) > 1 {
		progress = ui.NewProgressBar(len(c.config.Binaries), "Discovering")
	}
	c.coordinator = coordinator.New(coordinator.Options{
		Runner:     execution.NewRunner(),
		Workers:    c.config.Processors,
		Progress:   progress,
		Storage:    c.storage,
		LaunchFile: c.config.GetLaunchPath(),
	})
	c.formatter = ui.NewFormatter(os.Stdout, c.config.ProjectPath)
	return nil
}

// load discovers every configured binary. Discovery failures are shown as
// error trees and do not stop the command.
func (c *Commands) load(ctx context.Context) ([]*domain.Target, error) {
	targets, err := c.config.Targets()
	if err != nil {
		return nil, err
	}
	if err := c.coordinator.Load(ctx, targets); err != nil {
		logger.Warn("Some binaries could not be discovered", "err", err)
	}
	return c.coordinator.Targets(), nil
}

// selection turns ids and --exclude ids into selection items. Excludes alone
// apply to everything.
func selection(ids, exclude []string) []domain.SelectionItem {
	var items []domain.SelectionItem
	for _, id := range ids {
		items = append(items, domain.SelectionItem{ID: id})
	}
	if len(items) == 0 && len(exclude) > 0 {
		items = append(items, domain.SelectionItem{ID: domain.AllTargetsID})
	}
	for _, id := range exclude {
		items = append(items, domain.SelectionItem{ID: id, Excluded: true})
	}
	return items
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command) {
	flags := c.flags
	rootCmd.PersistentPreRunE = c.setup
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", "", fmt.Sprintf("Config file (default %q in the project)", config.DefaultConfigFile))
	rootCmd.PersistentFlags().StringVar(&flags.ProjectPath, "project", "", "Project root used to resolve relative paths")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of binaries discovered in parallel")

	runCmd := &cobra.Command{
		Use:   "run [test ids...]",
		Short: "Run tests of the configured binaries",
		Long:  "Run the selected tests (all when none are given), one process per binary, and report live results",
		RunE:  c.Run.Execute,
	}
	runCmd.Flags().StringSliceVarP(&flags.Exclude, "exclude", "x", nil, "Test ids to exclude")
	runCmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Print every finished test case instead of a progress bar")
	runCmd.Flags().BoolVar(&flags.Echo, "echo", false, "Print the raw output of the binaries")
	runCmd.Flags().BoolVar(&flags.OpenViewer, "open", false, "Open the explorer when the run finishes with failures")
	rootCmd.AddCommand(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered tests",
		Long:  "Ask every configured binary for its test tree and print it",
		RunE:  c.List.Execute,
	}
	listCmd.Flags().StringVarP(&flags.Output, "output", "o", "text", "Output format: text or yaml")
	rootCmd.AddCommand(listCmd)

	debugCmd := &cobra.Command{
		Use:   "debug [test ids...]",
		Short: "Prepare a debug launch profile for the selected tests",
		Long:  "Rewrite the binary's named launch profile so an external debugger starts it with the selected tests",
		RunE:  c.Debug.Execute,
	}
	debugCmd.Flags().StringSliceVarP(&flags.Exclude, "exclude", "x", nil, "Test ids to exclude")
	rootCmd.AddCommand(debugCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Rediscover binaries when they are rebuilt",
		RunE:  c.Watch.Execute,
	}
	watchCmd.Flags().DurationVar(&flags.Debounce, "debounce", watch.DefaultDebounce, "Quiet period before a changed binary is rediscovered")
	watchCmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	rootCmd.AddCommand(watchCmd)

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "Browse and run tests interactively",
		Long:  "Display the test trees in an interactive viewer with the results of the last run",
		RunE:  c.Explore.Execute,
	}
	rootCmd.AddCommand(exploreCmd)
}
