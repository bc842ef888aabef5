package commands

import (
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"btp/internal/logger"
	"btp/internal/metrics"
	"btp/internal/ui"
	"btp/internal/watch"
)

// WatchCommand handles the watch command
type WatchCommand struct {
	cmds *Commands
}

// Execute runs the command
func (wc *WatchCommand) Execute(cmd *cobra.Command, args []string) error {
	c := wc.cmds
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	targets, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.coordinator.SetSink(ui.NewConsoleReporter(os.Stdout, false))

	if addr := c.config.Flags.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "addr", addr, "err", err)
			}
		}()
		defer server.Close()
		logger.Info("Serving metrics", "addr", addr)
	}

	w, err := watch.New(c.coordinator, targets, c.flags.Debounce)
	if err != nil {
		return err
	}
	color.Cyan("Watching %d binary(ies), press Ctrl+C to stop", len(targets))
	return w.Run(ctx)
}
