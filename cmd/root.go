// Package cmd implements the matcher command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/matcher/config"
	"github.com/Ramsey-B/matcher/internal/app"
)

const stopTimeout = 30 * time.Second

// exitError ends the process with code after msg was already reported.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

var rootCmd = &cobra.Command{
	Use:           "matcher",
	Short:         "Catalog identity resolution and similarity engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: `matcher migrate
matcher match -s 42
matcher serve
matcher similar 7 --limit 5
matcher nuke --yes`,
}

func init() {
	rootCmd.AddCommand(
		matchCommand(),
		serveCommand(),
		migrateCommand(),
		nukeCommand(),
		similarCommand(),
		rebuildCommand(),
		enqueueCommand(),
	)
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		fmt.Fprintln(os.Stderr, exit.msg)
		return exit.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

// withApp loads the configuration, starts the dependencies and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background())
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			a.Logger.WithError(err).Warn("Shutdown incomplete")
		}
	}()

	return fn(ctx, a)
}
