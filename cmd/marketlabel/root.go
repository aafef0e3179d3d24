package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbonduro/marketlabel/internal/app"
	"github.com/vbonduro/marketlabel/internal/config"
	"github.com/vbonduro/marketlabel/internal/logging"
)

// env is what every subcommand runs against. It is filled in by the root
// command's PersistentPreRunE.
type env struct {
	app     *app.App
	cleanup func()
}

// newRootCommand builds the command tree. The caller must close the returned
// env once the command has run.
func newRootCommand() (*cobra.Command, *env) {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:           "marketlabel",
		Short:         "Crowd labeling of marketplace listings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCommand(e),
		companiesCommand(e),
		usersCommand(e),
		progressCommand(e),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to initialize: %w", err)
		}
		e.app = a
		e.cleanup = cleanup
		return nil
	}

	return rootCmd, e
}

func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	err := e.app.Close()
	if err != nil {
		e.app.Logger.Error("failed to close app", "error", err)
	}
	e.cleanup()
	e.app = nil
	return err
}
