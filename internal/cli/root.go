// Package cli implements the tokenctl command line.
package cli

import (
	"context"
	"os"

	"tokenservice/backend/internal/config"
	"tokenservice/backend/internal/infrastructure/store"
	"tokenservice/backend/internal/logging"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runtime carries what subcommands share once the root has loaded config.
type runtime struct {
	cfg  config.Config
	open func(ctx context.Context, cfg config.Config) (*store.Backend, error)
}

// NewRootCommand builds the tokenctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&runtime{open: store.Open})
}

func newRootCommand(rt *runtime) *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "tokenctl",
		Short: "Issue and inspect short-lived scoped access tokens",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			rt.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")

	root.AddCommand(
		newServeCommand(rt),
		newMigrateCommand(rt),
		newCreateCommand(rt),
		newListCommand(rt),
		newExpiredCommand(),
		newHashKeyCommand(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}
