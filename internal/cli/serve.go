package cli

import (
	"os/signal"
	"syscall"

	"tokenservice/backend/internal/app"

	"github.com/spf13/cobra"
)

func newServeCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the token HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				rt.cfg.HTTPPort = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, rt.cfg)
		},
	}
	cmd.Flags().String("port", "", "port to listen on (overrides HTTP_PORT)")
	return cmd
}
