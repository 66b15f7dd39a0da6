package cli

import (
	"fmt"

	tokenusecase "tokenservice/backend/internal/usecase/token"

	"github.com/spf13/cobra"
)

func newExpiredCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "expired <timestamp>",
		Short: "Report whether an ISO-8601 expiry has passed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), tokenusecase.IsExpired(args[0]))
			return nil
		},
	}
}
