package cli

import (
	"encoding/json"

	"tokenservice/backend/internal/app"
	tokendomain "tokenservice/backend/internal/domain/token"

	"github.com/spf13/cobra"
)

func newCreateCommand(rt *runtime) *cobra.Command {
	var req tokendomain.CreateRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a token and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := rt.open(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			tok, err := app.NewTokenService(rt.cfg, backend).Create(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tok)
		},
	}

	cmd.Flags().StringVarP(&req.UserID, "user", "u", "", "owner of the token")
	cmd.Flags().StringSliceVarP(&req.Scopes, "scope", "s", nil, "scope to grant (repeatable)")
	cmd.Flags().IntVarP(&req.ExpiresInMinutes, "minutes", "m", 60, "lifetime in minutes")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}
