package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"tokenservice/backend/internal/app"
	tokendomain "tokenservice/backend/internal/domain/token"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand(rt *runtime) *cobra.Command {
	var userID, output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's active tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := rt.open(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			tokens, err := app.NewTokenService(rt.cfg, backend).ListActive(cmd.Context(), userID)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tokens)
			case "table":
				renderTokens(cmd, tokens)
				return nil
			}
			return fmt.Errorf("unknown output format %q", output)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner of the tokens")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func renderTokens(cmd *cobra.Command, tokens []*tokendomain.Token) {
	if len(tokens) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no active tokens")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"ID", "Scopes", "Created", "Expires"})
	for _, tok := range tokens {
		t.AppendRow(table.Row{
			tok.ID,
			strings.Join(tok.Scopes, ","),
			tokendomain.FormatTimestamp(tok.CreatedAt),
			tokendomain.FormatTimestamp(tok.ExpiresAt),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
