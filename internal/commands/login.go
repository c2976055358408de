package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pfm/internal/api"
	"pfm/internal/auth"
)

func newLoginCommand(g *globals) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the bearer token",
		Long: "Sign in and print the bearer token on stdout, e.g.\n\n" +
			"  export PFM_TOKEN=$(pfmctl login --email me@example.com)",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PFM_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("password required: pass --password or set PFM_PASSWORD")
			}

			token, err := g.client().Login(cmd.Context(), email, password)
			if api.IsUnauthorized(err) {
				return fmt.Errorf("wrong email or password")
			}
			if err != nil {
				return describe(err)
			}
			id, err := auth.Decode(token)
			if err != nil {
				return fmt.Errorf("API returned an unusable token: %w", err)
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Signed in as", id.Email, "("+string(id.Role)+")")
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	_ = cmd.MarkFlagRequired("email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $PFM_PASSWORD)")

	return cmd
}
