package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pfm/internal/api"
)

func newUploadCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image or PDF and print its stored path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := api.KindOf(args[0])
			if !ok {
				return fmt.Errorf("%s: only png, jpg, gif and pdf files are accepted", args[0])
			}
			ctx, err := g.authed(cmd.Context())
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening file: %w", err)
			}
			defer f.Close()

			path, err := g.client().Upload(ctx, kind, f.Name(), f)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
