// Package commands implements pfmctl, a terminal client for the finance API.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pfm/internal/api"
	"pfm/internal/log"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

const defaultAPI = "http://localhost:8081/api/v1"

var errNoToken = errors.New("no token: pass --token or set PFM_TOKEN (see pfmctl login)")

// globals are the persistent flags shared by every subcommand.
type globals struct {
	apiURL  string
	token   string
	timeout time.Duration
	debug   bool
	logger  *log.Logger
}

func (g *globals) client() *api.Client {
	opts := []api.Option{api.WithTimeout(g.timeout)}
	if g.logger != nil {
		opts = append(opts, api.WithLogger(g.logger))
	}
	return api.NewClient(g.apiURL, opts...)
}

// authed returns a context carrying the bearer token.
func (g *globals) authed(ctx context.Context) (context.Context, error) {
	if g.token == "" {
		return nil, errNoToken
	}
	return api.WithToken(ctx, g.token), nil
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "pfmctl",
		Short:   "Personal finance from the terminal",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		// Log records go to stderr so stdout stays scriptable; only errors
		// show unless --debug is set.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelError
			if g.debug {
				level = slog.LevelDebug
			}
			g.logger = log.New(log.Config{Level: level, Output: cmd.ErrOrStderr(), Component: log.ComponentCLI})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.apiURL, "api", envOr("API_BASE_URL", defaultAPI), "finance API base URL")
	flags.StringVar(&g.token, "token", os.Getenv("PFM_TOKEN"), "bearer token (default $PFM_TOKEN)")
	flags.DurationVar(&g.timeout, "timeout", 15*time.Second, "per request timeout")
	flags.BoolVar(&g.debug, "debug", false, "log every API call to stderr")

	rootCmd.AddCommand(
		newLoginCommand(g),
		newBanksCommand(g),
		newAccountsCommand(g),
		newTransactionsCommand(g),
		newUploadCommand(g),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// describe turns API failures into one line a terminal user can act on.
func describe(err error) error {
	if api.IsUnauthorized(err) {
		return fmt.Errorf("session rejected, log in again: %w", err)
	}
	return err
}
