// Command gatehouse runs the Google login gate.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "gatehouse",
		Short: "Session-backed Google login for a browser application",
		Long: `Gatehouse runs the Google OAuth login flow on behalf of a browser
application and keeps the result in a server side session referenced by a
signed cookie.

Configuration is read from gatehouse.yaml, found by searching upwards from
the working directory, and from GH__ prefixed environment variables:

  GH__AUTH__GOOGLE__ID=...   → auth.google.id
  GH__SESSION__SECRET=...    → session.secret`,
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: search for gatehouse.yaml)")

	cmd.AddCommand(
		serveCmd(&configFile),
		configCmd(&configFile),
	)
	return cmd
}
