package main

import (
	"context"

	"github.com/dpup/gatehouse"
	"github.com/dpup/gatehouse/logging"
	"github.com/spf13/cobra"
)

func serveCmd(configFile *string) *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gate",
		Long: `Start serving the login, callback, logout and /user routes.

Configuration is validated before anything is opened, a bad or missing
value stops startup with a list of every problem found.

Examples:
  gatehouse serve
  gatehouse serve --port=8080
  gatehouse serve -c ./deploy/gatehouse.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(*configFile, cmd.ErrOrStderr()); err != nil {
				return err
			}
			overrides := map[string]interface{}{}
			if port > 0 {
				overrides["server.port"] = port
			}
			if host != "" {
				overrides["server.host"] = host
			}
			if len(overrides) > 0 {
				gatehouse.LoadConfigDefaults(overrides)
			}
			return runServe()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from server.port)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from server.host)")

	return cmd
}

func runServe() error {
	logger := logging.NewLogger(gatehouse.ConfigString("log.format"))
	ctx, cancel := context.WithCancel(logging.With(context.Background(), logger))
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	return a.server.Start()
}
