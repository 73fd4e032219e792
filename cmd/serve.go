package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ragchat-router/internal/server"
	"ragchat-router/internal/startup"
)

var overridePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat service",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := build(cfgPath)
		if err != nil {
			return err
		}

		if overridePort != 0 {
			if overridePort <= 0 || overridePort > 65535 {
				return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
			}
			deps.cfg.Server.Port = overridePort
		}

		ctx := cmd.Context()

		// Refuse to serve with unverified configuration or credentials.
		if err := startup.Validate(ctx, deps.cfg, deps.registry); err != nil {
			return err
		}

		srv, err := server.New(deps.cfg, deps.orchestrator, deps.registry, deps.ingestor)
		if err != nil {
			return err
		}

		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&overridePort, "port", 0, "override server port from configuration")
}
