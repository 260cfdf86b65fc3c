package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentflow/internal/app"
	"github.com/hupe1980/agentflow/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		port  int
		noMCP bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent API and the MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closer, err := flags.load()
			if err != nil {
				return err
			}
			defer closer.Close()

			if port > 0 {
				cfg.Server.Port = port
			}
			if noMCP {
				cfg.Server.EnableMCP = false
			}

			a, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.Runner, func(o *server.Options) {
				o.Version = version
				o.AllowedOrigins = cfg.Server.AllowedOrigins
				o.ReadTimeout = cfg.Server.ReadTimeout
				o.WriteTimeout = cfg.Server.WriteTimeout
				o.EnableMCP = cfg.Server.EnableMCP
				o.Logger = logger
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.Server.Address()) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "disable the /mcp endpoint")

	return cmd
}
