package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/njchilds90/gonewton/internal/server"
	"github.com/njchilds90/gonewton/internal/store"
)

var serveAddr string

// serveCmd runs the HTTP tool server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP tool server",
	Long: `Serves the Newton tools over HTTP:

  POST /tool      execute a tool call
  GET  /schema    tool schema for agent registration
  GET  /health    health check
  GET  /plot.png  chart of a session's trajectory

Sessions are isolated by ID and evicted after store.session_ttl of inactivity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		st, err := store.Open(cfg.Store, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Warn("failed to close store", zap.Error(err))
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting", zap.String("store", cfg.Store.Backend), zap.String("addr", cfg.Server.Addr))
		return server.New(cfg, st, logger).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}
