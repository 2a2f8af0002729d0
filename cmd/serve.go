package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/nashr-app/nashr/internal/api"
	"github.com/nashr-app/nashr/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Nashr server",
	Long:  `Start the HTTP API and the background jobs.`,
	Example: `nashr serve --config config.yml
nashr serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg, db, err := openDatabase()
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	defer db.Close() //nolint:errcheck

	e, err := engine.New(cfg, db)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	defer e.Close() //nolint:errcheck

	server, err := api.New(cfg, e, db)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })

	log.Info("nashr started successfully")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "error", err)
	}
	log.Info("shut down gracefully")
}
