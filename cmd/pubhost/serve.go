package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/pubhost"
	"github.com/eringen/pubhost/views"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := pubhost.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := pubhost.NewLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		return err
	}

	app := pubhost.New(cfg, views.Default(), pubhost.WithLogger(log))
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
