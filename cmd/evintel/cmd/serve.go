package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/evintel/internal/api"
)

var serveDryRun bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve exposes run management over HTTP: start runs, read snapshots
and reports, and stream run events via SSE on /api/v1/events.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false,
		"use deterministic local collaborators instead of configured commands")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveDryRun {
		cfg.Workflow.DryRun = true
	}

	rt, err := buildRuntime(cfg, cfg.Workflow.DryRun)
	if err != nil {
		return err
	}
	defer rt.close()

	server := api.NewServer(rt.runs, rt.bus,
		api.WithLogger(rt.logger),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("http server listening", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt.logger.Info("shutting down http server")
	return httpServer.Shutdown(shutdownCtx)
}
