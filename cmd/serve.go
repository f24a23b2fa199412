package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/minsuoh/hipass-capture/internal/jobs"
	"github.com/minsuoh/hipass-capture/internal/observability"
	"github.com/minsuoh/hipass-capture/internal/scheduler"
	"github.com/minsuoh/hipass-capture/internal/server"
)

// newServeCmd creates the `serve` command: the HTTP API plus the daily
// scheduled capture run.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API and the daily capture schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			cfg := appConfig

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			registry := jobs.NewRegistry()
			srv := server.New(components.Runner, registry, components.Store, server.Options{
				Days:        cfg.Capture.Days,
				LogFilePath: cfg.Logger.LogFile,
			}, logger)

			httpServer := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("HTTP API listening", zap.String("addr", cfg.Server.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				logger.Info("Shutting down HTTP API")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})

			if cfg.Schedule.Enabled {
				loc, err := time.LoadLocation(cfg.Schedule.Timezone)
				if err != nil {
					return fmt.Errorf("invalid schedule timezone %q: %w", cfg.Schedule.Timezone, err)
				}
				worker := scheduler.NewWorker(
					components.Runner,
					components.Store,
					cfg.Schedule.Hour,
					cfg.Capture.Days,
					cfg.Capture.RetentionDays,
					loc,
					logger,
				)
				g.Go(func() error {
					worker.Run(gctx)
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}
			logger.Info("Service stopped")
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
