package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/chatpsy/internal/cache"
	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/proxy"
	"github.com/raaihank/chatpsy/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP gateway and dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log, err := opts.setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting chatpsy",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.String("addr", cfg.Server.Addr()),
	)

	analysisCache, err := cache.New(cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer analysisCache.Close()

	svc := proxy.Services{Cache: analysisCache}
	if cfg.Store.Enabled {
		db, err := store.Open(cfg.Store, log)
		if err != nil {
			return err
		}
		history := store.NewAnalysisStore(db, log)
		defer history.Close()
		if err := history.Migrate(ctx); err != nil {
			return err
		}
		svc.History = history
	}

	server, err := proxy.New(cfg, log, svc)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	watchErr := config.Watch(opts.configPath,
		func(next *config.Config) {
			if err := log.SetLevel(next.Logging.Level); err != nil {
				log.Warn("Ignoring invalid log level", zap.Error(err))
				return
			}
			log.Info("Configuration reloaded", zap.String("log_level", next.Logging.Level))
		},
		func(err error) { log.Warn("Configuration reload failed", zap.Error(err)) },
	)
	if watchErr != nil {
		log.Debug("Configuration hot reload disabled", zap.Error(watchErr))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start(ctx)
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()

	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	log.Info("Server shutdown complete")
	return nil
}
