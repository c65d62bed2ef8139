package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qps-sweep/qps-sweep/internal/api"
	"github.com/qps-sweep/qps-sweep/internal/config"
	"github.com/qps-sweep/qps-sweep/internal/logging"
	"github.com/qps-sweep/qps-sweep/internal/results"
	"github.com/qps-sweep/qps-sweep/internal/storage"
	"github.com/qps-sweep/qps-sweep/internal/sweep"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status API",
	Long: `Start the HTTP status API. Sweeps can be started and cancelled over
the API, and their history browsed, while artifacts land on the server's
filesystem.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logger.Info("starting qps-sweep server",
		slog.String("version", "0.1.0"),
		slog.Int("port", cfg.Server.Port))

	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("error", err.Error()))
		return err
	}
	defer db.Close()

	store, err := results.NewStore(db.DB)
	if err != nil {
		logger.Error("failed to initialize store", slog.String("error", err.Error()))
		return err
	}

	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}
	driver := sweep.NewDriver(runner, cfg.Driver,
		sweep.WithStore(store),
		sweep.WithLogger(logger))
	manager := sweep.NewManager(driver, store, logger)

	server := api.New(store, manager,
		api.WithLogger(logger),
		api.WithHost(cfg.Server.Host),
		api.WithPort(cfg.Server.Port),
		api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	server.SetReady(true)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	case sig := <-quit:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("server stopped")
	return nil
}
