package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chetan-skc/Task-Manager-API/app/config"
	"github.com/chetan-skc/Task-Manager-API/app/controllers"
	"github.com/chetan-skc/Task-Manager-API/app/routes"
	"github.com/chetan-skc/Task-Manager-API/app/services"
	"github.com/chetan-skc/Task-Manager-API/app/store"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	logger, logFiles, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logging:", err)
		os.Exit(1)
	}
	defer logFiles.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		logFiles.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the store
	taskStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := taskStore.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()
	logger.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	// Initialize the service and controller layers
	taskService := services.NewTaskService(taskStore, cfg.StoreTimeout)
	taskController := controllers.NewTaskController(taskService)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           routes.NewRouter(logger, taskController),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server is running on port %s", cfg.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverNeo4j:
		driver, err := config.InitNeo4j(initCtx, cfg)
		if err != nil {
			return nil, err
		}
		s := store.NewNeo4jStore(driver, cfg.Neo4jDatabase)
		if err := s.EnsureSchema(initCtx); err != nil {
			s.Close(context.Background())
			return nil, err
		}
		return s, nil
	case config.DriverMongo:
		client, err := config.InitMongo(initCtx, cfg)
		if err != nil {
			return nil, err
		}
		s := store.NewMongoStore(client, cfg.MongoDatabase)
		if err := s.EnsureIndexes(initCtx); err != nil {
			s.Close(context.Background())
			return nil, err
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}
