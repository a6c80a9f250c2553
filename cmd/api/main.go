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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wolfman30/doctor-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/doctor-booking/internal/config"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Info("starting doctor-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"initial_status", cfg.BookingInitialStatus,
		"cancel_policy", cfg.BookingCancelPolicy,
	)

	ctx := context.Background()
	st, err := store.Open(ctx, bootstrap.StoreConfig(cfg), logger)
	if err != nil {
		return err
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	app, err := bootstrap.NewApp(cfg, st, redisClient, newRegistry(), logger)
	if err != nil {
		st.Close()
		return err
	}
	app.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down server...", "signal", sig.String())
	case err := <-serverErr:
		runErr = fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := app.Close(shutdownCtx); err != nil {
		logger.Error("shutdown cleanup failed", "error", err)
	}
	logger.Info("server stopped")
	return runErr
}

// newRegistry carries the booking metrics alongside Go runtime and process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
