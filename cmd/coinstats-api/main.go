package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/Namanahuja82/koinx-backend-assignment/config"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/app"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/handlers/http"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/lib/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log, zapLogger, syncLog := logger.New(cfg.Env)
	defer func() { _ = syncLog() }()

	if cfg.Env == logger.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	log.Info("initializing app")
	api, err := app.NewAPIApp(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		return 1
	}

	api.Ingestor.OnDisconnect = func(err error) {
		log.Error("message bus disconnected", slog.Any("error", err))
	}

	ingestorDone := make(chan struct{})
	go func() {
		defer close(ingestorDone)
		log.Info("starting ingestor")
		if err := api.Ingestor.Run(ctx); err != nil {
			log.Error("ingestor stopped with error", slog.Any("error", err))
		}
	}()

	httpAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	httpServer := http.NewServer(httpAddr, api.StatsService, api.Broadcaster, zapLogger, log, api.Clock)

	exitCode := 0
	go func() {
		log.Info("HTTP server listening", slog.String("addr", httpAddr))
		if err := httpServer.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error("HTTP server error", slog.Any("error", err))
			exitCode = 1
			cancel()
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// The ingestor closes its subscription on the way out.
	<-ingestorDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	log.Info("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", slog.Any("error", err))
	}

	api.Cleanup(shutdownCtx)
	log.Info("service stopped")
	return exitCode
}
