package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Namanahuja82/koinx-backend-assignment/config"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/app"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/lib/logger"
)

func main() {
	os.Exit(run())
}

// run returns 0 on a graceful shutdown and 1 when startup fails or the bus
// was never reachable.
func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log, _, syncLog := logger.New(cfg.Env)
	defer func() { _ = syncLog() }()

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

	worker := app.NewWorkerApp(cfg, log)
	defer worker.Cleanup(context.Background())

	if err := worker.Publisher.Run(ctx); err != nil {
		if errors.Is(err, app.ErrNeverConnected) {
			log.Error("stopped before the bus was ever reachable", slog.Any("error", err))
		} else {
			log.Error("publisher failed", slog.Any("error", err))
		}
		return 1
	}

	log.Info("worker stopped")
	return 0
}
