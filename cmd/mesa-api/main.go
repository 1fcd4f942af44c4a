// Dev backend entry point: serves the order collaborator contracts over
// Postgres so the board client can run end-to-end locally.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mesa/internal/config"
	"mesa/internal/devserver"
	"mesa/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("connect db", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	store := devserver.NewStore(dbPool)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: devserver.NewRouter(store, logger)}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("dev api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("serve", "err", err)
		os.Exit(1)
	}
}
