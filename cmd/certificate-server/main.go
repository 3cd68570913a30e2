package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-certificate/internal/config"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CERT_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: .env file could not be loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLogger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, zapLogger.Sugar())
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			zapLogger.Error("release resources", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("starting HTTP server",
			zap.String("address", cfg.Addr()),
			zap.String("env", cfg.App.Env),
			zap.String("storage", cfg.Storage.Driver),
		)
		errCh <- srv.app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		zapLogger.Info("shutting down HTTP server")
		return srv.app.Shutdown()
	}
}
