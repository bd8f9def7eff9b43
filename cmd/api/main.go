package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"adora/internal/bootstrap"
	"adora/internal/http/handlers"
	httpapi "adora/internal/http/httpapi"
	"adora/internal/infra"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	// Konfigurasi & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Storage, record store (opsional), presets, font, generator background
	ctx := context.Background()
	stack, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer stack.Close()

	app := handlers.NewApp(stack.Pipeline, stack.Assets, stack.Store, stack.Records, logger)
	app.MaxUploadSize = cfg.MaxUploadSize
	app.Components = stack.Components

	router := httpapi.NewRouter(app, logger, httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	// Start async
	go func() {
		logger.Info().Str("addr", server.Addr()).Str("data_dir", cfg.DataDir).Int("max_file_size", cfg.MaxFileSize).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
