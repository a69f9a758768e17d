package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/innovatingrealm/openai-imagegen/internal/http/handlers"
	"github.com/innovatingrealm/openai-imagegen/internal/http/httpapi"
	"github.com/innovatingrealm/openai-imagegen/internal/imagegen"
	"github.com/innovatingrealm/openai-imagegen/internal/imaging"
	"github.com/innovatingrealm/openai-imagegen/internal/infra"
	"github.com/innovatingrealm/openai-imagegen/internal/infra/geoip"
	"github.com/innovatingrealm/openai-imagegen/internal/openai"
	"github.com/innovatingrealm/openai-imagegen/internal/ratelimit"
	"github.com/innovatingrealm/openai-imagegen/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	store, err := storage.NewFileStore(cfg.GeneratedImagesDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.GeneratedImagesDir).Msg("failed to prepare image directory")
	}

	var resolver geoip.CountryResolver
	if cfg.GeoIPDBPath != "" {
		geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.GeoIPDBPath).Msg("failed to open GeoIP database")
		}
		defer geo.Close()
		resolver = geo
	}

	client := openai.NewClient(openai.Options{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Timeout: cfg.OpenAITimeout,
	})
	fetcher := imaging.NewFetcher(30 * time.Second)
	service := imagegen.NewService(client, fetcher, store, logger)

	app := handlers.NewApp(service, store, cfg, logger)
	limiter := ratelimit.NewLimiter(cfg.RateLimitPerMin, time.Minute)
	router := httpapi.NewRouter(app, logger, limiter, resolver)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

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
