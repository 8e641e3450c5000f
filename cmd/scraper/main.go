package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"newscraper/internal/api"
	"newscraper/internal/config"
	"newscraper/internal/fetch"
	"newscraper/internal/monitoring"
	"newscraper/internal/orchestrator"
	"newscraper/internal/profile"
	"newscraper/internal/render"
	"newscraper/internal/scrape"
	"newscraper/internal/storage"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Storage layer
	redisStore := storage.NewRedisStore(cfg.RedisAddr)
	var articleStore *storage.ArticleStore
	if cfg.PostgresURL != "" {
		articleStore, err = storage.NewArticleStore(cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer articleStore.Close()
	}

	// Fetch paths share one rate limiter
	limiter := fetch.NewRateLimiter(cfg.CallsPerSecond)
	client := fetch.NewClient(limiter, time.Duration(cfg.FetchTimeout)*time.Second, logger)
	renderer := render.NewChromeRenderer(time.Duration(cfg.RenderTimeout)*time.Second, logger)

	// Core engine
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	cache := profile.NewCache(redisStore, time.Duration(cfg.ProfileMaxAgeDays)*24*time.Hour, logger)
	detector := profile.NewDetector(client, logger)
	scraper := scrape.NewScraper(client, renderer, cfg.DeepWorkers, logger)
	orch := orchestrator.New(cache, detector, scraper, orchestrator.Options{
		Workers:     cfg.ScrapeWorkers,
		TaskTimeout: time.Duration(cfg.TaskTimeout) * time.Second,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
	}, metrics, logger)

	// API server
	server := api.NewServer(cfg, orch, detector, cache, articleStore, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
