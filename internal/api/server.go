package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"newscraper/internal/config"
	"newscraper/internal/domain"
	"newscraper/internal/profile"
	"newscraper/internal/storage"
)

// JobRunner executes a full scrape job.
type JobRunner interface {
	Run(ctx context.Context, req domain.ScrapeRequest) (*domain.ScrapeResponse, error)
}

// Detector exposes profile detection for the test endpoint.
type Detector interface {
	Detect(ctx context.Context, baseURL, sampleQuery string) *domain.Profile
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	runner     JobRunner
	detector   Detector
	cache      *profile.Cache
	articles   *storage.ArticleStore
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, runner JobRunner, detector Detector, cache *profile.Cache, articles *storage.ArticleStore, l *zap.Logger) *Server {
	s := &Server{
		config:   cfg,
		runner:   runner,
		detector: detector,
		cache:    cache,
		articles: articles,
		logger:   l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // scrape jobs are long-running
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
