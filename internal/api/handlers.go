package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"newscraper/internal/domain"
	"newscraper/internal/orchestrator"
)

const (
	defaultMaxResults = 20
	maxMaxResults     = 100
)

func (s *Server) handleScrapeRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.URLs = normalizeRequestURLs(req.URLs)
	for _, u := range req.URLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Invalid URL in list: "+u)
			return
		}
	}
	if req.MaxResults == 0 {
		req.MaxResults = defaultMaxResults
	}
	if req.MaxResults < 1 || req.MaxResults > maxMaxResults {
		s.respondWithError(w, http.StatusBadRequest, "max_results must be between 1 and 100")
		return
	}

	resp, err := s.runner.Run(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNoURLs), errors.Is(err, orchestrator.ErrNoFilters),
			errors.Is(err, orchestrator.ErrBadMaxResults):
			s.respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("scrape job failed", zap.Error(err))
			s.respondWithError(w, http.StatusInternalServerError, "Scrape job failed")
		}
		return
	}

	// Persistence is post-processing on the article stream; the response
	// never waits on it.
	if s.articles != nil && len(resp.Articles) > 0 {
		articles := resp.Articles
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.articles.SaveArticles(ctx, articles); err != nil {
				s.logger.Warn("failed to persist articles", zap.Error(err))
			}
		}()
	}

	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.cache.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list profiles", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not list profiles")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	dom := chi.URLParam(r, "domain")
	deleted, err := s.cache.Delete(r.Context(), dom)
	if err != nil {
		s.logger.Error("failed to delete profile", zap.String("domain", dom), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not delete profile")
		return
	}
	if !deleted {
		s.respondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"message": "Profile for " + dom + " deleted"})
}

func (s *Server) handleDetectProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		s.respondWithError(w, http.StatusBadRequest, "URL is required")
		return
	}
	target := ensureScheme(strings.TrimSpace(req.URL))
	p := s.detector.Detect(r.Context(), target, "news")
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"url":     target,
		"profile": p,
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"status": "ok"}
	healthy := true

	if s.articles != nil {
		if err := s.articles.Ping(ctx); err != nil {
			healthStatus["postgres"] = "unhealthy"
			healthy = false
			s.logger.Error("health check failed for postgres", zap.Error(err))
		} else {
			healthStatus["postgres"] = "healthy"
		}
	}

	if !healthy {
		healthStatus["status"] = "degraded"
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// normalizeRequestURLs trims and prefixes bare hosts with https://.
func normalizeRequestURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, ensureScheme(u))
	}
	return out
}

func ensureScheme(u string) string {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "https://" + u
	}
	return u
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
