package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"newscraper/internal/domain"
	"newscraper/internal/fetch"
	"newscraper/internal/monitoring"
)

var (
	ErrNoURLs        = errors.New("urls list cannot be empty")
	ErrNoFilters     = errors.New("filters list cannot be empty")
	ErrBadMaxResults = errors.New("max_results must be at least 1")
)

// ProfileCache reads and writes detected site profiles.
type ProfileCache interface {
	Get(ctx context.Context, url string) (*domain.Profile, bool)
	Save(ctx context.Context, url string, p *domain.Profile) error
}

// ProfileDetector produces a profile for a site; it never fails.
type ProfileDetector interface {
	Detect(ctx context.Context, baseURL, sampleQuery string) *domain.Profile
}

// ArticleScraper applies a profile to one (site, query) pair.
type ArticleScraper interface {
	Scrape(ctx context.Context, profile *domain.Profile, query string, maxResults int) []domain.Article
}

// Orchestrator fans (url, query, category) tasks across a bounded
// worker pool, aggregating results and collecting partial errors. One
// task's failure never aborts its siblings.
type Orchestrator struct {
	cache       ProfileCache
	detector    ProfileDetector
	scraper     ArticleScraper
	workers     int
	taskTimeout time.Duration
	maxRetries  int
	retryDelay  time.Duration
	metrics     *monitoring.Metrics
	logger      *zap.Logger
}

type Options struct {
	Workers     int
	TaskTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

func New(cache ProfileCache, detector ProfileDetector, scraper ArticleScraper, opts Options, m *monitoring.Metrics, logger *zap.Logger) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 8
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 90 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 2
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Orchestrator{
		cache:       cache,
		detector:    detector,
		scraper:     scraper,
		workers:     opts.Workers,
		taskTimeout: opts.TaskTimeout,
		maxRetries:  opts.MaxRetries,
		retryDelay:  opts.RetryDelay,
		metrics:     m,
		logger:      logger,
	}
}

type taskResult struct {
	task     domain.Task
	articles []domain.Article
	err      error
}

// Run executes every (url, filter[, category]) task and merges the
// results. The only errors it returns are structural: empty input,
// detected before any task is scheduled.
func (o *Orchestrator) Run(ctx context.Context, req domain.ScrapeRequest) (*domain.ScrapeResponse, error) {
	if len(req.URLs) == 0 {
		return nil, ErrNoURLs
	}
	if len(req.Filters) == 0 {
		return nil, ErrNoFilters
	}
	if req.MaxResults < 1 {
		return nil, ErrBadMaxResults
	}

	tasks := buildTasks(req)
	o.logger.Info("starting scrape job", zap.Int("tasks", len(tasks)),
		zap.Int("max_results", req.MaxResults), zap.Bool("force_refresh", req.ForceRefresh))
	start := time.Now()

	taskCh := make(chan domain.Task)
	resultCh := make(chan taskResult, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				articles, err := o.runTask(ctx, task, req.MaxResults, req.ForceRefresh)
				resultCh <- taskResult{task: task, articles: articles, err: err}
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var all []domain.Article
	var errs []string
	sources := map[string]struct{}{}

	for result := range resultCh {
		if result.err != nil {
			msg := fmt.Sprintf("error scraping %s with '%s': %v", result.task.URL, result.task.Query, result.err)
			o.logger.Warn("task failed", zap.String("url", result.task.URL),
				zap.String("query", result.task.Query), zap.Error(result.err))
			errs = append(errs, msg)
			o.metrics.IncTask("failed")
			continue
		}
		o.metrics.IncTask("ok")
		if len(result.articles) > 0 {
			sources[result.task.URL] = struct{}{}
			all = append(all, result.articles...)
		}
	}

	merged := mergeByURL(all)
	budget := req.MaxResults * len(req.URLs)
	if len(merged) > budget {
		merged = merged[:budget]
	}

	elapsed := time.Since(start).Seconds()
	o.logger.Info("scrape job finished", zap.Int("articles", len(merged)),
		zap.Int("sources", len(sources)), zap.Float64("elapsed_s", elapsed), zap.Int("errors", len(errs)))

	return &domain.ScrapeResponse{
		Articles:       merged,
		Total:          len(merged),
		ProcessingTime: elapsed,
		SourcesScraped: len(sources),
		Errors:         errs,
	}, nil
}

// runTask executes cache lookup → detect → scrape for one task under
// its own timeout, with retries around the whole sequence.
func (o *Orchestrator) runTask(ctx context.Context, task domain.Task, maxResults int, forceRefresh bool) ([]domain.Article, error) {
	taskCtx, cancel := context.WithTimeout(ctx, o.taskTimeout)
	defer cancel()

	start := time.Now()
	var articles []domain.Article

	err := fetch.Retry(taskCtx, o.maxRetries, o.retryDelay, func(ctx context.Context) error {
		var profile *domain.Profile
		if !forceRefresh {
			if cached, ok := o.cache.Get(ctx, task.URL); ok {
				profile = cached
				o.metrics.ProfileCacheHits.Inc()
				o.logger.Debug("using cached profile", zap.String("url", task.URL))
			}
		}
		if profile == nil {
			o.logger.Info("detecting profile", zap.String("url", task.URL))
			profile = o.detector.Detect(ctx, task.URL, task.Query)
			o.metrics.ProfilesDetected.Inc()
			if err := o.cache.Save(ctx, task.URL, profile); err != nil {
				o.logger.Warn("failed to cache profile", zap.String("url", task.URL), zap.Error(err))
			}
		}

		articles = o.scraper.Scrape(ctx, profile, task.Query, maxResults)

		// The scraper degrades internally; the only task-level failure
		// signal is the deadline firing while it worked.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("task timed out: %w", err)
		}
		o.metrics.ObserveTaskDuration(profile.Domain, time.Since(start).Seconds())
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.metrics.IncTaskError("timeout")
		} else {
			o.metrics.IncTaskError("exhausted_retries")
		}
		return nil, err
	}

	if task.Category != "" {
		for i := range articles {
			articles[i].Category = task.Category
		}
	}
	return articles, nil
}

// buildTasks is the cross product of urls × filters × categories.
func buildTasks(req domain.ScrapeRequest) []domain.Task {
	categories := req.Categories
	if len(categories) == 0 {
		categories = []string{""}
	}
	var tasks []domain.Task
	for _, u := range req.URLs {
		for _, filter := range req.Filters {
			for _, category := range categories {
				tasks = append(tasks, domain.Task{URL: u, Query: filter, Category: category})
			}
		}
	}
	return tasks
}

// mergeByURL drops duplicate articles across tasks, first seen wins.
func mergeByURL(articles []domain.Article) []domain.Article {
	seen := map[string]struct{}{}
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if a.Headline == "" || a.URL == "" {
			continue
		}
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}
	return out
}
