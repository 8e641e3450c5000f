package scrape

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"newscraper/internal/domain"
)

// Fetcher performs a plain HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Renderer fetches a page through a JS-capable browser.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Scraper applies a site profile to pull, enrich, filter, score and
// deduplicate articles. A Scrape call never fails for a single site:
// every internal stage degrades to fewer results.
type Scraper struct {
	fetcher     Fetcher
	renderer    Renderer
	deepWorkers int
	logger      *zap.Logger
}

func NewScraper(fetcher Fetcher, renderer Renderer, deepWorkers int, logger *zap.Logger) *Scraper {
	if deepWorkers < 1 {
		deepWorkers = 15
	}
	return &Scraper{fetcher: fetcher, renderer: renderer, deepWorkers: deepWorkers, logger: logger}
}

// Scrape runs the staged extraction pipeline for one (profile, query)
// pair and returns at most maxResults ranked articles.
func (s *Scraper) Scrape(ctx context.Context, profile *domain.Profile, query string, maxResults int) []domain.Article {
	if maxResults < 1 {
		maxResults = 20
	}

	// API results are trusted and bypass the HTML heuristics entirely.
	if profile.Strategy.Kind == domain.StrategyAPI {
		if candidates := s.scrapeAPI(ctx, profile, query, maxResults); len(candidates) > 0 {
			s.logger.Info("api scrape successful", zap.String("domain", profile.Domain),
				zap.Int("articles", len(candidates)))
			if len(candidates) > maxResults {
				candidates = candidates[:maxResults]
			}
			return toArticles(candidates)
		}
	}

	// Overshoot the target to absorb filtering loss downstream.
	target := maxResults * 2
	candidates := s.scrapePrimary(ctx, profile, query, target)
	s.logger.Debug("initial extraction", zap.String("domain", profile.Domain),
		zap.Int("candidates", len(candidates)))

	if len(candidates) < maxResults/2 {
		candidates = append(candidates, s.scrapeHomepage(ctx, profile, target)...)
		s.logger.Debug("after homepage fallback", zap.String("domain", profile.Domain),
			zap.Int("candidates", len(candidates)))
	}

	if profile.DeepScrape && len(candidates) > 0 {
		candidates = s.enrichDeepContent(ctx, profile, candidates)
	}

	candidates = filterByRelevance(candidates, query)
	candidates = scoreAndDeduplicate(candidates)

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return toArticles(candidates)
}

// scrapePrimary fetches the profile's search URL and runs the
// comprehensive extraction passes on it.
func (s *Scraper) scrapePrimary(ctx context.Context, profile *domain.Profile, query string, target int) []domain.Candidate {
	searchURL := buildSearchURL(profile, query)

	doc := s.fetchDocument(ctx, profile, searchURL)
	if doc == nil {
		return nil
	}
	return extractComprehensive(doc, profile, target)
}

// scrapeHomepage pulls the homepage plus the conventional listing paths
// and merges whatever the extraction passes find there.
func (s *Scraper) scrapeHomepage(ctx context.Context, profile *domain.Profile, target int) []domain.Candidate {
	var out []domain.Candidate
	pages := []string{profile.BaseURL}
	for _, path := range []string{"/news", "/latest", "/articles", "/stories"} {
		pages = append(pages, strings.TrimRight(profile.BaseURL, "/")+path)
	}
	for _, page := range pages {
		doc := s.fetchDocument(ctx, profile, page)
		if doc == nil {
			continue
		}
		out = append(out, extractComprehensive(doc, profile, target)...)
	}
	return out
}

// fetchDocument retrieves a page via the renderer when the profile
// requires JS, else via the plain client. Returns nil on any failure.
func (s *Scraper) fetchDocument(ctx context.Context, profile *domain.Profile, pageURL string) *goquery.Document {
	var html string
	if profile.RequiresJS && s.renderer != nil {
		rendered, err := s.renderer.Render(ctx, pageURL)
		if err != nil {
			s.logger.Warn("render failed, falling back to plain fetch",
				zap.String("url", pageURL), zap.Error(err))
		} else {
			html = rendered
		}
	}
	if html == "" {
		body, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			s.logger.Debug("fetch failed", zap.String("url", pageURL), zap.Error(err))
			return nil
		}
		html = string(body)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Debug("parse failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	return doc
}

var (
	qParamRe      = regexp.MustCompile(`([?&]q=)[^&]*`)
	sParamRe      = regexp.MustCompile(`([?&]s=)[^&]*`)
	searchParamRe = regexp.MustCompile(`([?&]search=)[^&]*`)
)

// buildSearchURL substitutes the query into the profile's URL pattern.
// Supports both {query} placeholders and replacement of an existing
// q=/s=/search= parameter; anything else is returned as-is.
func buildSearchURL(profile *domain.Profile, query string) string {
	pattern := profile.Strategy.Pattern
	if pattern == "" {
		pattern = profile.BaseURL
	}
	escaped := url.QueryEscape(query)

	if strings.Contains(pattern, "{query}") {
		return strings.ReplaceAll(pattern, "{query}", escaped)
	}
	if qParamRe.MatchString(pattern) || sParamRe.MatchString(pattern) || searchParamRe.MatchString(pattern) {
		pattern = qParamRe.ReplaceAllString(pattern, "${1}"+escaped)
		pattern = sParamRe.ReplaceAllString(pattern, "${1}"+escaped)
		pattern = searchParamRe.ReplaceAllString(pattern, "${1}"+escaped)
		return pattern
	}
	return pattern
}

func toArticles(candidates []domain.Candidate) []domain.Article {
	out := make([]domain.Article, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, domain.Article{
			Headline:      sanitizeText(c.Headline),
			URL:           strings.TrimSpace(c.URL),
			Description:   sanitizeText(c.Description),
			Source:        c.Source,
			PublishedDate: c.PublishedDate,
			Content:       sanitizeText(c.FullContent),
			Relevance:     c.Relevance,
		})
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// sanitizeText collapses whitespace and drops invalid UTF-8.
func sanitizeText(text string) string {
	text = strings.ToValidUTF8(text, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
