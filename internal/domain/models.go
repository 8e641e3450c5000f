package domain

import (
	"net/url"
	"strings"
	"time"
)

// StrategyKind identifies how a site exposes its content.
type StrategyKind string

const (
	StrategyAPI       StrategyKind = "api"
	StrategySearchURL StrategyKind = "search_url"
	StrategyHomepage  StrategyKind = "homepage"
)

// APIKind classifies a discovered content API.
type APIKind string

const (
	APIWordPress APIKind = "wordpress"
	APIGraphQL   APIKind = "graphql"
	APIREST      APIKind = "rest"
)

// SearchStrategy is the closed set of ways a profile locates listings.
// Exactly one of Endpoint or Pattern is populated, depending on Kind.
type SearchStrategy struct {
	Kind     StrategyKind `json:"kind"`
	Endpoint string       `json:"endpoint,omitempty"`
	APIKind  APIKind      `json:"api_kind,omitempty"`
	Pattern  string       `json:"pattern,omitempty"`
}

// APIStrategy builds a strategy for a discovered API endpoint.
func APIStrategy(endpoint string, kind APIKind) SearchStrategy {
	return SearchStrategy{Kind: StrategyAPI, Endpoint: endpoint, APIKind: kind}
}

// SearchURLStrategy builds a strategy for a working search or listing URL.
func SearchURLStrategy(pattern string) SearchStrategy {
	return SearchStrategy{Kind: StrategySearchURL, Pattern: pattern}
}

// HomepageStrategy builds the last-resort strategy scraping the homepage.
func HomepageStrategy(baseURL string) SearchStrategy {
	return SearchStrategy{Kind: StrategyHomepage, Pattern: baseURL}
}

// LinkFilterRules constrain which anchor elements are treated as article links.
type LinkFilterRules struct {
	MinTextLen      int      `json:"min_text_len"`
	MaxTextLen      int      `json:"max_text_len"`
	ExcludePatterns []string `json:"exclude_patterns"`
	RequireDomain   string   `json:"require_domain"`
}

// Selectors holds the ordered per-field extraction rules of a profile.
// Earlier entries are tried first.
type Selectors struct {
	Containers   []string        `json:"containers"`
	Headlines    []string        `json:"headlines"`
	Descriptions []string        `json:"descriptions"`
	Content      []string        `json:"content"`
	Date         []string        `json:"date"`
	Author       []string        `json:"author"`
	LinkFilter   LinkFilterRules `json:"link_filter"`
}

// Profile is a site's extraction recipe. Profiles are immutable once
// produced; re-detection yields a brand-new Profile replacing the cached one.
type Profile struct {
	BaseURL       string         `json:"base_url"`
	Domain        string         `json:"domain"`
	Strategy      SearchStrategy `json:"strategy"`
	RequiresJS    bool           `json:"requires_js"`
	Selectors     Selectors      `json:"selectors"`
	CleaningRules []string       `json:"cleaning_rules"`
	DeepScrape    bool           `json:"deep_scrape"`
	CachedAt      time.Time      `json:"cached_at,omitempty"`
}

// Candidate is an in-flight extraction record before validation.
type Candidate struct {
	Headline      string
	URL           string
	Description   string
	FullContent   string
	PublishedDate string
	Author        string
	Source        string
	Relevance     int
	Quality       int
}

// Article is the validated public output unit.
type Article struct {
	Headline      string `json:"headline"`
	URL           string `json:"url"`
	Description   string `json:"description,omitempty"`
	Source        string `json:"source"`
	PublishedDate string `json:"published_date,omitempty"`
	Content       string `json:"content,omitempty"`
	Category      string `json:"category,omitempty"`
	Relevance     int    `json:"relevance_score"`
}

// Task is one (site, query, category) unit of work for the orchestrator.
type Task struct {
	URL      string
	Query    string
	Category string
}

// ScrapeRequest is the inbound payload for a scrape job.
type ScrapeRequest struct {
	URLs         []string `json:"urls"`
	Filters      []string `json:"filters"`
	Categories   []string `json:"categories,omitempty"`
	MaxResults   int      `json:"max_results"`
	ForceRefresh bool     `json:"force_refresh"`
}

// ScrapeResponse is the aggregate result of a scrape job.
type ScrapeResponse struct {
	Articles       []Article `json:"articles"`
	Total          int       `json:"total"`
	ProcessingTime float64   `json:"processing_time"`
	SourcesScraped int       `json:"sources_scraped"`
	Errors         []string  `json:"errors,omitempty"`
}

// CanonicalDomain derives the canonical host of a URL: lower-cased,
// without port or a leading "www.". Returns "" for unparseable input.
func CanonicalDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	// Bare host given without a scheme.
	host := strings.ToLower(strings.Split(strings.TrimSpace(rawURL), "/")[0])
	return strings.TrimPrefix(host, "www.")
}
