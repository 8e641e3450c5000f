package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"newscraper/internal/domain"
)

// Fetcher is the network capability the detector needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Detector probes a site and produces its extraction profile. It never
// fails: any internal error degrades to a conservative fallback profile
// so the pipeline always has something to try.
type Detector struct {
	fetcher Fetcher
	logger  *zap.Logger
}

func NewDetector(fetcher Fetcher, logger *zap.Logger) *Detector {
	return &Detector{fetcher: fetcher, logger: logger}
}

var containerKeywords = []string{
	"article", "post", "story", "news", "item", "entry",
	"card", "teaser", "listing", "feed", "result", "tile",
}

var headlineKeywords = []string{"headline", "title", "heading", "name", "header", "caption"}

var articleClassRe = regexp.MustCompile(`(?i)article|post|story|news`)
var dateClassRe = regexp.MustCompile(`(?i)date|time`)
var loadingClassRe = regexp.MustCompile(`(?i)loading|spinner|skeleton`)
var appRootRe = regexp.MustCompile(`(?i)^(root|app|react.*)$`)

// Detect analyzes a site and generates its extraction recipe. The sample
// query is only used to exercise search endpoints during probing.
func (d *Detector) Detect(ctx context.Context, baseURL, sampleQuery string) *domain.Profile {
	if sampleQuery == "" {
		sampleQuery = "news"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if p := d.detectAPI(ctx, baseURL, sampleQuery); p != nil {
		d.logger.Info("api endpoint detected", zap.String("base_url", baseURL),
			zap.String("endpoint", p.Strategy.Endpoint))
		return p
	}

	doc, workingURL, size := d.probeSearchPatterns(ctx, baseURL, sampleQuery)
	if doc == nil {
		d.logger.Warn("no working search url found, using fallback profile", zap.String("base_url", baseURL))
		return FallbackProfile(baseURL)
	}
	d.logger.Info("working search url found", zap.String("url", workingURL))

	strategy := domain.SearchURLStrategy(workingURL)
	if workingURL == baseURL || workingURL == baseURL+"/index.html" {
		strategy = domain.HomepageStrategy(baseURL)
	}

	dom := domain.CanonicalDomain(baseURL)
	return &domain.Profile{
		BaseURL:    baseURL,
		Domain:     dom,
		Strategy:   strategy,
		RequiresJS: checkJSRequirement(doc, size),
		Selectors: domain.Selectors{
			Containers:   detectContainers(doc),
			Headlines:    detectHeadlines(doc),
			Descriptions: descriptionSelectors(),
			Content:      contentSelectors(),
			Date:         dateSelectors(),
			Author:       authorSelectors(),
			LinkFilter:   linkFilterRules(dom),
		},
		CleaningRules: cleaningRules(),
		DeepScrape:    true,
	}
}

// detectAPI probes conventional API paths, accepting the first that
// returns 200 with a non-empty JSON payload.
func (d *Detector) detectAPI(ctx context.Context, baseURL, query string) *domain.Profile {
	q := url.QueryEscape(query)
	endpoints := []string{
		fmt.Sprintf("%s/api/search?q=%s", baseURL, q),
		fmt.Sprintf("%s/api/articles?search=%s", baseURL, q),
		fmt.Sprintf("%s/wp-json/wp/v2/posts?search=%s", baseURL, q),
		fmt.Sprintf("%s/api/v1/search?query=%s", baseURL, q),
		baseURL + "/graphql",
	}

	for _, endpoint := range endpoints {
		body, err := d.fetcher.Fetch(ctx, endpoint)
		if err != nil {
			continue
		}
		if !nonEmptyJSON(body) {
			continue
		}
		return &domain.Profile{
			BaseURL:    baseURL,
			Domain:     domain.CanonicalDomain(baseURL),
			Strategy:   domain.APIStrategy(endpoint, classifyAPI(endpoint)),
			RequiresJS: false,
			DeepScrape: false,
		}
	}
	return nil
}

func nonEmptyJSON(body []byte) bool {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return false
	}
}

func classifyAPI(endpoint string) domain.APIKind {
	switch {
	case strings.Contains(endpoint, "wp-json"):
		return domain.APIWordPress
	case strings.Contains(endpoint, "graphql"):
		return domain.APIGraphQL
	default:
		return domain.APIREST
	}
}

// searchPatterns generates the ordered list of candidate search and
// listing URLs, homepage last.
func searchPatterns(baseURL, query string) []string {
	q := url.QueryEscape(query)
	return []string{
		baseURL + "/search?q=" + q,
		baseURL + "/search?query=" + q,
		baseURL + "/search?search=" + q,
		baseURL + "/search/" + q,
		baseURL + "/?s=" + q,
		baseURL + "/?search=" + q,
		baseURL + "/news",
		baseURL + "/news/latest",
		baseURL + "/latest",
		baseURL + "/articles",
		baseURL + "/stories",
		baseURL + "/category/news",
		baseURL + "/news/all",
		baseURL,
		baseURL + "/index.html",
	}
}

func (d *Detector) probeSearchPatterns(ctx context.Context, baseURL, query string) (*goquery.Document, string, int) {
	for _, candidate := range searchPatterns(baseURL, query) {
		body, err := d.fetcher.Fetch(ctx, candidate)
		if err != nil || len(body) <= 1000 {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
		if err != nil {
			continue
		}
		if hasMeaningfulContent(doc) {
			return doc, candidate, len(body)
		}
	}
	return nil, "", 0
}

// hasMeaningfulContent judges whether a page carries actual article
// listings rather than a shell or an error page.
func hasMeaningfulContent(doc *goquery.Document) bool {
	articleLikeLinks := 0
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 100 {
			return false
		}
		n := len(strings.TrimSpace(s.Text()))
		if n > 20 && n < 200 {
			articleLikeLinks++
		}
		return true
	})

	headings := doc.Find("h1, h2, h3, h4").Length()

	articleish := 0
	doc.Find("article, div").Each(func(_ int, s *goquery.Selection) {
		if articleClassRe.MatchString(classAndID(s)) {
			articleish++
		}
	})

	return articleLikeLinks >= 5 || headings >= 10 || articleish >= 3
}

// checkJSRequirement flags pages that need a browser to render.
func checkJSRequirement(doc *goquery.Document, responseSize int) bool {
	hasAppRoot := false
	doc.Find("div[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if id, ok := s.Attr("id"); ok && appRootRe.MatchString(id) {
			hasAppRoot = true
			return false
		}
		return true
	})

	textLen := len(strings.TrimSpace(doc.Text()))
	minimalContent := responseSize > 0 && float64(textLen)/float64(responseSize) < 0.05

	articles := doc.Find("article, h2, h3").Length()
	if articles > 20 {
		articles = 20
	}
	linksWithText := 0
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 50 {
			return false
		}
		if len(strings.TrimSpace(s.Text())) > 15 {
			linksWithText++
		}
		return true
	})
	fewElements := articles < 3 && linksWithText < 10

	hasLoading := false
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if cls, ok := s.Attr("class"); ok && loadingClassRe.MatchString(cls) {
			hasLoading = true
			return false
		}
		return true
	})

	return hasAppRoot || minimalContent || fewElements || hasLoading
}

// detectContainers scores repeating elements for how strongly they look
// like one article listing, then aggregates the generalized selectors of
// everything scoring at least 6 points.
func detectContainers(doc *goquery.Document) []string {
	scores := map[string]int{}
	order := []string{}

	for _, tag := range []string{"article", "div", "li", "section", "a"} {
		doc.Find(tag).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= 200 {
				return false
			}
			score := scoreContainer(s)
			if score >= 6 {
				sel := generalizeSelector(s, tag)
				if _, seen := scores[sel]; !seen {
					order = append(order, sel)
				}
				scores[sel] += score
			}
			return true
		})
	}

	top := topSelectors(scores, order, 10)
	top = append(top,
		"article",
		`div[class*="article"]`,
		`div[class*="post"]`,
		`div[class*="story"]`,
		`li[class*="item"]`,
		`div[class*="card"]`,
		`[class*="news-item"]`,
		`[class*="article-item"]`,
	)
	return dedupeStrings(top, 15)
}

// scoreContainer is a pure function from one element snapshot to its
// article-likeness score.
func scoreContainer(s *goquery.Selection) int {
	score := 0

	heading := s.Find("h1, h2, h3, h4, h5, h6").First()
	if heading.Length() > 0 {
		score += 5
		if len(strings.TrimSpace(heading.Text())) > 15 {
			score += 3
		}
	}

	s.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if i >= 3 {
			return false
		}
		n := len(strings.TrimSpace(a.Text()))
		if n > 20 && n < 300 {
			score += 3
			return false
		}
		return true
	})

	firstPara := s.Find("p").First()
	if firstPara.Length() > 0 && len(strings.TrimSpace(firstPara.Text())) > 30 {
		score += 2
	}

	attrs := classAndID(s)
	for _, kw := range containerKeywords {
		if strings.Contains(attrs, kw) {
			score += 2
		}
	}

	if s.Find("img").Length() > 0 {
		score++
	}

	if s.Find("time").Length() > 0 || hasClassMatching(s, dateClassRe) {
		score += 2
	}

	textLen := len(strings.TrimSpace(s.Text()))
	if textLen > 50 && textLen < 2000 {
		score++
	}

	return score
}

// detectHeadlines derives headline selectors from the sample page and
// prepends them to the conventional fallbacks.
func detectHeadlines(doc *goquery.Document) []string {
	var selectors []string
	for _, tag := range []string{"h1", "h2", "h3", "h4"} {
		doc.Find(tag).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= 30 {
				return false
			}
			attrs := classAndID(s)
			for _, kw := range headlineKeywords {
				if strings.Contains(attrs, kw) {
					selectors = append(selectors, generalizeSelector(s, tag))
					break
				}
			}
			if s.ParentsFiltered("a").Length() > 0 {
				selectors = append(selectors, "a > "+tag)
			}
			return true
		})
	}

	selectors = append(selectors,
		"h1", "h2", "h3", "h4",
		"a h1", "a h2", "a h3", "a h4",
		`[class*="headline"]`, `[class*="title"]`, `[class*="heading"]`,
		"article h1", "article h2", "article h3",
		`div[class*="article"] h2`, `div[class*="article"] h3`,
		`div[class*="post"] h2`, `div[class*="post"] h3`,
		`a[class*="title"]`, `a[class*="headline"]`,
		"h1 a", "h2 a", "h3 a",
		`[role="heading"]`,
	)
	return dedupeStrings(selectors, 20)
}

func linkFilterRules(dom string) domain.LinkFilterRules {
	return domain.LinkFilterRules{
		MinTextLen: 15,
		MaxTextLen: 300,
		ExcludePatterns: []string{
			"/tag/", "/tags/", "/category/", "/categories/",
			"/author/", "/about", "/contact", "/privacy", "/terms",
			"/login", "/register", "/signup", "/subscribe", "/newsletter",
			"#", "javascript:", "mailto:", "tel:",
			"/feed", "/rss", "/sitemap", "/search",
			".pdf", ".jpg", ".png", ".gif", ".mp4", ".xml",
		},
		RequireDomain: dom,
	}
}

func descriptionSelectors() []string {
	return []string{
		"p",
		`div[class*="excerpt"]`, `div[class*="description"]`,
		`div[class*="summary"]`, `div[class*="snippet"]`,
		`span[class*="excerpt"]`, `span[class*="description"]`,
		`div[class*="teaser"]`, `div[class*="intro"]`,
		`[class*="desc"]`, `[class*="abstract"]`,
		"article p:first-of-type",
		`div[class*="article"] p:first-of-type`,
		`p[class*="lead"]`, `p[class*="intro"]`,
		`div[class*="content"] p:first-of-type`,
	}
}

func contentSelectors() []string {
	return []string{
		"article",
		`[role="main"]`,
		"main",
		`[class*="article-content"]`, `[class*="article-body"]`,
		`[class*="post-content"]`, `[class*="post-body"]`,
		`[class*="entry-content"]`, `[class*="story-body"]`,
		`[class*="article__body"]`,
		`[itemprop="articleBody"]`,
		"#article-body", "#content", ".content",
	}
}

func dateSelectors() []string {
	return []string{
		"time", "[datetime]", `[class*="date"]`, `[class*="time"]`,
		`[class*="published"]`, `[itemprop="datePublished"]`,
	}
}

func authorSelectors() []string {
	return []string{
		`[rel="author"]`, `[class*="author"]`, `[itemprop="author"]`,
		`a[href*="/author/"]`, `[class*="byline"]`,
	}
}

func cleaningRules() []string {
	return []string{
		"script", "style", "nav", "footer", "header", "aside",
		`[class*="sidebar"]`, `[class*="menu"]`,
		`[class*="ad"]`, `[class*="advertisement"]`, `[class*="banner"]`,
		`[class*="related"]`, `[class*="recommended"]`, `[class*="popular"]`,
		`[class*="share"]`, `[class*="social"]`, `[class*="comment"]`,
		`[class*="newsletter"]`, `[class*="subscribe"]`,
		"iframe", "form", `[role="complementary"]`,
	}
}

// FallbackProfile is the conservative profile used when every probe
// fails: assume JS is needed and rely on generic selectors.
func FallbackProfile(baseURL string) *domain.Profile {
	baseURL = strings.TrimRight(baseURL, "/")
	dom := domain.CanonicalDomain(baseURL)
	return &domain.Profile{
		BaseURL:    baseURL,
		Domain:     dom,
		Strategy:   domain.HomepageStrategy(baseURL),
		RequiresJS: true,
		Selectors: domain.Selectors{
			Containers: []string{
				"article", `div[class*="article"]`, `div[class*="post"]`,
				`div[class*="story"]`, `li[class*="item"]`, `div[class*="card"]`,
				`section[class*="content"]`, `div[class*="entry"]`,
				`[class*="news"]`, `[itemtype*="Article"]`,
			},
			Headlines: []string{
				"h1", "h2", "h3", "h4",
				"a > h2", "a > h3", "a > h4",
				`[class*="headline"]`, `[class*="title"]`,
				"article h2", "article h3",
				`div[class*="article"] h2`,
			},
			Descriptions: []string{
				"p", `div[class*="excerpt"]`, `div[class*="description"]`,
				`span[class*="summary"]`, "article p:first-of-type",
			},
			Content: []string{
				"article", `[class*="content"]`, `[class*="body"]`,
				"main", `[role="main"]`,
			},
			Date:       []string{"time", `[class*="date"]`},
			Author:     []string{`[class*="author"]`},
			LinkFilter: linkFilterRules(dom),
		},
		CleaningRules: []string{
			"script", "style", "nav", "footer", "header", "aside",
			`[class*="ad"]`, `[class*="related"]`,
		},
		DeepScrape: true,
	}
}

// generalizeSelector turns one concrete element into a reusable selector:
// prefer its id, else its first non-utility class, else the bare tag.
func generalizeSelector(s *goquery.Selection, tag string) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return tag + "#" + id
	}
	if cls, ok := s.Attr("class"); ok {
		for _, c := range strings.Fields(cls) {
			if len(c) > 2 && !strings.HasPrefix(c, "js-") && !strings.HasPrefix(c, "is-") {
				return tag + "." + c
			}
		}
	}
	return tag
}

func classAndID(s *goquery.Selection) string {
	cls, _ := s.Attr("class")
	id, _ := s.Attr("id")
	return strings.ToLower(cls + " " + id)
}

func hasClassMatching(s *goquery.Selection, re *regexp.Regexp) bool {
	found := false
	s.Find("[class]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if cls, ok := el.Attr("class"); ok && re.MatchString(cls) {
			found = true
			return false
		}
		return true
	})
	return found
}

// topSelectors picks the n selectors with the highest aggregate score,
// breaking ties by first appearance.
func topSelectors(scores map[string]int, order []string, n int) []string {
	sorted := make([]string, len(order))
	copy(sorted, order)
	// Insertion sort keeps the original order stable for equal scores.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && scores[sorted[j]] > scores[sorted[j-1]]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func dedupeStrings(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
