package scrape

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"newscraper/internal/domain"
)

const (
	deepScrapeLimit   = 40
	deepFetchTimeout  = 12 * time.Second
	contentCharLimit  = 1500
	minContentChars   = 200
	minContentParas   = 3
	paragraphWeight   = 50
	linkDensityCutoff = 0.3
)

// enrichDeepContent fetches up to the first 40 candidate pages
// concurrently and extracts full body text, publish date and author.
// A failed enrichment keeps the original candidate unenriched; sibling
// failures never abort the batch.
func (s *Scraper) enrichDeepContent(ctx context.Context, profile *domain.Profile, candidates []domain.Candidate) []domain.Candidate {
	head := candidates
	if len(head) > deepScrapeLimit {
		head = candidates[:deepScrapeLimit]
	}

	type indexed struct {
		i int
		c domain.Candidate
	}
	jobs := make(chan indexed)
	results := make(chan indexed)

	workers := s.deepWorkers
	if workers > len(head) {
		workers = len(head)
	}
	for w := 0; w < workers; w++ {
		go func() {
			for job := range jobs {
				fetchCtx, cancel := context.WithTimeout(ctx, deepFetchTimeout)
				job.c = s.enrichOne(fetchCtx, profile, job.c)
				cancel()
				results <- job
			}
		}()
	}

	go func() {
		for i, c := range head {
			jobs <- indexed{i: i, c: c}
		}
		close(jobs)
	}()

	enriched := make([]domain.Candidate, len(candidates))
	copy(enriched, candidates)
	for range head {
		r := <-results
		enriched[r.i] = r.c
	}

	s.logger.Debug("deep enrichment finished", zap.String("domain", profile.Domain),
		zap.Int("enriched", len(head)), zap.Int("passthrough", len(candidates)-len(head)))
	return enriched
}

// enrichOne fetches a single article page and fills in full content and
// metadata. On any failure the candidate is returned as it came in.
func (s *Scraper) enrichOne(ctx context.Context, profile *domain.Profile, c domain.Candidate) domain.Candidate {
	body, err := s.fetcher.Fetch(ctx, c.URL)
	if err != nil {
		return c
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return c
	}

	stripNoise(doc, profile.CleaningRules)

	content := extractReadableContent(doc, profile.Selectors.Content)
	if len(content) > 100 {
		c.FullContent = truncate(content, contentCharLimit)
	}
	if date := extractDate(doc, profile.Selectors.Date); date != "" {
		c.PublishedDate = date
	}
	if author := extractAuthor(doc, profile.Selectors.Author); author != "" {
		c.Author = author
	}
	return c
}

// stripNoise removes the profile's noise selectors plus literal HTML
// comment nodes before content extraction.
func stripNoise(doc *goquery.Document, cleaningRules []string) {
	for _, selector := range cleaningRules {
		doc.Find(selector).Remove()
	}
	removeComments(doc.Selection)
}

func removeComments(sel *goquery.Selection) {
	for _, node := range sel.Nodes {
		removeCommentNodes(node)
	}
}

func removeCommentNodes(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
		} else {
			removeCommentNodes(child)
		}
		child = next
	}
}

// extractReadableContent isolates the main article body. It first tries
// the profile's content selectors, then falls back to scoring block
// elements by text density, then to the first paragraphs on the page.
func extractReadableContent(doc *goquery.Document, contentSelectors []string) string {
	for _, selector := range contentSelectors {
		text := ""
		doc.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			paras := paragraphTexts(el, -1)
			if len(paras) >= minContentParas {
				joined := strings.Join(paras, " ")
				if len(joined) > minContentChars {
					text = joined
					return false
				}
			}
			return true
		})
		if text != "" {
			return cleanContent(text)
		}
	}

	if best := bestScoredBlock(doc); best != "" {
		return cleanContent(best)
	}

	paras := paragraphTexts(doc.Selection, 10)
	if len(paras) >= minContentParas {
		return cleanContent(strings.Join(paras, " "))
	}
	return ""
}

// bestScoredBlock scores every div with at least two direct paragraph
// children by text length plus a per-paragraph bonus, penalized by link
// density, and returns the winner's text.
func bestScoredBlock(doc *goquery.Document) string {
	bestContent := ""
	bestScore := 0.0

	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		directParas := div.ChildrenFiltered("p")
		if directParas.Length() < 2 {
			return
		}
		var parts []string
		directParas.Each(func(_ int, p *goquery.Selection) {
			parts = append(parts, strings.TrimSpace(p.Text()))
		})
		text := strings.Join(parts, " ")
		if len(text) <= minContentChars {
			return
		}

		score := float64(len(text) + directParas.Length()*paragraphWeight)

		linkText := 0
		div.Find("a").Each(func(_ int, a *goquery.Selection) {
			linkText += len(strings.TrimSpace(a.Text()))
		})
		linkDensity := 1.0
		if len(text) > 0 {
			linkDensity = float64(linkText) / float64(len(text))
		}
		if linkDensity < linkDensityCutoff {
			score *= 1 - linkDensity
		} else {
			score *= 0.5
		}

		if score > bestScore {
			bestScore = score
			bestContent = text
		}
	})
	return bestContent
}

func paragraphTexts(sel *goquery.Selection, limit int) []string {
	var out []string
	sel.Find("p").EachWithBreak(func(i int, p *goquery.Selection) bool {
		if limit >= 0 && i >= limit {
			return false
		}
		if text := strings.TrimSpace(p.Text()); text != "" {
			out = append(out, text)
		}
		return true
	})
	return out
}

var contentJunkRe = regexp.MustCompile(`[^\w\s\-.,!?:;()'"]+`)

func cleanContent(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = contentJunkRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// extractDate probes the profile's date selectors, preferring a datetime
// attribute, and normalizes what it finds to RFC 3339 where possible.
func extractDate(doc *goquery.Document, dateSelectors []string) string {
	for _, selector := range dateSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		raw, ok := el.Attr("datetime")
		if !ok {
			raw = strings.TrimSpace(el.Text())
		}
		if raw == "" {
			continue
		}
		raw = truncate(raw, 50)
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.Format(time.RFC3339)
		}
		if t, ok := parseRelativeTime(raw, time.Now()); ok {
			return t.Format(time.RFC3339)
		}
		return raw
	}
	return ""
}

func extractAuthor(doc *goquery.Document, authorSelectors []string) string {
	for _, selector := range authorSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		author := strings.TrimSpace(el.Text())
		if author != "" && len(author) < 100 {
			return author
		}
	}
	return ""
}

var relativeTimeRe = regexp.MustCompile(`(?i)^(\d+)\s*(second|minute|hour|day|week|month|year)s?\s+ago$`)

// parseRelativeTime resolves phrases like "3 hours ago", "yesterday" or
// "just now" against the supplied instant.
func parseRelativeTime(raw string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch lower {
	case "just now", "now", "today":
		return now, true
	case "yesterday":
		return now.AddDate(0, 0, -1), true
	}

	m := relativeTimeRe.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	switch m[2] {
	case "second":
		return now.Add(-time.Duration(n) * time.Second), true
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}
