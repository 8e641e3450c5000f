package scrape

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"newscraper/internal/domain"
)

const apiItemLimit = 50

// scrapeAPI pulls articles from a discovered content API. Any failure
// returns nil so the caller can fall through to HTML scraping.
func (s *Scraper) scrapeAPI(ctx context.Context, profile *domain.Profile, query string, maxResults int) []domain.Candidate {
	endpoint := profile.Strategy.Endpoint
	if strings.Contains(endpoint, "{query}") {
		endpoint = strings.ReplaceAll(endpoint, "{query}", query)
	} else if strings.Contains(endpoint, "?") && !strings.Contains(endpoint, "query") {
		endpoint += "&search=" + query
	}

	body, err := s.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		s.logger.Warn("api fetch failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil
	}

	if profile.Strategy.APIKind == domain.APIWordPress {
		return parseWordPressAPI(body, profile)
	}
	return parseGenericAPI(body, profile)
}

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	Title   wpRendered `json:"title"`
	Link    string     `json:"link"`
	Excerpt wpRendered `json:"excerpt"`
	Content wpRendered `json:"content"`
}

func parseWordPressAPI(body []byte, profile *domain.Profile) []domain.Candidate {
	var posts []wpPost
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil
	}
	if len(posts) > apiItemLimit {
		posts = posts[:apiItemLimit]
	}

	var out []domain.Candidate
	for _, post := range posts {
		c := domain.Candidate{
			Headline:    stripHTML(post.Title.Rendered),
			URL:         post.Link,
			Description: truncate(stripHTML(post.Excerpt.Rendered), 300),
			FullContent: truncate(stripHTML(post.Content.Rendered), 1000),
			Source:      profile.Domain,
		}
		if c.Headline != "" && c.URL != "" {
			out = append(out, c)
		}
	}
	return out
}

// parseGenericAPI guesses field names across the common variants used by
// REST-ish search endpoints.
func parseGenericAPI(body []byte, profile *domain.Profile) []domain.Candidate {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}

	items, ok := parsed.([]interface{})
	if !ok {
		obj, isObj := parsed.(map[string]interface{})
		if !isObj {
			return nil
		}
		for _, key := range []string{"results", "items", "articles"} {
			if list, isList := obj[key].([]interface{}); isList {
				items = list
				break
			}
		}
	}
	if len(items) > apiItemLimit {
		items = items[:apiItemLimit]
	}

	var out []domain.Candidate
	for _, raw := range items {
		item, isMap := raw.(map[string]interface{})
		if !isMap {
			continue
		}
		headline := firstString(item, "title", "headline", "name", "heading")
		link := firstString(item, "url", "link", "href", "permalink")
		if headline == "" || link == "" {
			continue
		}
		out = append(out, domain.Candidate{
			Headline:    truncate(headline, 300),
			URL:         resolveURL(profile.BaseURL, link),
			Description: truncate(firstString(item, "description", "excerpt", "summary", "snippet"), 300),
			Source:      profile.Domain,
		})
	}
	return out
}

func firstString(item map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := item[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func stripHTML(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
