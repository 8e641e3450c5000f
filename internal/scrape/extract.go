package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newscraper/internal/domain"
)

// extractComprehensive runs the three extraction passes in priority
// order, accumulating candidates until the target volume is reached.
func extractComprehensive(doc *goquery.Document, profile *domain.Profile, target int) []domain.Candidate {
	candidates := extractFromContainers(doc, profile, target*3)

	if len(candidates) < target {
		candidates = append(candidates, extractFromLinks(doc, profile)...)
	}
	if len(candidates) < target {
		candidates = append(candidates, extractSemantic(doc, profile)...)
	}
	return candidates
}

// extractFromContainers walks the profile's container selectors in
// priority order and pulls one candidate per matched element.
func extractFromContainers(doc *goquery.Document, profile *domain.Profile, limit int) []domain.Candidate {
	var out []domain.Candidate
	for _, container := range findContainers(doc, profile.Selectors.Containers, limit) {
		c := extractFromElement(container, profile)
		if validCandidate(c) {
			out = append(out, c)
		}
	}
	return out
}

// findContainers collects distinct elements across all container
// selectors, first selector wins, capped at limit.
func findContainers(doc *goquery.Document, selectors []string, limit int) []*goquery.Selection {
	var containers []*goquery.Selection
	seen := map[string]struct{}{}

	for _, selector := range selectors {
		broken := false
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			key := elementHash(s)
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				containers = append(containers, s)
			}
			if len(containers) >= limit {
				broken = true
				return false
			}
			return true
		})
		if broken {
			break
		}
	}
	return containers
}

// extractFromElement pulls headline, URL and description out of one
// container using the profile's selector lists, first match wins per field.
func extractFromElement(container *goquery.Selection, profile *domain.Profile) domain.Candidate {
	c := domain.Candidate{Source: profile.Domain}

	for _, selector := range profile.Selectors.Headlines {
		el := container.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(el.Text())
		if len(text) > 15 && len(text) < 500 {
			c.Headline = text
			break
		}
	}

	if link := findArticleLink(container, profile.Selectors.Headlines); link != nil {
		if href, ok := link.Attr("href"); ok && href != "" {
			c.URL = resolveURL(profile.BaseURL, href)
		}
	}

	for _, selector := range profile.Selectors.Descriptions {
		el := container.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(el.Text())
		if len(text) > 30 && len(text) < 1000 && text != c.Headline {
			c.Description = truncate(text, 400)
			break
		}
	}
	if c.Description == "" {
		container.Find("p").EachWithBreak(func(i int, p *goquery.Selection) bool {
			if i >= 3 {
				return false
			}
			text := strings.TrimSpace(p.Text())
			if len(text) > 30 && len(text) < 1000 && text != c.Headline {
				c.Description = truncate(text, 400)
				return false
			}
			return true
		})
	}

	return c
}

// findArticleLink locates the main link of a container: a link wrapping
// or wrapped by the headline, else the first link with meaningful text.
func findArticleLink(container *goquery.Selection, headlineSelectors []string) *goquery.Selection {
	for _, selector := range headlineSelectors {
		el := container.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if el.Is("a") {
			return el
		}
		if parent := el.Closest("a"); parent.Length() > 0 {
			return parent
		}
		if child := el.Find("a[href]").First(); child.Length() > 0 {
			return child
		}
	}

	var found *goquery.Selection
	container.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if i >= 5 {
			return false
		}
		if len(strings.TrimSpace(a.Text())) > 15 {
			found = a
			return false
		}
		return true
	})
	return found
}

const linkScanLimit = 300

// extractFromLinks mines every plausible article link on the page,
// pairing each with nearby paragraph text as a description.
func extractFromLinks(doc *goquery.Document, profile *domain.Profile) []domain.Candidate {
	var out []domain.Candidate
	rules := profile.Selectors.LinkFilter

	doc.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if i >= linkScanLimit {
			return false
		}
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if !validArticleLink(href, text, rules) {
			return true
		}

		c := domain.Candidate{
			Headline:    truncate(text, 300),
			URL:         resolveURL(profile.BaseURL, href),
			Description: descriptionNearLink(a),
			Source:      profile.Domain,
		}
		if validCandidate(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// descriptionNearLink looks for paragraph text in the link's parent and
// the parent's next siblings.
func descriptionNearLink(link *goquery.Selection) string {
	parent := link.Parent()
	if parent.Length() == 0 {
		return ""
	}

	desc := ""
	parent.Find("p").EachWithBreak(func(i int, p *goquery.Selection) bool {
		if i >= 2 {
			return false
		}
		text := strings.TrimSpace(p.Text())
		if len(text) > 30 && len(text) < 1000 {
			desc = truncate(text, 400)
			return false
		}
		return true
	})
	if desc != "" {
		return desc
	}

	sibling := parent.Next()
	for i := 0; i < 3 && sibling.Length() > 0; i++ {
		if sibling.Is("p") {
			text := strings.TrimSpace(sibling.Text())
			if len(text) > 30 && len(text) < 1000 {
				return truncate(text, 400)
			}
		}
		sibling = sibling.Next()
	}
	return ""
}

// validArticleLink applies the profile's link filter rules.
func validArticleLink(href, text string, rules domain.LinkFilterRules) bool {
	if len(text) <= rules.MinTextLen || (rules.MaxTextLen > 0 && len(text) >= rules.MaxTextLen) {
		return false
	}

	hrefLower := strings.ToLower(href)
	for _, pattern := range rules.ExcludePatterns {
		if strings.Contains(hrefLower, pattern) {
			return false
		}
	}

	if strings.HasPrefix(href, "http") && rules.RequireDomain != "" &&
		!strings.Contains(href, rules.RequireDomain) {
		return false
	}

	if href == "/" || href == "" || len(href) < 5 {
		return false
	}
	return true
}

var semanticItemtypeRe = regexp.MustCompile(`(?i)Article|NewsArticle`)

const semanticScanLimit = 100

// extractSemantic pulls candidates from <article> tags and schema.org
// Article microdata.
func extractSemantic(doc *goquery.Document, profile *domain.Profile) []domain.Candidate {
	var out []domain.Candidate

	doc.Find("article").EachWithBreak(func(i int, article *goquery.Selection) bool {
		if i >= semanticScanLimit {
			return false
		}
		heading := article.Find("h1, h2, h3, h4").First()
		link := article.Find("a[href]").First()
		if heading.Length() == 0 || link.Length() == 0 {
			return true
		}
		href, _ := link.Attr("href")
		c := domain.Candidate{
			Headline: strings.TrimSpace(heading.Text()),
			URL:      resolveURL(profile.BaseURL, href),
			Source:   profile.Domain,
		}
		if p := article.Find("p").First(); p.Length() > 0 {
			c.Description = truncate(strings.TrimSpace(p.Text()), 300)
		}
		if validCandidate(c) {
			out = append(out, c)
		}
		return true
	})

	doc.Find("[itemtype]").Each(func(_ int, item *goquery.Selection) {
		itemtype, _ := item.Attr("itemtype")
		if !semanticItemtypeRe.MatchString(itemtype) {
			return
		}
		headline := item.Find(`[itemprop="headline"]`).First()
		link := item.Find(`[itemprop="url"]`).First()
		if headline.Length() == 0 || link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		c := domain.Candidate{
			Headline: strings.TrimSpace(headline.Text()),
			URL:      resolveURL(profile.BaseURL, href),
			Source:   profile.Domain,
		}
		if desc := item.Find(`[itemprop="description"]`).First(); desc.Length() > 0 {
			c.Description = truncate(strings.TrimSpace(desc.Text()), 300)
		}
		if validCandidate(c) {
			out = append(out, c)
		}
	})

	return out
}

var (
	allDigitsRe = regexp.MustCompile(`^\d+$`)
	allCapsRe   = regexp.MustCompile(`^[A-Z\s]+$`)
	ctaRe       = regexp.MustCompile(`(?i)^(click here|read more)`)
)

// validCandidate is the validation gate applied throughout extraction:
// headline in [15,500] chars, absolute http(s) URL, no spam patterns.
func validCandidate(c domain.Candidate) bool {
	if c.Headline == "" || c.URL == "" {
		return false
	}
	if len(c.Headline) < 15 || len(c.Headline) > 500 {
		return false
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return false
	}
	if allDigitsRe.MatchString(c.Headline) || allCapsRe.MatchString(c.Headline) || ctaRe.MatchString(c.Headline) {
		return false
	}
	return true
}

// resolveURL makes href absolute against base. Unparseable input is
// returned unchanged and left for the validation gate to reject.
func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// normalizeURL canonicalizes a URL for dedup: lower-cased scheme and
// host, fragment dropped.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

// elementHash identifies an element by the first 100 chars of its text,
// to dedupe the same node matched by several selectors.
func elementHash(s *goquery.Selection) string {
	text := strings.TrimSpace(s.Text())
	if len(text) > 100 {
		text = text[:100]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
