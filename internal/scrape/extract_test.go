package scrape

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newscraper/internal/domain"
)

func newDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func fixtureProfile() *domain.Profile {
	return &domain.Profile{
		BaseURL:  "https://example.com",
		Domain:   "example.com",
		Strategy: domain.SearchURLStrategy("https://example.com/search?q={query}"),
		Selectors: domain.Selectors{
			Containers:   []string{"article", `div[class*="story"]`},
			Headlines:    []string{"h2", "h3"},
			Descriptions: []string{"p"},
			LinkFilter: domain.LinkFilterRules{
				MinTextLen: 15,
				MaxTextLen: 300,
				ExcludePatterns: []string{
					"/tag/", "/category/", "/author/", "#", "javascript:", "mailto:", ".pdf",
				},
				RequireDomain: "example.com",
			},
		},
	}
}

func TestValidCandidate(t *testing.T) {
	cases := []struct {
		name     string
		headline string
		url      string
		want     bool
	}{
		{"too short", "Short head", "https://example.com/a", false},
		{"exactly fifteen chars", "Fifteen chars!!", "https://example.com/a", true},
		{"all digits", "123456789012345678", "https://example.com/a", false},
		{"all caps", "BREAKING NEWS TODAY NOW", "https://example.com/a", false},
		{"call to action", "Click here for the full story", "https://example.com/a", false},
		{"read more prefix", "Read more about the economy", "https://example.com/a", false},
		{"relative url", "Markets rally on rate decision", "/news/a", false},
		{"missing url", "Markets rally on rate decision", "", false},
		{"valid", "Markets rally on rate decision", "https://example.com/news/a", true},
		{"http scheme", "Markets rally on rate decision", "http://example.com/news/a", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := domain.Candidate{Headline: tc.headline, URL: tc.url}
			assert.Equal(t, tc.want, validCandidate(c))
		})
	}
}

func TestValidArticleLink(t *testing.T) {
	rules := fixtureProfile().Selectors.LinkFilter

	assert.True(t, validArticleLink("/news/markets-rally", "Markets rally on central bank decision", rules))
	assert.False(t, validArticleLink("/news/markets-rally", "Markets", rules), "text at or below the minimum is rejected")
	assert.False(t, validArticleLink("/tag/economy", "Markets rally on central bank decision", rules))
	assert.False(t, validArticleLink("mailto:tips@example.com", "Markets rally on central bank decision", rules))
	assert.False(t, validArticleLink("https://other.net/story", "Markets rally on central bank decision", rules),
		"absolute links must stay on the site's domain")
	assert.True(t, validArticleLink("https://example.com/story-one", "Markets rally on central bank decision", rules))
	assert.False(t, validArticleLink("/", "Markets rally on central bank decision", rules))
	assert.False(t, validArticleLink("/news", strings.Repeat("x", 300), rules), "text at the maximum is rejected")
}

func TestExtractFromContainers(t *testing.T) {
	html := `<html><body>
		<article>
			<h2><a href="/news/rates">Central bank holds interest rates steady</a></h2>
			<p>The decision follows three quarters of slowing inflation across major economies.</p>
		</article>
		<article>
			<h2><a href="/news/markets">Markets rally after the announcement</a></h2>
			<p>Equity indexes rose across european and asian trading sessions on Tuesday.</p>
		</article>
		<article>
			<h2>No link in this one at all</h2>
		</article>
	</body></html>`

	candidates := extractFromContainers(newDoc(t, html), fixtureProfile(), 30)

	require.Len(t, candidates, 2, "the container without a link fails validation")
	assert.Equal(t, "Central bank holds interest rates steady", candidates[0].Headline)
	assert.Equal(t, "https://example.com/news/rates", candidates[0].URL, "relative hrefs resolve against the base")
	assert.Contains(t, candidates[0].Description, "slowing inflation")
	assert.Equal(t, "example.com", candidates[0].Source)
}

func TestFindContainersDedupesAcrossSelectors(t *testing.T) {
	// The same element matches both "article" and div[class*="story"]
	// nesting; it must be collected once.
	html := `<html><body>
		<article class="story-block">
			<h2>Central bank holds interest rates steady</h2>
			<p>The decision follows three quarters of slowing inflation across economies.</p>
		</article>
	</body></html>`
	doc := newDoc(t, html)

	containers := findContainers(doc, []string{"article", "article.story-block"}, 10)
	assert.Len(t, containers, 1)
}

func TestFindArticleLink(t *testing.T) {
	t.Run("headline wrapped in link", func(t *testing.T) {
		doc := newDoc(t, `<div><a href="/a"><h2>Markets rally on rate decision</h2></a></div>`)
		link := findArticleLink(doc.Find("div").First(), []string{"h2"})
		require.NotNil(t, link)
		href, _ := link.Attr("href")
		assert.Equal(t, "/a", href)
	})

	t.Run("link inside headline", func(t *testing.T) {
		doc := newDoc(t, `<div><h2><a href="/b">Markets rally on rate decision</a></h2></div>`)
		link := findArticleLink(doc.Find("div").First(), []string{"h2"})
		require.NotNil(t, link)
		href, _ := link.Attr("href")
		assert.Equal(t, "/b", href)
	})

	t.Run("falls back to first meaningful link", func(t *testing.T) {
		doc := newDoc(t, `<div><a href="/x">go</a><a href="/c">Markets rally on rate decision</a></div>`)
		link := findArticleLink(doc.Find("div").First(), []string{"h2"})
		require.NotNil(t, link)
		href, _ := link.Attr("href")
		assert.Equal(t, "/c", href)
	})
}

func TestExtractFromLinks(t *testing.T) {
	html := `<html><body>
		<div>
			<a href="/news/rates-decision">Central bank holds interest rates steady</a>
			<p>The decision follows three quarters of slowing inflation across economies.</p>
		</div>
		<a href="/tag/economy">Economy coverage from all of our desks</a>
		<a href="/subscribe-now-today">ok</a>
	</body></html>`

	candidates := extractFromLinks(newDoc(t, html), fixtureProfile())

	require.Len(t, candidates, 1)
	assert.Equal(t, "Central bank holds interest rates steady", candidates[0].Headline)
	assert.Contains(t, candidates[0].Description, "slowing inflation")
}

func TestExtractSemanticMicrodata(t *testing.T) {
	html := `<html><body>
		<div itemscope itemtype="https://schema.org/NewsArticle">
			<span itemprop="headline">Central bank holds interest rates steady</span>
			<a itemprop="url" href="/news/rates">full story</a>
			<span itemprop="description">The decision follows slowing inflation.</span>
		</div>
		<div itemscope itemtype="https://schema.org/Person">
			<span itemprop="headline">Not an article and must be skipped</span>
			<a itemprop="url" href="/people/x">profile</a>
		</div>
	</body></html>`

	candidates := extractSemantic(newDoc(t, html), fixtureProfile())

	require.Len(t, candidates, 1)
	assert.Equal(t, "Central bank holds interest rates steady", candidates[0].Headline)
	assert.Equal(t, "https://example.com/news/rates", candidates[0].URL)
	assert.Equal(t, "The decision follows slowing inflation.", candidates[0].Description)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com/News/A", normalizeURL("HTTPS://Example.COM/News/A#section"))
	assert.Equal(t, normalizeURL("https://example.com/a"), normalizeURL("https://EXAMPLE.com/a"))
	assert.NotEqual(t, normalizeURL("https://example.com/a?p=1"), normalizeURL("https://example.com/a?p=2"),
		"query strings distinguish pages")
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://example.com/news/a", resolveURL("https://example.com", "/news/a"))
	assert.Equal(t, "https://other.net/x", resolveURL("https://example.com", "https://other.net/x"))
	assert.Equal(t, "https://example.com/news/a", resolveURL("https://example.com", "  /news/a "))
}
