package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newscraper/internal/domain"
)

// pageFetcher serves canned pages and records which URLs were requested.
type pageFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	calls []string
}

func (f *pageFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if body, ok := f.pages[url]; ok {
		return body, nil
	}
	return nil, errors.New("not found")
}

func (f *pageFetcher) requested(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == url {
			return true
		}
	}
	return false
}

func articlePage(paragraphs int) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><nav>Home News Sports</nav><article>`)
	for i := 0; i < paragraphs; i++ {
		b.WriteString("<p>The committee reviewed the proposal in detail and recommended further consultation with regional stakeholders before any vote.</p>")
	}
	b.WriteString(`<time datetime="2026-08-20T09:30:00Z">this morning</time>`)
	b.WriteString(`<span class="author-name">Jane Reporter</span>`)
	b.WriteString(`</article><footer>Contact us</footer></body></html>`)
	return []byte(b.String())
}

func deepProfile() *domain.Profile {
	p := fixtureProfile()
	p.DeepScrape = true
	p.Selectors.Content = []string{"article"}
	p.Selectors.Date = []string{"time"}
	p.Selectors.Author = []string{`[class*="author"]`}
	p.CleaningRules = []string{"nav", "footer"}
	return p
}

func TestEnrichDeepContentFillsBodyDateAuthor(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string][]byte{
		"https://example.com/news/a": articlePage(5),
	}}
	s := NewScraper(fetcher, nil, 4, zap.NewNop())

	in := []domain.Candidate{namedCandidate("Committee recommends further consultation", "https://example.com/news/a")}
	out := s.enrichDeepContent(context.Background(), deepProfile(), in)

	require.Len(t, out, 1)
	assert.Contains(t, out[0].FullContent, "regional stakeholders")
	assert.NotContains(t, out[0].FullContent, "Home News Sports", "cleaning rules strip the nav")
	assert.Equal(t, "2026-08-20T09:30:00Z", out[0].PublishedDate)
	assert.Equal(t, "Jane Reporter", out[0].Author)
}

func TestEnrichDeepContentKeepsCandidateOnFailure(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string][]byte{
		"https://example.com/news/ok": articlePage(4),
	}}
	s := NewScraper(fetcher, nil, 4, zap.NewNop())

	in := []domain.Candidate{
		namedCandidate("Committee recommends further consultation", "https://example.com/news/ok"),
		namedCandidate("This page is gone but the listing entry survives", "https://example.com/news/404"),
	}
	out := s.enrichDeepContent(context.Background(), deepProfile(), in)

	require.Len(t, out, 2)
	assert.NotEmpty(t, out[0].FullContent)
	assert.Empty(t, out[1].FullContent, "a failed fetch leaves the candidate as it came in")
	assert.Equal(t, in[1].Headline, out[1].Headline)
}

func TestEnrichDeepContentOnlyFetchesTheHead(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string][]byte{}}
	s := NewScraper(fetcher, nil, 8, zap.NewNop())

	in := make([]domain.Candidate, deepScrapeLimit+5)
	for i := range in {
		in[i] = namedCandidate(
			fmt.Sprintf("Listing entry number %02d with a headline", i),
			fmt.Sprintf("https://example.com/news/%d", i),
		)
	}
	out := s.enrichDeepContent(context.Background(), deepProfile(), in)

	require.Len(t, out, len(in), "candidates beyond the limit pass through")
	assert.True(t, fetcher.requested("https://example.com/news/0"))
	assert.True(t, fetcher.requested(fmt.Sprintf("https://example.com/news/%d", deepScrapeLimit-1)))
	assert.False(t, fetcher.requested(fmt.Sprintf("https://example.com/news/%d", deepScrapeLimit)))
}

func TestExtractReadableContentSelectorPath(t *testing.T) {
	doc := newDoc(t, string(articlePage(4)))
	content := extractReadableContent(doc, []string{"article"})
	assert.Contains(t, content, "regional stakeholders")
}

func TestExtractReadableContentScoredBlockFallback(t *testing.T) {
	// No matching content selector; the dense div must win over the
	// link-heavy one.
	html := `<html><body>
		<div class="listing">
			<p>` + strings.Repeat("<a href='/x'>linked text here</a> ", 20) + `</p>
			<p>` + strings.Repeat("<a href='/y'>more linked text</a> ", 20) + `</p>
		</div>
		<div class="body-text">
			<p>The committee reviewed the proposal in detail during an extended session on Monday afternoon.</p>
			<p>Members recommended further consultation with regional stakeholders before scheduling a vote.</p>
			<p>A revised draft is expected to circulate before the end of the legislative term.</p>
		</div>
	</body></html>`

	content := extractReadableContent(newDoc(t, html), []string{"#nonexistent"})
	assert.Contains(t, content, "regional stakeholders")
	assert.NotContains(t, content, "linked text")
}

func TestExtractReadableContentParagraphFallback(t *testing.T) {
	html := `<html><body>
		<p>The committee reviewed the proposal in detail during an extended session on Monday.</p>
		<p>Members recommended further consultation with regional stakeholders before a vote.</p>
		<p>A revised draft is expected to circulate before the end of the legislative term.</p>
	</body></html>`
	content := extractReadableContent(newDoc(t, html), nil)
	assert.Contains(t, content, "regional stakeholders")
}

func TestStripNoiseRemovesCommentsAndSelectors(t *testing.T) {
	doc := newDoc(t, `<html><body>
		<!-- tracking pixel markup -->
		<nav>site menu</nav>
		<p>Real article text stays in place.</p>
	</body></html>`)

	stripNoise(doc, []string{"nav"})

	out, err := doc.Html()
	require.NoError(t, err)
	assert.NotContains(t, out, "tracking pixel")
	assert.NotContains(t, out, "site menu")
	assert.Contains(t, out, "Real article text")
}

func TestCleanContent(t *testing.T) {
	in := "Text   with\n\nodd   spacing☃ and junk© symbols."
	out := cleanContent(in)
	assert.Equal(t, "Text with odd spacing and junk symbols.", out)
}

func TestExtractDate(t *testing.T) {
	t.Run("datetime attribute preferred", func(t *testing.T) {
		doc := newDoc(t, `<time datetime="2026-08-20T09:30:00Z">twenty minutes ago</time>`)
		assert.Equal(t, "2026-08-20T09:30:00Z", extractDate(doc, []string{"time"}))
	})

	t.Run("text content parsed", func(t *testing.T) {
		doc := newDoc(t, `<span class="date">August 20, 2026</span>`)
		got := extractDate(doc, []string{`[class*="date"]`})
		assert.True(t, strings.HasPrefix(got, "2026-08-20"), "got %q", got)
	})

	t.Run("unparseable text kept raw", func(t *testing.T) {
		doc := newDoc(t, `<span class="date">sometime back</span>`)
		assert.Equal(t, "sometime back", extractDate(doc, []string{`[class*="date"]`}))
	})

	t.Run("no match", func(t *testing.T) {
		doc := newDoc(t, `<p>no dates here</p>`)
		assert.Empty(t, extractDate(doc, []string{"time"}))
	})
}

func TestParseRelativeTime(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		raw  string
		want time.Time
	}{
		{"just now", now},
		{"Today", now},
		{"yesterday", now.AddDate(0, 0, -1)},
		{"3 hours ago", now.Add(-3 * time.Hour)},
		{"45 minutes ago", now.Add(-45 * time.Minute)},
		{"2 weeks ago", now.AddDate(0, 0, -14)},
		{"1 month ago", now.AddDate(0, -1, 0)},
		{"10 years ago", now.AddDate(-10, 0, 0)},
	}
	for _, tc := range cases {
		got, ok := parseRelativeTime(tc.raw, now)
		require.True(t, ok, "expected %q to parse", tc.raw)
		assert.Equal(t, tc.want, got, "input %q", tc.raw)
	}

	_, ok := parseRelativeTime("next week", now)
	assert.False(t, ok)
	_, ok = parseRelativeTime("ago", now)
	assert.False(t, ok)
}

func TestExtractAuthor(t *testing.T) {
	doc := newDoc(t, `<span class="author-name">Jane Reporter</span>`)
	assert.Equal(t, "Jane Reporter", extractAuthor(doc, []string{`[class*="author"]`}))

	long := newDoc(t, `<span class="author-name">`+strings.Repeat("x", 120)+`</span>`)
	assert.Empty(t, extractAuthor(long, []string{`[class*="author"]`}))
}
