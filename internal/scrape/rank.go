package scrape

import (
	"sort"
	"strings"

	"newscraper/internal/domain"
)

// genericQueries are not filtered on: they mean "give me everything".
var genericQueries = map[string]struct{}{
	"news": {}, "latest": {}, "today": {}, "all": {},
}

// lenientQueryLen is the threshold below which a single-term query keeps
// zero-scoring candidates. Tunable; kept for compatibility with observed
// behavior on short ambiguous queries.
const lenientQueryLen = 5

// filterByRelevance scores candidates against the query and drops those
// with no match. If the filter would eliminate everything, the original
// set is returned unfiltered rather than an empty list.
func filterByRelevance(candidates []domain.Candidate, query string) []domain.Candidate {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return candidates
	}
	if _, generic := genericQueries[queryLower]; generic {
		return candidates
	}

	terms := strings.Fields(queryLower)
	lenient := len(terms) == 1 && len(queryLower) < lenientQueryLen

	var filtered []domain.Candidate
	for _, c := range candidates {
		score := relevanceScore(c, queryLower, terms)
		if score > 0 || lenient {
			c.Relevance = score
			filtered = append(filtered, c)
		}
	}

	if len(filtered) == 0 {
		return candidates
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Relevance > filtered[j].Relevance
	})
	return filtered
}

// relevanceScore is a pure function over one candidate snapshot:
// exact phrase and per-term matches over the combined text, with extra
// weight for headline hits and a weak credit for shared word stems.
func relevanceScore(c domain.Candidate, queryLower string, terms []string) int {
	searchable := strings.ToLower(c.Headline + " " + c.Description + " " + c.FullContent)
	headline := strings.ToLower(c.Headline)

	score := 0
	if strings.Contains(searchable, queryLower) {
		score += 10
	}
	for _, term := range terms {
		if strings.Contains(searchable, term) {
			score += 3
		}
	}
	if strings.Contains(headline, queryLower) {
		score += 15
	}
	for _, term := range terms {
		if strings.Contains(headline, term) {
			score += 5
		}
	}
	for _, term := range terms {
		if len(term) > 4 && strings.Contains(searchable, term[:4]) {
			score++
		}
	}
	return score
}

// scoreAndDeduplicate drops candidates whose normalized URL or
// lower-cased headline was already seen (first-seen wins), assigns
// quality scores, and stable-sorts by (relevance, quality) descending.
func scoreAndDeduplicate(candidates []domain.Candidate) []domain.Candidate {
	seenURLs := map[string]struct{}{}
	seenHeadlines := map[string]struct{}{}
	unique := make([]domain.Candidate, 0, len(candidates))

	for _, c := range candidates {
		urlKey := normalizeURL(c.URL)
		headlineKey := strings.ToLower(c.Headline)
		if _, dup := seenURLs[urlKey]; dup {
			continue
		}
		if _, dup := seenHeadlines[headlineKey]; dup {
			continue
		}
		seenURLs[urlKey] = struct{}{}
		seenHeadlines[headlineKey] = struct{}{}

		c.Quality = qualityScore(c)
		unique = append(unique, c)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].Relevance != unique[j].Relevance {
			return unique[i].Relevance > unique[j].Relevance
		}
		return unique[i].Quality > unique[j].Quality
	})
	return unique
}

// qualityScore rewards completeness: description, full content, date,
// author, and a well-formed headline.
func qualityScore(c domain.Candidate) int {
	score := 0
	if len(c.Description) > 50 {
		score += 2
	}
	if len(c.FullContent) > 200 {
		score += 3
	}
	if c.PublishedDate != "" {
		score++
	}
	if c.Author != "" {
		score++
	}
	if len(c.Headline) > 20 && len(c.Headline) < 200 {
		score++
	}
	if c.Headline != strings.ToUpper(c.Headline) {
		score++
	}
	return score
}
