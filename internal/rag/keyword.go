package rag

import (
	"strings"
)

const keywordFloor = 0.3

// keywordScore rates how well the query matches a document's title and
// category. Exact substring hits score 1.0, category hits at least
// 0.5, partial token overlap proportionally below that.
func keywordScore(query, title, category string) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	title = strings.ToLower(title)
	category = strings.ToLower(category)
	if query == "" {
		return 0
	}

	if strings.Contains(title, query) || strings.Contains(query, title) {
		return 1.0
	}

	score := 0.0
	queryTokens := strings.Fields(query)
	titleTokens := strings.Fields(title)
	if len(queryTokens) > 0 && len(titleTokens) > 0 {
		hits := 0
		for _, qt := range queryTokens {
			for _, tt := range titleTokens {
				if strings.Contains(tt, qt) || strings.Contains(qt, tt) {
					hits++
					break
				}
			}
		}
		score = 0.8 * float64(hits) / float64(len(queryTokens))
	}

	if category != "" && (strings.Contains(query, category) || strings.Contains(category, query)) {
		if score < 0.5 {
			score = 0.5
		}
	}
	return score
}

// keywordSearch scans all documents and keeps the ones above the
// keyword floor.
func keywordSearch(query string, docs []Document) []Match {
	var matches []Match
	for _, doc := range docs {
		score := keywordScore(query, doc.Metadata["title"], doc.Metadata["category"])
		if score < keywordFloor {
			continue
		}
		matches = append(matches, Match{Document: doc, Score: score})
	}
	return matches
}
