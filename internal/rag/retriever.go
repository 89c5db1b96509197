package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	logx "github.com/seller-copilot/server/pkg/logger"
)

const (
	rerankMinCandidates = 2
	rerankDropBelow     = 0.3
	adaptiveGap         = 0.3
)

// ScoredMatch is one fused retrieval result.
type ScoredMatch struct {
	ProductID     string            `json:"product_id"`
	Text          string            `json:"text"`
	Metadata      map[string]string `json:"metadata"`
	SemanticScore float64           `json:"semantic_score"`
	KeywordScore  float64           `json:"keyword_score"`
	Score         float64           `json:"score"`
}

// QueryExpander rewrites a user query into a richer search query.
type QueryExpander interface {
	Expand(ctx context.Context, query string) (string, error)
}

// Reranker assigns each candidate a fresh 0-1 relevance score against
// the original user query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []ScoredMatch) ([]float64, error)
}

// Config tunes the fusion pipeline. SemanticWeight and KeywordWeight
// are normalized to sum to 1 by NewHybridRetriever.
type Config struct {
	TopK           int
	MinScore       float64
	SemanticWeight float64
	KeywordWeight  float64
}

func DefaultConfig() Config {
	return Config{TopK: 3, MinScore: 0.35, SemanticWeight: 0.4, KeywordWeight: 0.6}
}

// HybridRetriever unions semantic and keyword search over the catalog,
// optionally expanding the query first and reranking after.
type HybridRetriever struct {
	index    VectorSearcher
	expander QueryExpander
	reranker Reranker
	cfg      Config
}

func NewHybridRetriever(index VectorSearcher, expander QueryExpander, reranker Reranker, cfg Config) *HybridRetriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	// Weights are normalized by their total so combined scores stay on
	// the 0-1 scale regardless of how the pair was configured.
	if total := cfg.SemanticWeight + cfg.KeywordWeight; total > 0 {
		cfg.SemanticWeight /= total
		cfg.KeywordWeight /= total
	} else {
		def := DefaultConfig()
		cfg.SemanticWeight = def.SemanticWeight
		cfg.KeywordWeight = def.KeywordWeight
	}
	return &HybridRetriever{index: index, expander: expander, reranker: reranker, cfg: cfg}
}

// Retrieve runs the full pipeline: expansion, dual search, weighted
// fusion, reranking, threshold and adaptive cutoff.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string) ([]ScoredMatch, error) {
	return r.RetrieveN(ctx, query, r.cfg.TopK)
}

// RetrieveN is Retrieve with a per-call result budget.
func (r *HybridRetriever) RetrieveN(ctx context.Context, query string, topK int) ([]ScoredMatch, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	searchQuery := query
	if r.expander != nil {
		expanded, err := r.expander.Expand(ctx, query)
		if err != nil {
			logx.Warn().Err(err).Str("query", query).Msg("Query expansion failed, using original")
		} else if expanded != "" {
			searchQuery = expanded
		}
	}

	semantic, err := r.index.Search(ctx, searchQuery, 2*topK)
	if err != nil {
		logx.Warn().Err(err).Str("query", searchQuery).Msg("Semantic search failed, keyword arm only")
		semantic = nil
	}
	keyword := keywordSearch(searchQuery, r.index.Documents())

	fused := r.fuse(semantic, keyword)
	logx.Debug().
		Str("query", searchQuery).
		Int("semantic", len(semantic)).
		Int("keyword", len(keyword)).
		Int("fused", len(fused)).
		Msg("Hybrid search complete")

	if r.reranker != nil && len(fused) > rerankMinCandidates {
		fused = r.rerank(ctx, query, fused)
	}

	filtered := fused[:0]
	for _, m := range fused {
		if m.Score >= r.cfg.MinScore {
			filtered = append(filtered, m)
		}
	}
	filtered = adaptiveCutoff(filtered)

	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

// fuse unions both result sets keyed by product id. A product found by
// only one path keeps a zero on the missing side.
func (r *HybridRetriever) fuse(semantic, keyword []Match) []ScoredMatch {
	byID := make(map[string]*ScoredMatch)
	order := make([]string, 0, len(semantic)+len(keyword))

	add := func(m Match) *ScoredMatch {
		id := m.Document.ID
		if sm, ok := byID[id]; ok {
			return sm
		}
		sm := &ScoredMatch{ProductID: id, Text: m.Document.Text, Metadata: m.Document.Metadata}
		byID[id] = sm
		order = append(order, id)
		return sm
	}
	for _, m := range semantic {
		add(m).SemanticScore = m.Score
	}
	for _, m := range keyword {
		add(m).KeywordScore = m.Score
	}

	out := make([]ScoredMatch, 0, len(order))
	for _, id := range order {
		sm := byID[id]
		sm.Score = sm.SemanticScore*r.cfg.SemanticWeight + sm.KeywordScore*r.cfg.KeywordWeight
		out = append(out, *sm)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// rerank blends fresh relevance scores in at equal weight and drops
// clearly irrelevant candidates. Any failure leaves the list as it was.
func (r *HybridRetriever) rerank(ctx context.Context, query string, candidates []ScoredMatch) []ScoredMatch {
	scores, err := r.reranker.Rerank(ctx, query, candidates)
	if err != nil || len(scores) != len(candidates) {
		logx.Warn().Err(err).Int("candidates", len(candidates)).Msg("Rerank failed, keeping original order")
		return candidates
	}
	out := make([]ScoredMatch, 0, len(candidates))
	for i, m := range candidates {
		if scores[i] < rerankDropBelow {
			continue
		}
		m.Score = 0.5*m.Score + 0.5*scores[i]
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// adaptiveCutoff keeps only matches within a fixed gap of the best
// surviving score so one strong hit is not diluted by weak tails.
func adaptiveCutoff(matches []ScoredMatch) []ScoredMatch {
	if len(matches) == 0 {
		return matches
	}
	top := matches[0].Score
	out := matches[:0]
	for _, m := range matches {
		if top-m.Score <= adaptiveGap {
			out = append(out, m)
		}
	}
	return out
}

// RetrieveFormatted renders matches as a context block for the
// response generator.
func (r *HybridRetriever) RetrieveFormatted(ctx context.Context, query string) (string, error) {
	matches, err := r.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "По запросу ничего не найдено в каталоге.", nil
	}
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Товар %d, релевантность %.2f]\n%s", i+1, m.Score, m.Text)
	}
	return b.String(), nil
}
