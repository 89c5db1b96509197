package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
)

// Document is one indexed chunk of catalog knowledge.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Match is a document with its semantic similarity in [0, 1].
type Match struct {
	Document Document
	Score    float64
}

// VectorSearcher finds the documents closest to a query.
type VectorSearcher interface {
	Search(ctx context.Context, query string, k int) ([]Match, error)
	Documents() []Document
}

// MemoryIndex is an in-process cosine similarity index. Catalogs here
// are small enough that brute force beats carrying a vector store.
type MemoryIndex struct {
	embedder embedding.Embedder

	mu      sync.RWMutex
	docs    []Document
	vectors [][]float64
}

func NewMemoryIndex(embedder embedding.Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder}
}

// Add embeds and stores the given documents.
func (idx *MemoryIndex) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := idx.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return fmt.Errorf("index documents: %w", err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = append(idx.docs, docs...)
	idx.vectors = append(idx.vectors, vectors...)
	return nil
}

func (idx *MemoryIndex) Documents() []Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Document, len(idx.docs))
	copy(out, idx.docs)
	return out
}

// Search returns the k most similar documents. Cosine similarity is
// shifted into [0, 1] so downstream fusion can mix it with keyword
// scores on the same scale.
func (idx *MemoryIndex) Search(ctx context.Context, query string, k int) ([]Match, error) {
	vectors, err := idx.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: empty embedding result")
	}
	qv := vectors[0]

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]Match, 0, len(idx.docs))
	for i, doc := range idx.docs {
		matches = append(matches, Match{
			Document: doc,
			Score:    (1 + cosine(qv, idx.vectors[i])) / 2,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
