// Package store holds similarity indexes over chunk sequences.
package store

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
)

// Factory creates an empty index for a namespace.
type Factory func(ctx context.Context, namespace string) (types.Index, error)

// MemoryIndex keeps chunks in an in-process chromem-go collection.
type MemoryIndex struct {
	mu         sync.RWMutex
	collection *chromem.Collection
	embedder   types.Embedder
	chunks     map[string]models.Chunk
}

var _ types.Index = (*MemoryIndex)(nil)

func NewMemoryIndex(namespace string, embedder types.Embedder) (*MemoryIndex, error) {
	embed := func(ctx context.Context, text string) ([]float32, error) {
		v, err := embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		return normalize(v), nil
	}

	collection, err := chromem.NewDB().GetOrCreateCollection(namespace, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &MemoryIndex{
		collection: collection,
		embedder:   embedder,
		chunks:     make(map[string]models.Chunk),
	}, nil
}

// MemoryFactory builds a fresh MemoryIndex per namespace.
func MemoryFactory(embedder types.Embedder) Factory {
	return func(_ context.Context, namespace string) (types.Index, error) {
		return NewMemoryIndex(namespace, embedder)
	}
}

func (m *MemoryIndex) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to create embeddings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		id := strconv.Itoa(len(m.chunks) + i)
		docs[i] = chromem.Document{
			ID:        id,
			Content:   c.Text,
			Embedding: normalize(vectors[i]),
			Metadata:  map[string]string{"source": c.Source},
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	for i, c := range chunks {
		m.chunks[docs[i].ID] = c
	}
	return nil
}

// Search returns up to limit chunks, most similar first.
func (m *MemoryIndex) Search(ctx context.Context, query string, limit int) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// chromem rejects a result count larger than the collection
	n := min(limit, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := m.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	out := make([]models.Chunk, 0, len(results))
	for _, r := range results {
		if c, ok := m.chunks[r.ID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *MemoryIndex) Close() {
	m.mu.Lock()
	m.chunks = make(map[string]models.Chunk)
	m.mu.Unlock()
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
