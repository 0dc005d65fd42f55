package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/fullstackgpt/internal/llmtest"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/pkg/store"
)

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()
	emb := &llmtest.Embedder{Dim: 256}

	idx, err := store.NewMemoryIndex("site", emb)
	require.NoError(t, err)
	defer idx.Close()

	ts := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	chunks := []models.Chunk{
		{Text: "dogs bark at the mail carrier", Source: "https://example.com/dogs", Timestamp: &ts, Index: 0},
		{Text: "cats sleep most of the day", Source: "https://example.com/cats", Index: 0},
		{Text: "interest rates moved again", Source: "https://example.com/rates", Index: 0},
	}
	require.NoError(t, idx.Add(ctx, chunks))
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 1, emb.Calls())

	results, err := idx.Search(ctx, "why do dogs bark", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, chunks[0], results[0])

	// more results than stored chunks is clamped
	all, err := idx.Search(ctx, "cats", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "https://example.com/cats", all[0].Source)
}

func TestMemoryIndex_Empty(t *testing.T) {
	idx, err := store.NewMemoryIndex("empty", &llmtest.Embedder{})
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Add(context.Background(), nil))
}

type brokenEmbedder struct{}

func (brokenEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func (brokenEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func TestMemoryIndex_EmbedderError(t *testing.T) {
	idx, err := store.NewMemoryIndex("broken", brokenEmbedder{})
	require.NoError(t, err)

	err = idx.Add(context.Background(), []models.Chunk{{Text: "x", Source: "s"}})
	assert.ErrorContains(t, err, "embedding service down")
}

func TestMemoryFactory(t *testing.T) {
	factory := store.MemoryFactory(&llmtest.Embedder{})

	a, err := factory(context.Background(), "a")
	require.NoError(t, err)
	b, err := factory(context.Background(), "b")
	require.NoError(t, err)

	require.NoError(t, a.Add(context.Background(), []models.Chunk{{Text: "only in a", Source: "a"}}))

	results, err := b.Search(context.Background(), "only in a", 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}
