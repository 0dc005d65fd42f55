package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/fullstackgpt/internal/llmtest"
	"github.com/xhad/fullstackgpt/internal/types"
	"github.com/xhad/fullstackgpt/pkg/llm"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
	})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text:latest", emb.Config.Model)
	assert.Equal(t, 512, emb.Config.BatchSize)

	_, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: "nope"})
	assert.Error(t, err)
}

func TestEmbedder(t *testing.T) {
	emb := llm.NewEmbedderWith(&llmtest.Embedder{Dim: 16})

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"This is the first chunk.", "And this is the second chunk."})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 16)

	q, err := emb.EmbedQuery(context.Background(), "first chunk")
	require.NoError(t, err)
	assert.Len(t, q, 16)
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func TestEmbedderErrors(t *testing.T) {
	emb := llm.NewEmbedderWith(failingEmbedder{})

	_, err := emb.EmbedDocuments(context.Background(), []string{"x"})
	assert.True(t, types.IsModelError(err))

	_, err = emb.EmbedQuery(context.Background(), "x")
	assert.True(t, types.IsModelError(err))
}
