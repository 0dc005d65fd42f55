package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/fullstackgpt/internal/types"
)

type EmbedderConfig struct {
	Provider  string // openai or ollama
	Model     string
	APIKey    string
	BaseURL   string
	BatchSize int
}

// Embedder turns chunk text into vectors through a langchaingo embedder.
type Embedder struct {
	Config EmbedderConfig
	embed  embeddings.Embedder
}

var _ types.Embedder = (*Embedder)(nil)

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 512
	}

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch config.Provider {
	case "openai":
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	case "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest" // Default Ollama model
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		client, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
	if err != nil {
		return nil, types.NewModelError("init embedder", err)
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, types.NewModelError("init embedder", err)
	}

	return &Embedder{Config: config, embed: emb}, nil
}

// NewEmbedderWith wraps an existing langchaingo embedder.
func NewEmbedderWith(emb embeddings.Embedder) *Embedder {
	return &Embedder{embed: emb}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embed.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, types.NewModelError("embed documents", err)
	}
	if len(vectors) != len(texts) {
		return nil, types.NewModelError("embed documents", fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embed.EmbedQuery(ctx, text)
	if err != nil {
		return nil, types.NewModelError("embed query", err)
	}
	return vector, nil
}
