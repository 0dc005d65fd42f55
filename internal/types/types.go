package types

import (
	"context"

	"github.com/xhad/fullstackgpt/internal/models"
)

// Core interfaces

type FileLoader interface {
	Load(ctx context.Context, name string, content []byte) ([]models.RawDocument, error)
}

type TopicSource interface {
	Search(ctx context.Context, topic string) ([]models.RawDocument, error)
}

type SiteLoader interface {
	Load(ctx context.Context, sitemapURL string) ([]models.RawDocument, error)
}

type Splitter interface {
	Process(docs []models.RawDocument) []models.Chunk
}

// Index is a similarity index built over a chunk sequence.
type Index interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, query string, limit int) ([]models.Chunk, error)
	Close()
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
