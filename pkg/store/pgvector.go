package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore keeps chunk embeddings in Postgres. Each site index lives in its
// own namespace within one table.
type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig, embedder types.Embedder) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "site_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			source TEXT NOT NULL,
			lastmod TIMESTAMPTZ,
			content TEXT,
			chunk_index INTEGER,
			chunk_offset INTEGER,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_namespace_idx ON %s (namespace)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Collection returns the index for one namespace.
func (vs *VectorStore) Collection(namespace string) *Collection {
	return &Collection{store: vs, namespace: namespace}
}

// Factory builds namespaced collections for the pipeline.
func (vs *VectorStore) Factory() Factory {
	return func(_ context.Context, namespace string) (types.Index, error) {
		return vs.Collection(namespace), nil
	}
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// Collection is a namespace of a VectorStore.
type Collection struct {
	store     *VectorStore
	namespace string
}

var _ types.Index = (*Collection)(nil)

// Add embeds the chunks in batches and upserts them.
func (c *Collection) Add(ctx context.Context, chunks []models.Chunk) error {
	vs := c.store

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, namespace, source, lastmod, content, chunk_index, chunk_offset, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			lastmod = EXCLUDED.lastmod,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = sanitizeUTF8(chunk.Text)
		}

		vectors, err := vs.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to create embeddings: %w", err)
		}

		tx, err := vs.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		for i, chunk := range batch {
			id := fmt.Sprintf("%s_%s_%d", c.namespace, chunk.Source, chunk.Index)
			_, err = tx.Exec(ctx, stmt,
				id,
				c.namespace,
				chunk.Source,
				chunk.Timestamp,
				texts[i],
				chunk.Index,
				chunk.Offset,
				pgvector.NewVector(vectors[i]),
			)
			if err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("failed to insert chunk: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return nil
}

// Search returns the chunks nearest to query by cosine distance.
func (c *Collection) Search(ctx context.Context, query string, limit int) ([]models.Chunk, error) {
	vs := c.store

	embedding, err := vs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT source, lastmod, content, chunk_index, chunk_offset
		FROM %s
		WHERE namespace = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, sql, c.namespace, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			chunk   models.Chunk
			lastmod *time.Time
		)
		if err := rows.Scan(&chunk.Source, &lastmod, &chunk.Text, &chunk.Index, &chunk.Offset); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunk.Timestamp = lastmod
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// Close leaves the rows in place so the namespace can be reused by the next process.
func (c *Collection) Close() {}

// sanitizeUTF8 drops invalid bytes and NULs, which Postgres rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		s = string(v)
	}
	return strings.ReplaceAll(s, "\x00", "")
}
