// Package pipeline connects loaders, the splitter, the memo tables and the query
// stages for one interaction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"

	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
	"github.com/xhad/fullstackgpt/pkg/cache"
	"github.com/xhad/fullstackgpt/pkg/processor"
	"github.com/xhad/fullstackgpt/pkg/store"
)

var (
	ErrNoSource = errors.New("a file or a topic is required")
	ErrNoPages  = errors.New("sitemap produced no pages")
)

// Memo holds the tables shared by every interaction of a process.
type Memo struct {
	Chunks  *cache.Table[[]models.Chunk]
	Quizzes *cache.Table[[]models.QuizQuestion]
	Sites   *cache.Table[types.Index]
}

func NewMemo() *Memo {
	return &Memo{
		Chunks:  cache.NewTable[[]models.Chunk]("chunks"),
		Quizzes: cache.NewTable[[]models.QuizQuestion]("quizzes"),
		Sites:   cache.NewTable[types.Index]("sites"),
	}
}

type QuizGenerator interface {
	Generate(ctx context.Context, chunks []models.Chunk, difficulty models.Difficulty) ([]models.QuizQuestion, error)
}

type SiteAnswerer interface {
	Ask(ctx context.Context, question string, index types.Index) (models.SiteAnswer, error)
}

// SiteLoaderFunc builds a sitemap loader for an allow-list of URL patterns.
type SiteLoaderFunc func(filters []string) (types.SiteLoader, error)

type Pipeline struct {
	Files        types.FileLoader
	Topics       types.TopicSource
	Sites        SiteLoaderFunc
	QuizSplitter processor.Processor
	SiteSplitter processor.Processor
	Indexes      store.Factory
	Generator    QuizGenerator
	Answers      SiteAnswerer
	Memo         *Memo
}

// QuizSource is either an uploaded file or a topic.
type QuizSource struct {
	FileName string
	Content  []byte
	Topic    string
}

type QuizResult struct {
	Key        cache.Fingerprint
	Source     string
	Difficulty models.Difficulty
	Questions  []models.QuizQuestion
}

func splitParams(p processor.Processor) []string {
	c := p.Config()
	return []string{strconv.Itoa(c.ChunkSize), strconv.Itoa(c.ChunkOverlap), c.Separator}
}

// QuizChunks loads and splits a quiz source, once per distinct input.
func (p *Pipeline) QuizChunks(ctx context.Context, src QuizSource) ([]models.Chunk, cache.Fingerprint, string, error) {
	var (
		key    cache.Fingerprint
		label  string
		loader func() ([]models.RawDocument, error)
	)
	// shared work outlives the caller that happened to start it
	shared := context.WithoutCancel(ctx)

	switch {
	case len(src.Content) > 0 || src.FileName != "":
		label = src.FileName
		parts := append([]string{"file", cache.ContentHash(src.Content), src.FileName}, splitParams(p.QuizSplitter)...)
		key = cache.NewFingerprint(parts...)
		loader = func() ([]models.RawDocument, error) {
			return p.Files.Load(shared, src.FileName, src.Content)
		}
	case strings.TrimSpace(src.Topic) != "":
		topic := strings.TrimSpace(src.Topic)
		label = "wikipedia:" + topic
		parts := append([]string{"wiki", topic}, splitParams(p.QuizSplitter)...)
		key = cache.NewFingerprint(parts...)
		loader = func() ([]models.RawDocument, error) {
			return p.Topics.Search(shared, topic)
		}
	default:
		return nil, "", "", &types.LoadError{Path: "quiz", Err: ErrNoSource}
	}

	chunks, err := p.Memo.Chunks.Do(key, func() ([]models.Chunk, error) {
		docs, err := loader()
		if err != nil {
			return nil, err
		}
		chunks := p.QuizSplitter.Process(docs)
		log.Printf("Split %s into %d chunks", label, len(chunks))
		return chunks, nil
	})
	return chunks, key, label, err
}

// Quiz returns the questions for a source and difficulty. Identical requests
// reuse the stored quiz; a different difficulty generates a new one.
func (p *Pipeline) Quiz(ctx context.Context, src QuizSource, difficulty models.Difficulty) (QuizResult, error) {
	chunks, sourceKey, label, err := p.QuizChunks(ctx, src)
	if err != nil {
		return QuizResult{}, err
	}

	key := cache.NewFingerprint("quiz", string(sourceKey), string(difficulty))
	questions, err := p.Memo.Quizzes.Do(key, func() ([]models.QuizQuestion, error) {
		return p.Generator.Generate(context.WithoutCancel(ctx), chunks, difficulty)
	})
	if err != nil {
		return QuizResult{}, err
	}

	return QuizResult{
		Key:        key,
		Source:     label,
		Difficulty: difficulty,
		Questions:  questions,
	}, nil
}

// SiteIndex loads, splits and indexes a site once per sitemap, filter set and
// split parameters.
func (p *Pipeline) SiteIndex(ctx context.Context, sitemapURL string, filters []string) (types.Index, error) {
	sorted := slices.Clone(filters)
	slices.Sort(sorted)

	parts := []string{"site", sitemapURL, strconv.Itoa(len(sorted))}
	parts = append(parts, sorted...)
	parts = append(parts, splitParams(p.SiteSplitter)...)
	key := cache.NewFingerprint(parts...)

	return p.Memo.Sites.Do(key, func() (types.Index, error) {
		shared := context.WithoutCancel(ctx)
		loader, err := p.Sites(sorted)
		if err != nil {
			return nil, &types.LoadError{Path: sitemapURL, Err: err}
		}

		docs, err := loader.Load(shared, sitemapURL)
		if err != nil {
			return nil, err
		}

		chunks := p.SiteSplitter.Process(docs)
		if len(chunks) == 0 {
			return nil, &types.LoadError{Path: sitemapURL, Err: ErrNoPages}
		}

		index, err := p.Indexes(shared, string(key))
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
		if err := index.Add(shared, chunks); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to index %s: %w", sitemapURL, err)
		}

		log.Printf("Indexed %d chunks from %d pages of %s", len(chunks), len(docs), sitemapURL)
		return index, nil
	})
}

// AskSite answers a question about a site, building its index on first use.
func (p *Pipeline) AskSite(ctx context.Context, sitemapURL string, filters []string, question string) (models.SiteAnswer, error) {
	index, err := p.SiteIndex(ctx, sitemapURL, filters)
	if err != nil {
		return models.SiteAnswer{}, err
	}
	return p.Answers.Ask(ctx, question, index)
}
