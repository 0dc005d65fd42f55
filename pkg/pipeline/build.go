package pipeline

import (
	"context"
	"fmt"

	"github.com/xhad/fullstackgpt/internal/types"
	"github.com/xhad/fullstackgpt/pkg/config"
	"github.com/xhad/fullstackgpt/pkg/llm"
	"github.com/xhad/fullstackgpt/pkg/loader"
	"github.com/xhad/fullstackgpt/pkg/processor"
	"github.com/xhad/fullstackgpt/pkg/quiz"
	"github.com/xhad/fullstackgpt/pkg/research"
	"github.com/xhad/fullstackgpt/pkg/scraper"
	"github.com/xhad/fullstackgpt/pkg/siteqa"
	"github.com/xhad/fullstackgpt/pkg/store"
)

// Services is everything a front-end needs, built once per process.
type Services struct {
	Config    *config.Config
	Pipeline  *Pipeline
	Assistant *research.Assistant

	vectors *store.VectorStore
}

type buildOptions struct {
	onPage func(url string)
}

type Option func(*buildOptions)

// WithPageProgress reports every page fetched for a site index.
func WithPageProgress(fn func(url string)) Option {
	return func(o *buildOptions) {
		o.onPage = fn
	}
}

// Build wires the model clients, loaders, index backend and query stages from cfg.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Services, error) {
	var options buildOptions
	for _, opt := range opts {
		opt(&options)
	}

	chatConfig := llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	engine, err := llm.NewWithConfig(chatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.EmbeddingModel,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	svc := &Services{Config: cfg}

	var indexes store.Factory
	switch cfg.Index.Backend {
	case "pgvector":
		vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			BatchSize:  cfg.Database.BatchSize,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		svc.vectors = vs
		indexes = vs.Factory()
	default:
		indexes = store.MemoryFactory(embedder)
	}

	pageScraper, err := scraper.NewWithConfig(scraperConfig(cfg, nil, nil))
	if err != nil {
		svc.Close()
		return nil, err
	}
	tools, err := research.NewToolbox(cfg.Scraper.UserAgent, cfg.Research.SearchLimit, pageScraper)
	if err != nil {
		svc.Close()
		return nil, err
	}

	svc.Pipeline = &Pipeline{
		Files:  loader.NewFileLoader(cfg.Cache.Dir),
		Topics: loader.NewWikipediaSource(cfg.Scraper.UserAgent, cfg.Quiz.WikipediaTopK),
		Sites: func(filters []string) (types.SiteLoader, error) {
			s, err := scraper.NewWithConfig(scraperConfig(cfg, filters, options.onPage))
			if err != nil {
				return nil, err
			}
			return scraper.NewSitemapLoader(s), nil
		},
		QuizSplitter: splitter(cfg.Processor.Quiz),
		SiteSplitter: splitter(cfg.Processor.Site),
		Indexes:      indexes,
		Generator: quiz.NewGenerator(engine, quiz.GeneratorConfig{
			Temperature:      cfg.Quiz.Temperature,
			MaxContextTokens: cfg.Quiz.MaxContextTokens,
			Counter:          &processor.TokenCounter{},
		}),
		Answers: siteqa.NewAnswerer(engine, siteqa.Config{
			TopK:        cfg.Index.TopK,
			Concurrency: cfg.Site.AnswerConcurrency,
			Temperature: cfg.LLM.Temperature,
		}),
		Memo: NewMemo(),
	}
	svc.Assistant = research.NewAssistant(engine, tools, research.Config{
		MaxSteps:     cfg.Research.MaxSteps,
		Instructions: cfg.Research.Instructions,
	})

	return svc, nil
}

// Close releases the database pool when the pgvector backend is in use.
func (s *Services) Close() {
	if s.vectors != nil {
		s.vectors.Close()
	}
}

// scraperConfig uses filters as given; front-ends resolve the configured
// default, so an empty list allows every page.
func scraperConfig(cfg *config.Config, filters []string, onPage func(string)) scraper.ScraperConfig {
	return scraper.ScraperConfig{
		FilterPatterns: filters,
		NoisePatterns:  cfg.Scraper.NoisePatterns,
		RateLimit:      cfg.Scraper.RateLimit,
		Timeout:        cfg.Scraper.Timeout(),
		UserAgent:      cfg.Scraper.UserAgent,
		OnProgress:     onPage,
	}
}

func splitter(s config.SplitConfig) processor.Processor {
	return processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    s.ChunkSize,
		ChunkOverlap: s.ChunkOverlap,
		Separator:    s.Separator,
	})
}
