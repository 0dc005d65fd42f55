package loader

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/tools/wikipedia"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
)

const wikipediaTopK = 5

var ErrEmptyTopic = errors.New("topic is required")

// Searcher is the part of a langchaingo tool the topic source needs.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

// WikipediaSource looks a topic up on Wikipedia and returns one document per page.
type WikipediaSource struct {
	searcher Searcher
}

func NewWikipediaSource(userAgent string, topK int) *WikipediaSource {
	if topK <= 0 {
		topK = wikipediaTopK
	}
	tool := wikipedia.New(userAgent)
	tool.TopK = topK
	return &WikipediaSource{searcher: tool}
}

// NewWikipediaSourceWith uses a custom searcher, mostly for tests.
func NewWikipediaSourceWith(s Searcher) *WikipediaSource {
	return &WikipediaSource{searcher: s}
}

var _ types.TopicSource = (*WikipediaSource)(nil)

func (w *WikipediaSource) Search(ctx context.Context, topic string) ([]models.RawDocument, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &types.LoadError{Path: "wikipedia", Err: ErrEmptyTopic}
	}

	out, err := w.searcher.Call(ctx, topic)
	if err != nil {
		return nil, &types.FetchError{URL: "wikipedia:" + topic, Err: err}
	}

	origin := "wikipedia:" + topic
	var docs []models.RawDocument
	for _, page := range splitPages(out) {
		docs = append(docs, models.RawDocument{
			Content:  page,
			Metadata: models.Metadata{Origin: origin},
		})
	}
	if len(docs) == 0 {
		return nil, &types.LoadError{Path: origin, Err: ErrEmptyDocument}
	}
	return docs, nil
}

// splitPages separates the tool's "Page: ..." sections.
func splitPages(out string) []string {
	var pages []string
	for _, section := range strings.Split(out, "Page: ") {
		section = strings.TrimSpace(section)
		if section != "" {
			pages = append(pages, section)
		}
	}
	return pages
}
