package siteqa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
	"github.com/xhad/fullstackgpt/pkg/llm"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoAnswers     = errors.New("no chunk produced a usable answer")
	ErrEmptyQuestion = errors.New("question is required")
)

const answersPrompt = `Using ONLY the following context answer the user's question. If you can't just say you don't know, don't make anything up.

Then, give a score to the answer between 0 and 5.

If the answer answers the user question the score should be high, else it should be low.

Make sure to always include the answer's score even if it's 0.

Context: %s

Examples:

Question: How far away is the moon?
Answer: The moon is 384,400 km away.
Score: 5

Question: How far away is the sun?
Answer: I don't know
Score: 0

Your turn!

Question: %s`

const choosePrompt = `Use ONLY the following pre-existing answers to answer the user's question.

Use the answers that have the highest score (more helpful) and favor the most recent ones.

Cite sources and return the sources of the answers as they are, do not change them.

Answers: %s`

type Config struct {
	TopK        int
	Concurrency int
	Temperature float64
}

// Answerer runs the answer-per-chunk then choose flow over a similarity index.
type Answerer struct {
	engine *llm.ChatEngine
	config Config
}

func NewAnswerer(engine *llm.ChatEngine, config Config) *Answerer {
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Answerer{engine: engine, config: config}
}

// Ask retrieves the top chunks for question and returns the aggregated answer.
func (a *Answerer) Ask(ctx context.Context, question string, index types.Index) (models.SiteAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.SiteAnswer{}, ErrEmptyQuestion
	}

	chunks, err := index.Search(ctx, question, a.config.TopK)
	if err != nil {
		return models.SiteAnswer{}, fmt.Errorf("failed to retrieve chunks: %w", err)
	}

	answers, err := a.Answers(ctx, question, chunks)
	if err != nil {
		return models.SiteAnswer{}, err
	}
	return a.Choose(ctx, question, answers)
}

// Answers asks the question against each chunk. Chunks whose call fails or whose
// reply is malformed are left out.
func (a *Answerer) Answers(ctx context.Context, question string, chunks []models.Chunk) ([]models.ScoredAnswer, error) {
	results := make([]*models.ScoredAnswer, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			reply, err := a.engine.Chat(gctx, "answer", "", fmt.Sprintf(answersPrompt, chunk.Text, question),
				llms.WithTemperature(a.config.Temperature))
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Printf("Excluding chunk %s#%d: %v", chunk.Source, chunk.Index, err)
				return nil
			}

			text, score, err := ParseScored(reply)
			if err != nil {
				log.Printf("Excluding chunk %s#%d: malformed answer: %v", chunk.Source, chunk.Index, err)
				return nil
			}

			results[i] = &models.ScoredAnswer{
				Text:      text,
				Source:    chunk.Source,
				Timestamp: chunk.Timestamp,
				Score:     score,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	answers := make([]models.ScoredAnswer, 0, len(results))
	for _, r := range results {
		if r != nil {
			answers = append(answers, *r)
		}
	}
	return answers, nil
}

// Choose ranks the candidates and asks the model for the final answer. The
// result always contains the best candidate's source verbatim.
func (a *Answerer) Choose(ctx context.Context, question string, answers []models.ScoredAnswer) (models.SiteAnswer, error) {
	if len(answers) == 0 {
		return models.SiteAnswer{}, types.NewModelError("answer", ErrNoAnswers)
	}

	ranked := Rank(answers)
	best := ranked[0]

	text, err := a.engine.Chat(ctx, "choose", fmt.Sprintf(choosePrompt, Condense(ranked)), question,
		llms.WithTemperature(a.config.Temperature))
	if err != nil {
		return models.SiteAnswer{}, err
	}

	text = strings.TrimSpace(text)
	if !strings.Contains(text, best.Source) {
		text += "\n\nSource: " + best.Source
	}

	return models.SiteAnswer{
		Text:       text,
		Source:     best.Source,
		Candidates: ranked,
	}, nil
}

// Condense formats candidates for the choose prompt.
func Condense(answers []models.ScoredAnswer) string {
	parts := make([]string, len(answers))
	for i, ans := range answers {
		date := "unknown"
		if ans.Timestamp != nil {
			date = ans.Timestamp.Format("2006-01-02")
		}
		parts[i] = fmt.Sprintf("%s\nScore:%d\nSource:%s\nDate:%s\n", ans.Text, ans.Score, ans.Source, date)
	}
	return strings.Join(parts, "\n\n")
}
