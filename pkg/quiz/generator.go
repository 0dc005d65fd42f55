package quiz

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
	"github.com/xhad/fullstackgpt/pkg/processor"
)

var ErrNoContext = errors.New("no content to build a quiz from")

const questionsPrompt = `You are a helpful assistant that is role playing as a teacher.

Based ONLY on the following context make 10 (TEN) questions to test the user's knowledge about the text.

Each question should have 4 answers, three of them must be incorrect and one should be correct.

Make the questions %s: %s

Call the create_quiz function with the questions.

Context: %s`

var difficultyHints = map[models.Difficulty]string{
	models.DifficultyEasy:   "ask about facts stated directly in the text and make the wrong answers clearly wrong",
	models.DifficultyMedium: "mix recall questions with questions that connect two facts from the text",
	models.DifficultyHard:   "ask about details and implications of the text and make the wrong answers plausible",
}

type GeneratorConfig struct {
	Temperature      float64
	MaxContextTokens int
	// Counter caps the context at MaxContextTokens. Nil sends every chunk.
	Counter *processor.TokenCounter
}

// Generator turns chunks into a quiz with a forced create_quiz function call.
type Generator struct {
	engine *llm.ChatEngine
	config GeneratorConfig
}

func NewGenerator(engine *llm.ChatEngine, config GeneratorConfig) *Generator {
	return &Generator{engine: engine, config: config}
}

// Prompt renders the system prompt for the given chunks and difficulty.
func (g *Generator) Prompt(chunks []models.Chunk, difficulty models.Difficulty) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var body string
	if g.config.Counter != nil {
		var used int
		body, used = g.config.Counter.Budget(texts, "\n\n", g.config.MaxContextTokens)
		if used < len(texts) {
			log.Printf("Quiz context trimmed to %d of %d chunks", used, len(texts))
		}
	} else {
		body = strings.Join(texts, "\n\n")
	}

	return fmt.Sprintf(questionsPrompt, difficulty, difficultyHints[difficulty], body)
}

// Generate asks the model for ten questions of four options each.
func (g *Generator) Generate(ctx context.Context, chunks []models.Chunk, difficulty models.Difficulty) ([]models.QuizQuestion, error) {
	if len(chunks) == 0 {
		return nil, &types.LoadError{Path: "quiz", Err: ErrNoContext}
	}
	if _, err := models.ParseDifficulty(string(difficulty)); err != nil {
		return nil, err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, g.Prompt(chunks, difficulty)),
	}

	resp, err := g.engine.GenerateContent(ctx, FunctionName, messages,
		llms.WithTemperature(g.config.Temperature),
		llms.WithTools([]llms.Tool{Tool()}),
		llms.WithToolChoice(llms.ToolChoice{
			Type:     "function",
			Function: &llms.FunctionReference{Name: FunctionName},
		}),
	)
	if err != nil {
		return nil, err
	}

	arguments, ok := llm.FunctionArguments(resp, FunctionName)
	if !ok {
		arguments, ok = argumentsFromContent(resp.Choices[0].Content)
	}
	if !ok {
		return nil, types.NewSchemaError("model did not call "+FunctionName, nil)
	}

	return Parse(arguments)
}
