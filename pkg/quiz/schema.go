// Package quiz asks a chat model for a multiple-choice quiz and grades answers to it.
package quiz

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/xeipuuv/gojsonschema"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
)

const (
	FunctionName  = "create_quiz"
	QuestionCount = 10
	OptionCount   = 4
)

// Schema is the JSON schema of the create_quiz arguments.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": QuestionCount,
				"maxItems": QuestionCount,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{
							"type":      "string",
							"minLength": 1,
						},
						"answers": map[string]any{
							"type":     "array",
							"minItems": OptionCount,
							"maxItems": OptionCount,
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"answer": map[string]any{
										"type":      "string",
										"minLength": 1,
									},
									"correct": map[string]any{
										"type": "boolean",
									},
								},
								"required": []string{"answer", "correct"},
							},
						},
					},
					"required": []string{"question", "answers"},
				},
			},
		},
		"required": []string{"questions"},
	}
}

// Tool is the create_quiz function definition sent to the model.
func Tool() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        FunctionName,
			Description: "function that takes a list of questions and answers and returns a quiz",
			Parameters:  Schema(),
		},
	}
}

type rawQuiz struct {
	Questions []struct {
		Question string `json:"question"`
		Answers  []struct {
			Answer  string `json:"answer"`
			Correct bool   `json:"correct"`
		} `json:"answers"`
	} `json:"questions"`
}

// Parse validates create_quiz arguments and converts them to questions. Any
// deviation from the schema, or a question without exactly one correct answer,
// is a SchemaParseError.
func Parse(arguments string) ([]models.QuizQuestion, error) {
	arguments = strings.TrimSpace(arguments)
	if arguments == "" {
		return nil, types.NewSchemaError("empty function arguments", nil)
	}
	if !json.Valid([]byte(arguments)) {
		return nil, types.NewSchemaError("function arguments are not valid JSON", nil)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(Schema()),
		gojsonschema.NewStringLoader(arguments),
	)
	if err != nil {
		return nil, types.NewSchemaError("schema validation error", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, types.NewSchemaError("JSON validation failed: "+strings.Join(errs, ", "), nil)
	}

	var raw rawQuiz
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		return nil, types.NewSchemaError("function arguments do not decode", err)
	}

	questions := make([]models.QuizQuestion, 0, len(raw.Questions))
	for i, q := range raw.Questions {
		correct := 0
		seen := make(map[string]bool, len(q.Answers))
		options := make([]models.Option, 0, len(q.Answers))
		for _, a := range q.Answers {
			if seen[a.Answer] {
				return nil, types.NewSchemaError(fmt.Sprintf("question %d repeats answer %q", i+1, a.Answer), nil)
			}
			seen[a.Answer] = true
			if a.Correct {
				correct++
			}
			options = append(options, models.Option{Text: a.Answer, IsCorrect: a.Correct})
		}
		if correct != 1 {
			return nil, types.NewSchemaError(fmt.Sprintf("question %d has %d correct answers, want exactly 1", i+1, correct), nil)
		}
		questions = append(questions, models.QuizQuestion{Prompt: q.Question, Options: options})
	}

	return questions, nil
}

// argumentsFromContent finds a JSON object in a plain text reply, for providers
// that answer without a tool call.
func argumentsFromContent(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}
