package research

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/fullstackgpt/internal/types"
	"github.com/xhad/fullstackgpt/pkg/llm"
)

const DefaultInstructions = "You help users do research on the given query using search engines. You give users found websites and extract those."

var ErrMaxSteps = errors.New("assistant did not finish within the step limit")

type EventType string

const (
	EventStatus   EventType = "status"
	EventStream   EventType = "stream"
	EventResponse EventType = "response"
)

type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

type Config struct {
	MaxSteps     int
	Instructions string
}

// Assistant alternates model calls and tool executions until the model replies
// without tool calls.
type Assistant struct {
	engine *llm.ChatEngine
	tools  *Toolbox
	config Config
}

func NewAssistant(engine *llm.ChatEngine, tools *Toolbox, config Config) *Assistant {
	if config.MaxSteps <= 0 {
		config.MaxSteps = 8
	}
	if config.Instructions == "" {
		config.Instructions = DefaultInstructions
	}
	return &Assistant{engine: engine, tools: tools, config: config}
}

// Run answers question. onEvent, when set, receives status lines and streamed text.
func (a *Assistant) Run(ctx context.Context, question string, onEvent func(Event)) (string, error) {
	emit := func(t EventType, content string) {
		if onEvent != nil {
			onEvent(Event{Type: t, Content: content})
		}
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, a.config.Instructions),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}

	for step := 0; step < a.config.MaxSteps; step++ {
		resp, err := a.engine.ChatStream(ctx, "research", messages, func(chunk string) {
			emit(EventStream, chunk)
		}, llms.WithTools(Definitions()))
		if err != nil {
			return "", err
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			emit(EventResponse, choice.Content)
			return choice.Content, nil
		}

		assistantTurn := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, tc := range choice.ToolCalls {
			assistantTurn.Parts = append(assistantTurn.Parts, tc)
		}
		messages = append(messages, assistantTurn)

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				return "", types.NewSchemaError("tool call without function", nil)
			}
			call, err := ParseCall(tc.ID, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
			if err != nil {
				return "", err
			}

			emit(EventStatus, fmt.Sprintf("Calling function: %s with arg %s", call.Tool, tc.FunctionCall.Arguments))
			output, err := a.tools.Dispatch(ctx, call)
			if err != nil {
				if types.IsSchemaError(err) {
					return "", err
				}
				log.Printf("Tool %s failed: %v", call.Tool, err)
				output = fmt.Sprintf("error: %v", err)
			}

			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    output,
				}},
			})
		}
	}

	return "", types.NewModelError("research", fmt.Errorf("%w (%d)", ErrMaxSteps, a.config.MaxSteps))
}
