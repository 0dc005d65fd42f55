package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/fullstackgpt/internal/types"
)

var ErrEmptyResponse = errors.New("model returned no choices")

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string // openai or ollama
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// ChatEngine wraps a langchaingo model and reports every failure as a ModelCallError.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine backed by OpenAI or Ollama.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case "openai":
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
		opts := []openai.Option{openai.WithModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral" // Default Ollama model
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		model, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
	if err != nil {
		return nil, types.NewModelError("init", fmt.Errorf("failed to initialize LLM: %w", err))
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, config ChatConfig) *ChatEngine {
	return &ChatEngine{config: config, llm: model}
}

func (ce *ChatEngine) Config() ChatConfig {
	return ce.config
}

func (ce *ChatEngine) baseOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(ce.config.Temperature)}
	if ce.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(ce.config.MaxTokens))
	}
	return opts
}

// GenerateContent sends messages to the model. Caller options override the engine defaults.
func (ce *ChatEngine) GenerateContent(ctx context.Context, op string, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := append(ce.baseOptions(), options...)

	resp, err := ce.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, types.NewModelError(op, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, types.NewModelError(op, ErrEmptyResponse)
	}
	return resp, nil
}

// Chat sends a system and a human message and returns the first choice's text.
func (ce *ChatEngine) Chat(ctx context.Context, op, system, human string, options ...llms.CallOption) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, human))

	resp, err := ce.GenerateContent(ctx, op, messages, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// ChatStream passes streamed text to onChunk as it arrives and returns the full response.
func (ce *ChatEngine) ChatStream(ctx context.Context, op string, messages []llms.MessageContent, onChunk func(string), options ...llms.CallOption) (*llms.ContentResponse, error) {
	stream := llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if onChunk != nil && len(chunk) > 0 {
			onChunk(string(chunk))
		}
		return nil
	})
	return ce.GenerateContent(ctx, op, messages, append(options, stream)...)
}

// FunctionArguments returns the arguments of the first call to the named function,
// looking at tool calls first and then the legacy function call field.
func FunctionArguments(resp *llms.ContentResponse, name string) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall != nil && tc.FunctionCall.Name == name {
				return tc.FunctionCall.Arguments, true
			}
		}
		if choice.FuncCall != nil && choice.FuncCall.Name == name {
			return choice.FuncCall.Arguments, true
		}
	}
	return "", false
}

// FormatSources lists each distinct source once, in order.
func FormatSources(sources []string) string {
	var out []string
	seen := make(map[string]bool)

	for _, s := range sources {
		if s != "" && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}

	if len(out) == 0 {
		return ""
	}

	return fmt.Sprintf("\nSources:\n%s", strings.Join(out, "\n"))
}
