// Package llmtest provides scripted langchaingo models and embedders for tests.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Call records one GenerateContent invocation.
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// Prompt returns the text of every message part joined by newlines.
func (c Call) Prompt() string {
	return PromptText(c.Messages)
}

// Model is an llms.Model whose replies come from Respond.
type Model struct {
	Respond func(call Call) (*llms.ContentResponse, error)

	mu    sync.Mutex
	calls []Call
}

var _ llms.Model = (*Model)(nil)

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	call := Call{Messages: messages, Options: opts}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.Respond == nil {
		return nil, errors.New("no response scripted")
	}
	resp, err := m.Respond(call)
	if err != nil {
		return nil, err
	}
	if opts.StreamingFunc != nil && resp != nil && len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		if err := opts.StreamingFunc(ctx, []byte(resp.Choices[0].Content)); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Text builds a plain text reply.
func Text(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

// ToolCall builds a reply that calls the named function with args.
func ToolCall(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:   id,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}},
	}}}
}

func PromptText(messages []llms.MessageContent) string {
	var parts []string
	for _, m := range messages {
		for _, p := range m.Parts {
			switch part := p.(type) {
			case llms.TextContent:
				parts = append(parts, part.Text)
			case llms.ToolCallResponse:
				parts = append(parts, part.Content)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Embedder maps text to a deterministic bag-of-words vector, so texts sharing
// words are close.
type Embedder struct {
	Dim int

	mu    sync.Mutex
	calls int
}

func (e *Embedder) dim() int {
	if e.Dim <= 0 {
		return 64
	}
	return e.Dim
}

func (e *Embedder) vector(text string) []float32 {
	v := make([]float32, e.dim())
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;!?\"'()")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(len(v))]++
	}
	// keep the vector non-zero so cosine similarity is defined
	v[len(v)-1] += 0.01
	return v
}

func (e *Embedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
