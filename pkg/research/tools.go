// Package research runs a tool-calling chat loop that looks terms up, finds
// reference URLs and extracts their content.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools/duckduckgo"
	"github.com/tmc/langchaingo/tools/wikipedia"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
)

// Tool is the closed set of functions the assistant may call.
type Tool int

const (
	GetTerm Tool = iota
	GetURLs
	ExtractURLs
)

var toolNames = map[Tool]string{
	GetTerm:     "get_term",
	GetURLs:     "get_urls",
	ExtractURLs: "extract_urls",
}

func (t Tool) String() string {
	if name, ok := toolNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tool(%d)", int(t))
}

// ParseTool maps a function name from the model to a Tool.
func ParseTool(name string) (Tool, error) {
	for t, n := range toolNames {
		if n == name {
			return t, nil
		}
	}
	return 0, types.NewSchemaError(fmt.Sprintf("unknown tool %q", name), nil)
}

type TermInput struct {
	Query string `json:"query"`
}

type URLsInput struct {
	TermName string `json:"term_name"`
}

type ExtractInput struct {
	URLs []string `json:"urls"`
}

// UnmarshalJSON accepts urls as an array or as a string holding a JSON array.
func (in *ExtractInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		URLs json.RawMessage `json:"urls"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.URLs) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw.URLs, &in.URLs); err == nil {
		return nil
	}

	var encoded string
	if err := json.Unmarshal(raw.URLs, &encoded); err != nil {
		return errors.New("urls must be an array of strings")
	}
	if err := json.Unmarshal([]byte(encoded), &in.URLs); err != nil {
		return fmt.Errorf("urls string is not a JSON array: %w", err)
	}
	return nil
}

// Call is a parsed tool invocation. Only the input matching Tool is set.
type Call struct {
	ID      string
	Tool    Tool
	Term    TermInput
	URLs    URLsInput
	Extract ExtractInput
}

// ParseCall decodes and checks the arguments for the named tool.
func ParseCall(id, name, arguments string) (Call, error) {
	tool, err := ParseTool(name)
	if err != nil {
		return Call{}, err
	}

	call := Call{ID: id, Tool: tool}
	var target any
	switch tool {
	case GetTerm:
		target = &call.Term
	case GetURLs:
		target = &call.URLs
	case ExtractURLs:
		target = &call.Extract
	}
	if err := json.Unmarshal([]byte(arguments), target); err != nil {
		return Call{}, types.NewSchemaError(fmt.Sprintf("invalid %s arguments", tool), err)
	}

	switch tool {
	case GetTerm:
		if strings.TrimSpace(call.Term.Query) == "" {
			return Call{}, types.NewSchemaError("get_term requires query", nil)
		}
	case GetURLs:
		if strings.TrimSpace(call.URLs.TermName) == "" {
			return Call{}, types.NewSchemaError("get_urls requires term_name", nil)
		}
	case ExtractURLs:
		if len(call.Extract.URLs) == 0 {
			return Call{}, types.NewSchemaError("extract_urls requires urls", nil)
		}
	}
	return call, nil
}

// Definitions are the function definitions sent to the model.
func Definitions() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        GetTerm.String(),
				Description: "Given query returns its term user want to know",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The query to research. Example: Research about the XZ backdoor",
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        GetURLs.String(),
				Description: "Find websites for the given term",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"term_name": map[string]any{
							"type":        "string",
							"description": "The term (i.e: XZ backdoor) for research",
						},
					},
					"required": []string{"term_name"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ExtractURLs.String(),
				Description: "Extracts web content from URLs",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"urls": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "URLs to extract",
						},
					},
					"required": []string{"urls"},
				},
			},
		},
	}
}

// Searcher is satisfied by the langchaingo wikipedia and duckduckgo tools.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

// PageExtractor loads the text of web pages.
type PageExtractor interface {
	Extract(ctx context.Context, urls []string) ([]models.RawDocument, error)
}

// Toolbox executes tool calls.
type Toolbox struct {
	Wikipedia Searcher
	Search    Searcher
	Pages     PageExtractor
}

func NewToolbox(userAgent string, searchLimit int, pages PageExtractor) (*Toolbox, error) {
	if searchLimit <= 0 {
		searchLimit = 3
	}
	ddg, err := duckduckgo.New(searchLimit, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}
	return &Toolbox{
		Wikipedia: wikipedia.New(userAgent),
		Search:    ddg,
		Pages:     pages,
	}, nil
}

// Dispatch runs a parsed call and returns the text handed back to the model.
func (tb *Toolbox) Dispatch(ctx context.Context, call Call) (string, error) {
	switch call.Tool {
	case GetTerm:
		return tb.Wikipedia.Call(ctx, "Term name of "+call.Term.Query)
	case GetURLs:
		return tb.Search.Call(ctx, "Reference 3 (Three) URLs of "+call.URLs.TermName)
	case ExtractURLs:
		docs, err := tb.Pages.Extract(ctx, call.Extract.URLs)
		if err != nil {
			return "", err
		}
		if len(docs) == 0 {
			return "", fmt.Errorf("none of the %d URLs could be loaded", len(call.Extract.URLs))
		}
		contents := make([]string, len(docs))
		for i, d := range docs {
			contents[i] = d.Content
		}
		return strings.Join(contents, "\n\n"), nil
	default:
		return "", types.NewSchemaError("unknown tool "+call.Tool.String(), nil)
	}
}
