package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"contract-analyzer/internal/llm"
)

// DefaultModel is used when LLM_MODEL is unset.
const DefaultModel = "gemini-2.5-flash"

// generator is satisfied by *genai.Models.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Client with the Google Gen AI SDK.
type Client struct {
	models generator
	model  string
}

// NewClient builds a Gemini API client. Configuration is passed in so the
// process holds no package-level client state.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required for gemini")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{models: gc.Models, model: model}, nil
}

// Generate sends prompt as a single text turn and returns the concatenated text parts.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate model=%s: %w", c.model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini generate model=%s: no candidates", c.model)
	}
	return resp.Text(), nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

var _ llm.Client = (*Client)(nil)
