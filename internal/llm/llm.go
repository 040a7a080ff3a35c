package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrorPrefix marks AI transport failures that are surfaced as response text.
const ErrorPrefix = "Error analyzing text: "

// Client is a generative-text provider.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Generate returns ErrNotImplemented.
func (PlaceholderClient) Generate(ctx context.Context, prompt string) (string, error) {
	_ = ctx
	_ = prompt
	return "", ErrNotImplemented
}

// Analyzer sends contract text to a Client. It never returns an error: any
// provider failure comes back as text starting with ErrorPrefix, which the
// response parser then treats as an unparsable payload.
type Analyzer struct {
	Client Client
}

// Analyze sends instruction and text joined by a blank line. No retries.
func (a Analyzer) Analyze(ctx context.Context, text, instruction string) string {
	if a.Client == nil {
		return ErrorPrefix + ErrNotImplemented.Error()
	}
	out, err := a.Client.Generate(ctx, ComposePrompt(instruction, text))
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return out
}

// IsErrorText reports whether raw came from a failed provider call.
func IsErrorText(raw string) bool {
	return strings.HasPrefix(raw, ErrorPrefix)
}
