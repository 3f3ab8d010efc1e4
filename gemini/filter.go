// Package gemini asks a generative model to pick comments matching a keyword.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// MaxComments caps how many comments are embedded in one prompt.
const MaxComments = 500

var (
	ErrUpstream      = errors.New("gemini: upstream error")
	ErrInvalidInput  = errors.New("gemini: keyword and comments are required")
	ErrNotConfigured = errors.New("gemini: api key not configured")
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client adapts the genai SDK to Generator.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: c, model: model}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

type Filter struct {
	gen Generator
}

func NewFilter(gen Generator) *Filter {
	return &Filter{gen: gen}
}

// Search returns the model's JSON array of comments whose text resembles
// keyword, with any markdown code fences removed.
func (f *Filter) Search(ctx context.Context, keyword string, comments []any) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || len(comments) == 0 {
		return "", ErrInvalidInput
	}
	if f.gen == nil {
		return "", ErrNotConfigured
	}
	if len(comments) > MaxComments {
		comments = comments[:MaxComments]
	}

	encoded, err := json.MarshalIndent(comments, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encode comments: %w", ErrInvalidInput, err)
	}

	out, err := f.gen.Generate(ctx, buildPrompt(keyword, string(encoded)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return stripFences(out), nil
}

func buildPrompt(keyword, comments string) string {
	var b strings.Builder
	b.WriteString("From the comment array below, extract only the objects whose text property contains words similar to ")
	fmt.Fprintf(&b, "%q.\n", keyword)
	b.WriteString("Rules:\n")
	b.WriteString("1. Output the extracted objects as a JSON array string only, with no explanation and no markdown such as ```json.\n")
	b.WriteString("2. Only include objects whose text property contains the keyword or a close variant of it.\n")
	b.WriteString("Comment array:\n")
	b.WriteString(comments)
	return b.String()
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
