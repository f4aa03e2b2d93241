// Package gemini wraps the Google genai SDK for direct-context answering,
// where whole resource contents ride in the prompt instead of retrieved
// chunks.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// generator is the subset of the genai models API the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates completions against the Gemini API.
type Client struct {
	models generator
}

// New creates a Client authenticated with the given API key.
func New(ctx context.Context, apiKey string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}
	return &Client{models: c.Models}, nil
}

// NewWithGenerator constructs a Client over a pre-built generator. Used by tests.
func NewWithGenerator(g generator) *Client {
	return &Client{models: g}
}

// Generate runs a completion. A non-empty contextBlob is prepended to the
// prompt as grounding material.
func (c *Client) Generate(ctx context.Context, model, systemPrompt, prompt, contextBlob string, temperature float32) (string, error) {
	if model == "" {
		model = DefaultModel
	}

	text := prompt
	if contextBlob != "" {
		text = fmt.Sprintf("Context:\n%s\n\n---\n\n%s", contextBlob, prompt)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, model, []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(text)},
		},
	}, config)
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: generate: empty response")
	}
	return resp.Text(), nil
}
