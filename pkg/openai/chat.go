package openai

import (
	"context"
	"fmt"
)

// DefaultChatModel is the completion model used when none is configured.
const DefaultChatModel = "gpt-4o-mini"

// Message is a single chat completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete runs a chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, model string, messages []Message, temperature float32) (string, error) {
	if model == "" {
		model = DefaultChatModel
	}

	var resp chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
