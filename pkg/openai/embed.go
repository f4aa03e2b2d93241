package openai

import (
	"context"
	"fmt"
)

// DefaultEmbedModel is the embedding model used when none is configured.
const DefaultEmbedModel = "text-embedding-3-small"

// EmbedDims is the vector width of DefaultEmbedModel.
const EmbedDims = 1536

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order. The API may
// return data out of order, so results are placed by index.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if model == "" {
		model = DefaultEmbedModel
	}

	var resp embedResponse
	if err := c.post(ctx, "/embeddings", embedRequest{Model: model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: embed returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai: embed index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
