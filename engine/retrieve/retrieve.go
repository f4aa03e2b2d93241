// Package retrieve answers "which chunks ground this query" via similarity
// search over the embedding store, with a deterministic fallback when scoped
// resources have no embeddings yet.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LexbaseAI/lexbase-mvp/engine/chunk"
	"github.com/LexbaseAI/lexbase-mvp/engine/clean"
	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
)

// Retrieval defaults.
const (
	DefaultLimit     = 10
	DefaultThreshold = 0.5
)

// Fallback tuning: smaller chunks keep the prompt budget in check when whole
// resources stand in for real search hits.
const (
	FallbackChunkSize    = 600
	FallbackChunkOverlap = 100
	FallbackMaxChunks    = 3
	FallbackSimilarity   = 0.5
)

// Embedder embeds the query text with the same model used at ingest time.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Searcher is the embedding store's similarity search entry point.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, limit int, threshold float32, resourceIDs []string) ([]domain.SourceChunk, error)
}

// ResourceLoader fetches resources for provenance lookups and fallback text.
type ResourceLoader interface {
	Resources(ctx context.Context, ids []string) ([]domain.Resource, error)
}

// Options controls one retrieval.
type Options struct {
	ResourceIDs []string
	Limit       int
	Threshold   float32
}

// Retriever runs similarity retrieval.
type Retriever struct {
	embedder  Embedder
	searcher  Searcher
	resources ResourceLoader
	model     string
	logger    *slog.Logger
}

// New creates a Retriever. An empty model uses the embedder's default.
func New(embedder Embedder, searcher Searcher, resources ResourceLoader, model string, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:  embedder,
		searcher:  searcher,
		resources: resources,
		model:     model,
		logger:    logger,
	}
}

// Retrieve returns chunks grounding the query, best match first. When the
// search comes back empty and the caller explicitly scoped the query to
// resources, the first chunks of those resources stand in as grounding
// material.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]domain.SourceChunk, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	vectors, err := r.embedder.Embed(ctx, r.model, []string{query})
	if err != nil {
		return nil, domain.NewBackendError("embedding", "embed query", err)
	}
	if len(vectors) != 1 {
		return nil, domain.NewBackendError("embedding", "embed query",
			fmt.Errorf("got %d vectors for one input", len(vectors)))
	}

	chunks, err := r.searcher.Search(ctx, vectors[0], opts.Limit, opts.Threshold, opts.ResourceIDs)
	if err != nil {
		return nil, domain.NewBackendError("vector store", "search", err)
	}

	if len(chunks) == 0 {
		if len(opts.ResourceIDs) == 0 {
			// Nothing matched and nothing was scoped. There is nothing
			// to fall back to.
			return nil, nil
		}
		return r.fallback(ctx, opts.ResourceIDs)
	}

	if err := r.attachProvenance(ctx, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// attachProvenance fills in title/url for every chunk with one batched
// resource lookup.
func (r *Retriever) attachProvenance(ctx context.Context, chunks []domain.SourceChunk) error {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range chunks {
		if !seen[c.ResourceID] {
			seen[c.ResourceID] = true
			ids = append(ids, c.ResourceID)
		}
	}

	resources, err := r.resources.Resources(ctx, ids)
	if err != nil {
		return domain.NewBackendError("record store", "lookup resources", err)
	}
	byID := make(map[string]domain.Resource, len(resources))
	for _, res := range resources {
		byID[res.ID] = res
	}

	for i := range chunks {
		if res, ok := byID[chunks[i].ResourceID]; ok {
			chunks[i].Title = res.Title
			chunks[i].URL = res.URL
		}
	}
	return nil
}

// fallback extracts the leading chunks of each scoped resource and tags them
// with synthetic IDs so callers can tell them apart from real embeddings.
func (r *Retriever) fallback(ctx context.Context, resourceIDs []string) ([]domain.SourceChunk, error) {
	resources, err := r.resources.Resources(ctx, resourceIDs)
	if err != nil {
		return nil, domain.NewBackendError("record store", "fallback load", err)
	}

	var out []domain.SourceChunk
	for _, res := range resources {
		text := clean.Clean(res.Text(), clean.DefaultOptions())
		if text == "" {
			continue
		}
		parts := chunk.Chunk(text, FallbackChunkSize, FallbackChunkOverlap)
		if len(parts) > FallbackMaxChunks {
			parts = parts[:FallbackMaxChunks]
		}
		for i, p := range parts {
			out = append(out, domain.SourceChunk{
				ID:         fmt.Sprintf("fallback:%s:%d", res.ID, i),
				ResourceID: res.ID,
				ChunkIndex: i,
				Text:       p,
				Similarity: FallbackSimilarity,
				Title:      res.Title,
				URL:        res.URL,
			})
		}
	}
	r.logger.Info("retrieval fallback used", "resources", len(resources), "chunks", len(out))
	return out, nil
}
