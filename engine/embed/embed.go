// Package embed orchestrates the clean -> chunk -> embed -> upsert pipeline
// that turns library resources into searchable embedding records.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/LexbaseAI/lexbase-mvp/engine/chunk"
	"github.com/LexbaseAI/lexbase-mvp/engine/clean"
	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
)

// BatchSize is how many chunk texts ride in one embedding API call.
const BatchSize = 100

// MinContentChars is the shortest text worth embedding, before or after
// cleaning.
const MinContentChars = 50

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Embedder is the batch embedding backend.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Store is the embedding store side the manager writes to.
type Store interface {
	Upsert(ctx context.Context, records []domain.EmbeddingRecord) error
	DeleteByResource(ctx context.Context, resourceID string) error
	TrimBeyond(ctx context.Context, resourceID string, n int) error
	CountByResource(ctx context.Context, resourceID string) (int, error)
	CountAll(ctx context.Context) (int, error)
	EmbeddedResources(ctx context.Context, resourceIDs []string) (map[string]int, error)
}

// ResourceLoader is the library side the manager reads from.
type ResourceLoader interface {
	Resource(ctx context.Context, id string) (domain.Resource, error)
	ResourcesByCategory(ctx context.Context, categoryID string) ([]domain.Resource, error)
}

// Options controls one embed run.
type Options struct {
	Force bool // re-embed even when records already exist
	Clean bool // run the content cleaner before chunking
}

// DefaultOptions returns the defaults for an embed run.
func DefaultOptions() Options {
	return Options{Clean: true}
}

// Outcome is the per-resource result of an embed run.
type Outcome struct {
	ResourceID string               `json:"resource_id"`
	Status     string               `json:"status"`
	Chunks     int                  `json:"chunks,omitempty"`
	Error      string               `json:"error,omitempty"`
	Cleaning   *clean.CleaningStats `json:"cleaning,omitempty"`
}

// Report aggregates outcomes across a batch of resources.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
	Success  int       `json:"success"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

// Manager owns embedding generation and the idempotency rules around it.
type Manager struct {
	resources ResourceLoader
	store     Store
	embedder  Embedder
	model     string
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Manager. An empty model uses the embedder's default.
func New(resources ResourceLoader, store Store, embedder Embedder, model string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		resources: resources,
		store:     store,
		embedder:  embedder,
		model:     model,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// resourceLock serializes embed runs per resource ID so two concurrent calls
// cannot interleave chunk generations.
func (m *Manager) resourceLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// EmbedResources embeds each resource in order. One resource's failure never
// aborts its siblings.
func (m *Manager) EmbedResources(ctx context.Context, ids []string, opts Options) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(ids))}
	for _, id := range ids {
		out := m.embedOne(ctx, id, opts)
		switch out.Status {
		case StatusSuccess:
			report.Success++
		case StatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	m.logger.Info("embed run done",
		"requested", len(ids),
		"success", report.Success,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}

func (m *Manager) embedOne(ctx context.Context, id string, opts Options) Outcome {
	lock := m.resourceLock(id)
	lock.Lock()
	defer lock.Unlock()

	out := Outcome{ResourceID: id}

	// Existence check happens under the lock, so a concurrent non-force
	// call sees the winner's records instead of racing it.
	if !opts.Force {
		count, err := m.store.CountByResource(ctx, id)
		if err != nil {
			out.Status = StatusError
			out.Error = err.Error()
			return out
		}
		if count > 0 {
			out.Status = StatusSkipped
			out.Chunks = count
			return out
		}
	}

	resource, err := m.resources.Resource(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		out.Status = StatusError
		out.Error = domain.ErrNotFound.Error()
		return out
	}
	if err != nil {
		out.Status = StatusError
		out.Error = err.Error()
		return out
	}

	text := resource.Text()
	if len(strings.TrimSpace(text)) < MinContentChars {
		out.Status = StatusError
		out.Error = domain.ErrNoContent.Error()
		return out
	}

	if opts.Clean {
		cleaned := clean.Clean(text, clean.DefaultOptions())
		stats := clean.Stats(text, cleaned)
		out.Cleaning = &stats
		text = cleaned
		if len(text) < MinContentChars {
			out.Status = StatusError
			out.Error = domain.ErrContentTooShort.Error()
			return out
		}
	}

	chunks := chunk.Chunk(text, chunk.DefaultSize, chunk.DefaultOverlap)
	if len(chunks) == 0 {
		out.Status = StatusError
		out.Error = domain.ErrNoChunks.Error()
		return out
	}

	records, err := m.buildRecords(ctx, resource, chunks)
	if err != nil {
		out.Status = StatusError
		out.Error = err.Error()
		return out
	}

	if err := m.store.Upsert(ctx, records); err != nil {
		out.Status = StatusError
		out.Error = err.Error()
		return out
	}

	// Point IDs are deterministic, so a forced re-embed overwrote the old
	// generation in place. Drop any stale tail from a longer previous run.
	if opts.Force {
		if err := m.store.TrimBeyond(ctx, id, len(chunks)); err != nil {
			out.Status = StatusError
			out.Error = err.Error()
			return out
		}
	}

	m.logger.Info("resource embedded", "resource_id", id, "chunks", len(chunks), "force", opts.Force)
	out.Status = StatusSuccess
	out.Chunks = len(chunks)
	return out
}

// buildRecords embeds chunk texts in batches of BatchSize and zips vectors
// back to chunks by index.
func (m *Manager) buildRecords(ctx context.Context, resource domain.Resource, chunks []string) ([]domain.EmbeddingRecord, error) {
	records := make([]domain.EmbeddingRecord, len(chunks))
	for start := 0; start < len(chunks); start += BatchSize {
		end := start + BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		vectors, err := m.embedder.Embed(ctx, m.model, chunks[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed batch [%d:%d]: got %d vectors", start, end, len(vectors))
		}
		for i, vec := range vectors {
			idx := start + i
			records[idx] = domain.EmbeddingRecord{
				ResourceID:  resource.ID,
				ChunkIndex:  idx,
				ChunkText:   chunks[idx],
				Embedding:   vec,
				TokenCount:  chunk.TokenEstimate(chunks[idx]),
				SourceTitle: resource.Title,
				SourceURL:   resource.URL,
			}
		}
	}
	return records, nil
}

// Delete clears all embedding records for a resource. Idempotent.
func (m *Manager) Delete(ctx context.Context, resourceID string) error {
	lock := m.resourceLock(resourceID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.DeleteByResource(ctx, resourceID); err != nil {
		return fmt.Errorf("embed: delete %s: %w", resourceID, err)
	}
	return nil
}
