// Package domain defines core domain types, constants, and validation for the
// Lexbase engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// Resource is a document/page/video reference in the library.
type Resource struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Content     string            `json:"content,omitempty"`
	Description string            `json:"description,omitempty"`
	CategoryID  string            `json:"category_id,omitempty"`
	SourceType  string            `json:"source_type,omitempty"`
	IsPublic    bool              `json:"is_public"`
	FilePath    string            `json:"file_path,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Text returns the embeddable text of a resource: content when present,
// otherwise the description.
func (r Resource) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Description
}

// EmbeddingRecord is one chunk of a resource with its vector, as stored in
// the embedding store. Records are disposable derivatives of a Resource.
type EmbeddingRecord struct {
	ResourceID  string    `json:"resource_id"`
	ChunkIndex  int       `json:"chunk_index"`
	ChunkText   string    `json:"chunk_text"`
	Embedding   []float32 `json:"embedding"`
	TokenCount  int       `json:"token_count"`
	SourceTitle string    `json:"source_title"`
	SourceURL   string    `json:"source_url"`
}

// SourceChunk is a retrieved chunk with its provenance, the unit the
// retriever hands to the answer synthesizer.
type SourceChunk struct {
	ID         string  `json:"id"`
	ResourceID string  `json:"resource_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Similarity float32 `json:"similarity"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession is a durable conversation container.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceAttribution is the compact citation stored on assistant messages.
type SourceAttribution struct {
	ResourceID string  `json:"resource_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title,omitempty"`
	Similarity float32 `json:"similarity"`
}

// ChatMessage is a single message in a session. Messages are append-only.
type ChatMessage struct {
	ID        string              `json:"id"`
	SessionID string              `json:"session_id"`
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	Sources   []SourceAttribution `json:"sources,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// Chat modes.
type ChatMode string

const (
	ModeChat      ChatMode = "chat"
	ModeQA        ChatMode = "qa"
	ModeSummarize ChatMode = "summarize"
)

// Answer providers.
type Provider string

const (
	// ProviderVector answers via similarity retrieval over the embedding
	// store, grounding the completion on cited chunks.
	ProviderVector Provider = "vector"
	// ProviderGemini answers from full resource contents in a single
	// context window, with no chunk-level retrieval.
	ProviderGemini Provider = "gemini"
)

// Summary styles.
type SummaryStyle string

const (
	StyleBrief    SummaryStyle = "brief"
	StyleDetailed SummaryStyle = "detailed"
	StyleBullet   SummaryStyle = "bullet"
)
