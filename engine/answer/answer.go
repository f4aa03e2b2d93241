// Package answer turns a validated chat request into a completion, grounded
// either on retrieved chunks or on whole resource contents, and records the
// exchange in the session transcript.
package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
	"github.com/LexbaseAI/lexbase-mvp/engine/retrieve"
	"github.com/LexbaseAI/lexbase-mvp/pkg/gemini"
	"github.com/LexbaseAI/lexbase-mvp/pkg/openai"
)

// DefaultTemperature applies when the request leaves temperature unset.
const DefaultTemperature = 0.3

// SnippetMax caps caller-facing source snippets.
const SnippetMax = 200

// summarizePlaceholder stands in for the user message when summarize mode is
// invoked without one.
const summarizePlaceholder = "[summarize request]"

// Retriever finds grounding chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieve.Options) ([]domain.SourceChunk, error)
}

// ResourceLoader fetches resources for summarize and direct-context answers.
type ResourceLoader interface {
	Resources(ctx context.Context, ids []string) ([]domain.Resource, error)
}

// SessionStore records the conversation transcript.
type SessionStore interface {
	EnsureSession(ctx context.Context, id, title string) (domain.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID, role, content string, sources []domain.SourceAttribution) (domain.ChatMessage, error)
	History(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
}

// ChatCompleter is the retrieval-augmented completion backend.
type ChatCompleter interface {
	Complete(ctx context.Context, model string, messages []openai.Message, temperature float32) (string, error)
}

// ContextGenerator is the direct-context completion backend.
type ContextGenerator interface {
	Generate(ctx context.Context, model, systemPrompt, prompt, contextBlob string, temperature float32) (string, error)
}

// Source is one caller-facing citation.
type Source struct {
	ResourceID string  `json:"resource_id"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
	Snippet    string  `json:"snippet"`
	Similarity float32 `json:"similarity"`
}

// Response is the synthesized answer with its provenance.
type Response struct {
	Text      string          `json:"response"`
	Sources   []Source        `json:"sources"`
	Mode      domain.ChatMode `json:"mode"`
	Provider  domain.Provider `json:"provider"`
	Model     string          `json:"model"`
	SessionID string          `json:"session_id,omitempty"`
}

// Synthesizer dispatches over (mode, provider) and owns the transcript side
// effects.
type Synthesizer struct {
	retriever Retriever
	resources ResourceLoader
	sessions  SessionStore
	chat      ChatCompleter
	direct    ContextGenerator
	logger    *slog.Logger
}

// New creates a Synthesizer. sessions may be nil for stateless use.
func New(retriever Retriever, resources ResourceLoader, sessions SessionStore, chat ChatCompleter, direct ContextGenerator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		retriever: retriever,
		resources: resources,
		sessions:  sessions,
		chat:      chat,
		direct:    direct,
		logger:    logger,
	}
}

// Answer validates the request, produces a completion and appends the
// exchange to the session transcript. Transcript writes are best-effort
// sequential appends, except the assistant write whose failure is surfaced.
func (s *Synthesizer) Answer(ctx context.Context, req domain.ChatRequest) (*Response, error) {
	if err := domain.ValidateChatRequest(&req); err != nil {
		return nil, err
	}
	temperature := float32(DefaultTemperature)
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	model := req.Model
	if model == "" {
		switch req.Provider {
		case domain.ProviderGemini:
			model = gemini.DefaultModel
		default:
			model = openai.DefaultChatModel
		}
	}

	sessionID, history := s.beginTranscript(ctx, req)

	var (
		text   string
		chunks []domain.SourceChunk
		err    error
	)
	switch req.Provider {
	case domain.ProviderVector:
		text, chunks, err = s.answerVector(ctx, req, model, temperature, history)
	case domain.ProviderGemini:
		text, chunks, err = s.answerDirect(ctx, req, model, temperature)
	}
	if err != nil {
		return nil, err
	}

	sources := make([]Source, len(chunks))
	attribs := make([]domain.SourceAttribution, len(chunks))
	for i, c := range chunks {
		sources[i] = Source{
			ResourceID: c.ResourceID,
			Title:      c.Title,
			URL:        c.URL,
			Snippet:    snippet(c.Text, SnippetMax),
			Similarity: c.Similarity,
		}
		attribs[i] = domain.SourceAttribution{
			ResourceID: c.ResourceID,
			ChunkIndex: c.ChunkIndex,
			Title:      c.Title,
			Similarity: c.Similarity,
		}
	}

	if sessionID != "" {
		if _, aerr := s.sessions.AppendMessage(ctx, sessionID, domain.RoleAssistant, text, attribs); aerr != nil {
			// The user message stays; transcripts are append-only logs,
			// not invariant-bearing state.
			return nil, fmt.Errorf("answer: persist assistant message: %w", aerr)
		}
	}

	return &Response{
		Text:      text,
		Sources:   sources,
		Mode:      req.Mode,
		Provider:  req.Provider,
		Model:     model,
		SessionID: sessionID,
	}, nil
}

// beginTranscript ensures the session, captures prior history for chat mode
// and appends the user message. All of it is best-effort; a dead session
// store degrades to a stateless answer.
func (s *Synthesizer) beginTranscript(ctx context.Context, req domain.ChatRequest) (string, []domain.ChatMessage) {
	if s.sessions == nil {
		return "", nil
	}

	sess, err := s.sessions.EnsureSession(ctx, req.SessionID, snippet(req.Message, 80))
	if err != nil {
		s.logger.Warn("session init failed, answering statelessly", "error", err)
		return "", nil
	}

	var history []domain.ChatMessage
	if req.Mode == domain.ModeChat {
		history, err = s.sessions.History(ctx, sess.ID, 0)
		if err != nil {
			s.logger.Warn("history fetch failed", "session_id", sess.ID, "error", err)
			history = nil
		}
	}

	content := req.Message
	if content == "" {
		content = summarizePlaceholder
	}
	if _, err := s.sessions.AppendMessage(ctx, sess.ID, domain.RoleUser, content, nil); err != nil {
		s.logger.Warn("user message write failed", "session_id", sess.ID, "error", err)
	}
	return sess.ID, history
}

// answerVector answers via retrieval over the embedding store.
func (s *Synthesizer) answerVector(ctx context.Context, req domain.ChatRequest, model string, temperature float32, history []domain.ChatMessage) (string, []domain.SourceChunk, error) {
	if req.Mode == domain.ModeSummarize {
		resources, err := s.loadResources(ctx, req.ResourceIDs)
		if err != nil {
			return "", nil, err
		}
		prompt := buildSummarizePrompt(resources, req.Style)
		text, err := s.chat.Complete(ctx, model, []openai.Message{
			{Role: "system", Content: directSystemPrompt},
			{Role: "user", Content: prompt},
		}, temperature)
		if err != nil {
			return "", nil, domain.NewBackendError("openai", "summarize completion", err)
		}
		return text, pseudoChunks(resources), nil
	}

	chunks, err := s.retriever.Retrieve(ctx, req.Message, retrieve.Options{ResourceIDs: req.ResourceIDs})
	if err != nil {
		return "", nil, err
	}

	messages := []openai.Message{{Role: "system", Content: ragSystemPrompt}}
	for _, m := range history {
		messages = append(messages, openai.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.Message{Role: "user", Content: buildRAGPrompt(req.Message, chunks)})

	text, err := s.chat.Complete(ctx, model, messages, temperature)
	if err != nil {
		return "", nil, domain.NewBackendError("openai", "chat completion", err)
	}
	return text, chunks, nil
}

// answerDirect answers from whole resource contents in one context window.
func (s *Synthesizer) answerDirect(ctx context.Context, req domain.ChatRequest, model string, temperature float32) (string, []domain.SourceChunk, error) {
	var resources []domain.Resource
	if len(req.ResourceIDs) > 0 {
		var err error
		resources, err = s.loadResources(ctx, req.ResourceIDs)
		if err != nil {
			return "", nil, err
		}
	}

	prompt := req.Message
	if req.Mode == domain.ModeSummarize {
		prompt = "Summarize the provided documents. " + styleInstructions[req.Style]
	}

	text, err := s.direct.Generate(ctx, model, directSystemPrompt, prompt, buildContextBlob(resources), temperature)
	if err != nil {
		return "", nil, domain.NewBackendError("gemini", "completion", err)
	}
	return text, pseudoChunks(resources), nil
}

func (s *Synthesizer) loadResources(ctx context.Context, ids []string) ([]domain.Resource, error) {
	resources, err := s.resources.Resources(ctx, ids)
	if err != nil {
		return nil, domain.NewBackendError("record store", "load resources", err)
	}
	if len(resources) == 0 {
		return nil, domain.ErrNotFound
	}
	return resources, nil
}

// pseudoChunks builds whole-resource source records for answers that did not
// go through chunk-level retrieval.
func pseudoChunks(resources []domain.Resource) []domain.SourceChunk {
	chunks := make([]domain.SourceChunk, 0, len(resources))
	for _, r := range resources {
		chunks = append(chunks, domain.SourceChunk{
			ID:         "resource:" + r.ID,
			ResourceID: r.ID,
			Text:       r.Text(),
			Similarity: 1.0,
			Title:      r.Title,
			URL:        r.URL,
		})
	}
	return chunks
}
