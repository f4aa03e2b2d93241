// Package library persists resources, chat sessions and chat messages in the
// record store. Resources are the durable source of truth the embedding store
// is derived from.
package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
	"github.com/LexbaseAI/lexbase-mvp/pkg/repo"
)

// DefaultSessionLimit caps the session listing.
const DefaultSessionLimit = 50

// DefaultHistoryLimit caps how many prior messages feed a completion.
const DefaultHistoryLimit = 20

// Library provides resource and chat persistence on top of the generic
// Neo4j repository.
type Library struct {
	opener    SessionOpener
	resources repo.Repository[domain.Resource, string]
	now       func() time.Time
	newID     func() string
}

// New creates a Library backed by the given Neo4j driver.
func New(driver neo4j.DriverWithContext) *Library {
	return &Library{
		opener:    driverOpener{driver: driver},
		resources: newResourceRepo(driver),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewWithDeps constructs a Library over pre-built dependencies. Used by tests.
func NewWithDeps(opener SessionOpener, resources repo.Repository[domain.Resource, string]) *Library {
	return &Library{
		opener:    opener,
		resources: resources,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// --- Resources ---

// Resource fetches a single resource by ID.
func (l *Library) Resource(ctx context.Context, id string) (domain.Resource, error) {
	r, err := l.resources.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Resource{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Resource{}, fmt.Errorf("library: get resource %s: %w", id, err)
	}
	return r, nil
}

// Resources fetches resources by ID in one round trip. Missing IDs are
// silently skipped.
func (l *Library) Resources(ctx context.Context, ids []string) ([]domain.Resource, error) {
	rs, err := l.resources.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("library: get resources: %w", err)
	}
	return rs, nil
}

// ResourcesByCategory lists all resources in a category.
func (l *Library) ResourcesByCategory(ctx context.Context, categoryID string) ([]domain.Resource, error) {
	rs, err := l.resources.List(ctx, repo.ListOpts{
		Filter: map[string]any{"category_id": categoryID},
		Limit:  1000,
	})
	if err != nil {
		return nil, fmt.Errorf("library: list category %s: %w", categoryID, err)
	}
	return rs, nil
}

// ListResources pages through all resources.
func (l *Library) ListResources(ctx context.Context, offset, limit int) ([]domain.Resource, error) {
	rs, err := l.resources.List(ctx, repo.ListOpts{
		Offset:  offset,
		Limit:   limit,
		OrderBy: "updated_at",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("library: list resources: %w", err)
	}
	return rs, nil
}

// SaveResource validates and creates a resource. A missing ID is assigned.
func (l *Library) SaveResource(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	if err := domain.ValidateResource(r); err != nil {
		return domain.Resource{}, err
	}
	if r.ID == "" {
		r.ID = l.newID()
	}
	now := l.now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	saved, err := l.resources.Create(ctx, r)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("library: create resource: %w", err)
	}
	return saved, nil
}

// UpdateResource validates and updates an existing resource.
func (l *Library) UpdateResource(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	if err := domain.ValidateResource(r); err != nil {
		return domain.Resource{}, err
	}
	r.UpdatedAt = l.now().UTC()

	saved, err := l.resources.Update(ctx, r)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Resource{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Resource{}, fmt.Errorf("library: update resource %s: %w", r.ID, err)
	}
	return saved, nil
}

// DeleteResource removes a resource node. Embedding cleanup is the embed
// manager's job, not the library's.
func (l *Library) DeleteResource(ctx context.Context, id string) error {
	if err := l.resources.Delete(ctx, id); err != nil {
		return fmt.Errorf("library: delete resource %s: %w", id, err)
	}
	return nil
}

// --- Chat sessions ---

// EnsureSession returns the session with the given ID, creating it if absent.
// An empty ID creates a fresh session. The session's updated_at is touched
// either way.
func (l *Library) EnsureSession(ctx context.Context, id, title string) (domain.ChatSession, error) {
	if id == "" {
		id = l.newID()
	}
	sess := l.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (s:ChatSession {id: $id})
	           ON CREATE SET s.created_at = $now, s.title = $title
	           SET s.updated_at = $now
	           RETURN s`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"id": id, "title": title, "now": l.now().UTC(),
	})
	if err != nil {
		return domain.ChatSession{}, fmt.Errorf("library: ensure session %s: %w", id, err)
	}
	if !result.Next(ctx) {
		return domain.ChatSession{}, fmt.Errorf("library: ensure session %s: no row", id)
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "s")
	if err != nil {
		return domain.ChatSession{}, fmt.Errorf("library: ensure session %s: %w", id, err)
	}
	return sessionFromProps(node.Props), nil
}

// Sessions lists sessions, most recently active first.
func (l *Library) Sessions(ctx context.Context, limit int) ([]domain.ChatSession, error) {
	if limit <= 0 || limit > DefaultSessionLimit {
		limit = DefaultSessionLimit
	}
	sess := l.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (s:ChatSession) RETURN s ORDER BY s.updated_at DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("library: list sessions: %w", err)
	}

	var sessions []domain.ChatSession
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "s")
		if err != nil {
			return nil, fmt.Errorf("library: list sessions: %w", err)
		}
		sessions = append(sessions, sessionFromProps(node.Props))
	}
	return sessions, nil
}

// DeleteSession removes a session and all its messages.
func (l *Library) DeleteSession(ctx context.Context, id string) error {
	sess := l.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (s:ChatSession {id: $id})
	           OPTIONAL MATCH (s)-[:HAS_MESSAGE]->(m:ChatMessage)
	           DETACH DELETE s, m`
	if _, err := sess.Run(ctx, cypher, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("library: delete session %s: %w", id, err)
	}
	return nil
}

// --- Chat messages ---

// AppendMessage appends a message to a session and touches the session's
// updated_at. The session must exist.
func (l *Library) AppendMessage(ctx context.Context, sessionID, role, content string, sources []domain.SourceAttribution) (domain.ChatMessage, error) {
	sess := l.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	now := l.now().UTC()
	cypher := `MATCH (s:ChatSession {id: $sid})
	           CREATE (m:ChatMessage {id: $id, session_id: $sid, role: $role, content: $content, sources: $sources, created_at: $now})
	           CREATE (s)-[:HAS_MESSAGE]->(m)
	           SET s.updated_at = $now
	           RETURN m`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"sid":     sessionID,
		"id":      l.newID(),
		"role":    role,
		"content": content,
		"sources": encodeSources(sources),
		"now":     now,
	})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("library: append message to %s: %w", sessionID, err)
	}
	if !result.Next(ctx) {
		return domain.ChatMessage{}, domain.ErrNotFound
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "m")
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("library: append message to %s: %w", sessionID, err)
	}
	return messageFromProps(node.Props), nil
}

// History returns the last limit messages of a session in chronological
// order.
func (l *Library) History(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	sess := l.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (s:ChatSession {id: $sid})-[:HAS_MESSAGE]->(m:ChatMessage)
	           RETURN m ORDER BY m.created_at DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"sid": sessionID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("library: history %s: %w", sessionID, err)
	}

	var messages []domain.ChatMessage
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "m")
		if err != nil {
			return nil, fmt.Errorf("library: history %s: %w", sessionID, err)
		}
		messages = append(messages, messageFromProps(node.Props))
	}

	// The query walks newest-first to apply the limit. Flip back to
	// chronological order for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
