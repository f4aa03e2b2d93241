package library

import (
	"context"
	"encoding/json"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
	"github.com/LexbaseAI/lexbase-mvp/pkg/repo"
)

// CypherResult is the minimal interface needed from a neo4j result.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// CypherSession is the minimal interface needed from a neo4j session.
type CypherSession interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions against the record store. Satisfied by
// driverOpener in production and by mocks in tests.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

type driverOpener struct {
	driver neo4j.DriverWithContext
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (d driverOpener) OpenSession(ctx context.Context) CypherSession {
	return driverSession{sess: d.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

func (s driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

// newResourceRepo creates a Neo4j-backed repository for Resource nodes.
func newResourceRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[domain.Resource, string] {
	return repo.NewNeo4jRepo[domain.Resource, string](
		driver,
		"Resource",
		resourceToMap,
		resourceFromRecord,
	)
}

func resourceToMap(r domain.Resource) map[string]any {
	m := map[string]any{
		"id":          r.ID,
		"title":       r.Title,
		"url":         r.URL,
		"content":     r.Content,
		"description": r.Description,
		"category_id": r.CategoryID,
		"source_type": r.SourceType,
		"is_public":   r.IsPublic,
		"file_path":   r.FilePath,
		"created_at":  r.CreatedAt,
		"updated_at":  r.UpdatedAt,
	}
	for k, v := range r.Metadata {
		m["meta_"+k] = v
	}
	return m
}

func resourceFromRecord(rec *neo4j.Record) (domain.Resource, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.Resource{}, err
	}
	return resourceFromProps(node.Props), nil
}

func resourceFromProps(props map[string]any) domain.Resource {
	r := domain.Resource{
		ID:          strProp(props, "id"),
		Title:       strProp(props, "title"),
		URL:         strProp(props, "url"),
		Content:     strProp(props, "content"),
		Description: strProp(props, "description"),
		CategoryID:  strProp(props, "category_id"),
		SourceType:  strProp(props, "source_type"),
		IsPublic:    boolProp(props, "is_public"),
		FilePath:    strProp(props, "file_path"),
		CreatedAt:   timeProp(props, "created_at"),
		UpdatedAt:   timeProp(props, "updated_at"),
	}
	for k, v := range props {
		if len(k) > 5 && k[:5] == "meta_" {
			if s, ok := v.(string); ok {
				if r.Metadata == nil {
					r.Metadata = make(map[string]string)
				}
				r.Metadata[k[5:]] = s
			}
		}
	}
	return r
}

func sessionFromProps(props map[string]any) domain.ChatSession {
	return domain.ChatSession{
		ID:        strProp(props, "id"),
		Title:     strProp(props, "title"),
		CreatedAt: timeProp(props, "created_at"),
		UpdatedAt: timeProp(props, "updated_at"),
	}
}

func messageFromProps(props map[string]any) domain.ChatMessage {
	m := domain.ChatMessage{
		ID:        strProp(props, "id"),
		SessionID: strProp(props, "session_id"),
		Role:      strProp(props, "role"),
		Content:   strProp(props, "content"),
		CreatedAt: timeProp(props, "created_at"),
	}
	if raw := strProp(props, "sources"); raw != "" {
		// Attributions are advisory. A corrupt blob loses citations,
		// not the message.
		_ = json.Unmarshal([]byte(raw), &m.Sources)
	}
	return m
}

func encodeSources(sources []domain.SourceAttribution) string {
	if len(sources) == 0 {
		return ""
	}
	b, err := json.Marshal(sources)
	if err != nil {
		return ""
	}
	return string(b)
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolProp(props map[string]any, key string) bool {
	if v, ok := props[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func timeProp(props map[string]any, key string) time.Time {
	if v, ok := props[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}
