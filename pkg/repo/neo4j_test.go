package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// --- Mock infrastructure ---

type mockResult struct {
	records []*neo4j.Record
	idx     int
}

func (m *mockResult) Next(ctx context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record {
	return m.records[m.idx-1]
}

type mockRunner struct {
	result  *mockResult
	err     error
	cyphers []string
	params  []map[string]any
}

func (m *mockRunner) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	m.cyphers = append(m.cyphers, cypher)
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockRunner) Close(ctx context.Context) error { return nil }

type entity struct {
	ID   string
	Name string
}

func makeRecord(id, name string) *neo4j.Record {
	return &neo4j.Record{
		Values: []any{map[string]any{"id": id, "name": name}},
		Keys:   []string{"n"},
	}
}

func newTestRepo(r *mockRunner) *Neo4jRepo[entity, string] {
	repo := NewNeo4jRepo[entity, string](
		nil, "Entity",
		func(e entity) map[string]any { return map[string]any{"id": e.ID, "name": e.Name} },
		func(rec *neo4j.Record) (entity, error) {
			if len(rec.Values) == 0 {
				return entity{}, errors.New("empty")
			}
			m, ok := rec.Values[0].(map[string]any)
			if !ok {
				return entity{}, errors.New("bad type")
			}
			return entity{ID: m["id"].(string), Name: m["name"].(string)}, nil
		},
	)
	repo.newSession = func(ctx context.Context) runner { return r }
	return repo
}

// --- Tests ---

func TestNewNeo4jRepoDefaults(t *testing.T) {
	r := NewNeo4jRepo[entity, string](
		nil, "TestNode", nil, nil,
		WithIDKey[entity, string]("uuid"),
	)
	if r.idKey != "uuid" {
		t.Fatalf("expected idKey=uuid, got %s", r.idKey)
	}
	if r.label != "TestNode" {
		t.Fatalf("expected label=TestNode, got %s", r.label)
	}

	d := NewNeo4jRepo[entity, string](nil, "Node", nil, nil)
	if d.idKey != "id" {
		t.Fatalf("expected default idKey=id, got %s", d.idKey)
	}
}

func TestGet_Success(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("1", "Alice")}}}
	repo := newTestRepo(r)

	e, err := repo.Get(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "1" || e.Name != "Alice" {
		t.Fatalf("got %+v", e)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)
	_, err := repo.Get(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_RunError(t *testing.T) {
	r := &mockRunner{err: errors.New("db down")}
	repo := newTestRepo(r)
	_, err := repo.Get(context.Background(), "x")
	if err == nil || err.Error() != "db down" {
		t.Fatalf("expected db down, got %v", err)
	}
}

func TestGetMany_Empty(t *testing.T) {
	r := &mockRunner{}
	repo := newTestRepo(r)
	items, err := repo.GetMany(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if items != nil {
		t.Fatalf("expected nil, got %v", items)
	}
	if len(r.cyphers) != 0 {
		t.Fatal("empty GetMany should not hit the store")
	}
}

func TestGetMany_Batch(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("1", "A"), makeRecord("2", "B")}}}
	repo := newTestRepo(r)

	items, err := repo.GetMany(context.Background(), []string{"1", "2", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if !strings.Contains(r.cyphers[0], "IN $ids") {
		t.Errorf("expected IN lookup, got %q", r.cyphers[0])
	}
}

func TestList_Success(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("1", "A"), makeRecord("2", "B")}}}
	repo := newTestRepo(r)

	items, err := repo.List(context.Background(), ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)

	_, err := repo.List(context.Background(), ListOpts{
		Filter:  map[string]any{"category_id": "cat-1", "is_public": true},
		OrderBy: "updated_at",
		Desc:    true,
		Limit:   50,
	})
	if err != nil {
		t.Fatal(err)
	}

	cy := r.cyphers[0]
	if !strings.Contains(cy, "WHERE n.category_id = $f_category_id AND n.is_public = $f_is_public") {
		t.Errorf("filter clause missing or unordered: %q", cy)
	}
	if !strings.Contains(cy, "ORDER BY n.updated_at DESC") {
		t.Errorf("order clause missing: %q", cy)
	}
	if r.params[0]["f_category_id"] != "cat-1" {
		t.Errorf("filter param missing: %v", r.params[0])
	}
}

func TestList_DefaultLimit(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)
	_, err := repo.List(context.Background(), ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if r.params[0]["limit"] != 100 {
		t.Errorf("expected default limit 100, got %v", r.params[0]["limit"])
	}
}

func TestCreate_Success(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("1", "A")}}}
	repo := newTestRepo(r)

	e, err := repo.Create(context.Background(), entity{ID: "1", Name: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "1" {
		t.Fatalf("got %+v", e)
	}
}

func TestCreate_NoRecord(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)
	if _, err := repo.Create(context.Background(), entity{ID: "1"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)
	_, err := repo.Update(context.Background(), entity{ID: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_Detaches(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)
	if err := repo.Delete(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.cyphers[0], "DETACH DELETE") {
		t.Errorf("expected DETACH DELETE, got %q", r.cyphers[0])
	}
}
