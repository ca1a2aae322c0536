package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// fakeResult feeds canned records to the repo.
type fakeResult struct {
	records []*neo4j.Record
	pos     int
}

func (f *fakeResult) Next(_ context.Context) bool {
	if f.pos >= len(f.records) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeResult) Record() *neo4j.Record { return f.records[f.pos-1] }

// fakeRunner records the cypher and params of every Run call.
type fakeRunner struct {
	cyphers []string
	params  []map[string]any
	result  *fakeResult
	err     error
	closed  bool
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) (result, error) {
	f.cyphers = append(f.cyphers, cypher)
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRunner) Close(_ context.Context) error {
	f.closed = true
	return nil
}

func propsRecord(props map[string]any) *neo4j.Record {
	return &neo4j.Record{Values: []any{props}, Keys: []string{"n"}}
}

func testRepo(fr *fakeRunner) *Neo4jRepo[map[string]any, string] {
	r := NewNeo4jRepo[map[string]any, string](
		nil,
		"Page",
		func(m map[string]any) map[string]any { return m },
		func(rec *neo4j.Record) (map[string]any, error) {
			props, ok := rec.Values[0].(map[string]any)
			if !ok {
				return nil, errors.New("bad record")
			}
			return props, nil
		},
		WithIDKey[map[string]any, string]("url"),
	)
	r.newSession = func(_ context.Context) runner { return fr }
	return r
}

func TestGet(t *testing.T) {
	fr := &fakeRunner{result: &fakeResult{records: []*neo4j.Record{
		propsRecord(map[string]any{"url": "https://a.example/"}),
	}}}
	r := testRepo(fr)

	got, err := r.Get(context.Background(), "https://a.example/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["url"] != "https://a.example/" {
		t.Errorf("got = %v", got)
	}
	if !strings.Contains(fr.cyphers[0], "MATCH (n:Page {url: $id})") {
		t.Errorf("cypher = %q", fr.cyphers[0])
	}
	if !fr.closed {
		t.Error("session not closed")
	}
}

func TestGet_NotFound(t *testing.T) {
	fr := &fakeRunner{result: &fakeResult{}}
	if _, err := testRepo(fr).Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestMerge_UpsertsOnIDKey(t *testing.T) {
	fr := &fakeRunner{result: &fakeResult{records: []*neo4j.Record{
		propsRecord(map[string]any{"url": "u", "title": "T"}),
	}}}
	r := testRepo(fr)

	got, err := r.Merge(context.Background(), map[string]any{"url": "u", "title": "T"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got["title"] != "T" {
		t.Errorf("got = %v", got)
	}
	if !strings.Contains(fr.cyphers[0], "MERGE (n:Page {url: $id})") {
		t.Errorf("cypher = %q", fr.cyphers[0])
	}
	if fr.params[0]["id"] != "u" {
		t.Errorf("id param = %v", fr.params[0]["id"])
	}
}

func TestList_DefaultLimit(t *testing.T) {
	fr := &fakeRunner{result: &fakeResult{records: []*neo4j.Record{
		propsRecord(map[string]any{"url": "a"}),
		propsRecord(map[string]any{"url": "b"}),
	}}}
	r := testRepo(fr)

	items, err := r.List(context.Background(), ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %d", len(items))
	}
	if fr.params[0]["limit"] != defaultListLimit {
		t.Errorf("limit = %v, want %d", fr.params[0]["limit"], defaultListLimit)
	}
}

func TestDelete_Detaches(t *testing.T) {
	fr := &fakeRunner{result: &fakeResult{}}
	if err := testRepo(fr).Delete(context.Background(), "u"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !strings.Contains(fr.cyphers[0], "DETACH DELETE") {
		t.Errorf("cypher = %q", fr.cyphers[0])
	}
}

func TestRunError(t *testing.T) {
	fr := &fakeRunner{err: errors.New("db down")}
	if _, err := testRepo(fr).Get(context.Background(), "u"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefaults(t *testing.T) {
	r := NewNeo4jRepo[map[string]any, string](nil, "Node", nil, nil)
	if r.idKey != "id" {
		t.Errorf("default idKey = %s", r.idKey)
	}
}
