package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReqs []*pb.UpsertPoints
	upsertResp *pb.PointsOperationResponse
	upsertErr  error

	searchReqs []*pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error

	deleteResp *pb.PointsOperationResponse
	deleteErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReqs = append(m.upsertReqs, in)
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReqs = append(m.searchReqs, in)
	return m.searchResp, m.searchErr
}
func (m *mockPoints) Delete(_ context.Context, _ *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	return m.deleteResp, m.deleteErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	created    []*pb.CreateCollection
	createResp *pb.CollectionOperationResponse
	createErr  error
	deleteResp *pb.CollectionOperationResponse
	deleteErr  error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = append(m.created, in)
	return m.createResp, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return m.deleteResp, m.deleteErr
}

// --- Tests ---

func TestConnect_IdempotentWithClients(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "t1")
	for i := 0; i < 3; i++ {
		if err := vs.Connect(context.Background()); err != nil {
			t.Fatalf("Connect: %v", err)
		}
	}
	if vs.TenantID() != "t1" {
		t.Errorf("tenant = %q", vs.TenantID())
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestInsert_SingleUpsertWithFreshIDs(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "t1")

	points := []VectorPoint{
		{ID: "caller-supplied", Vector: []float32{0.1, 0.2}, Payload: map[string]any{TenantKey: "t1"}},
		{Vector: []float32{0.3, 0.4}, Payload: map[string]any{TenantKey: "t1"}},
		{Vector: []float32{0.5, 0.6}, Payload: map[string]any{TenantKey: "t1"}},
	}
	if _, err := vs.Insert(context.Background(), "docs", points); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if len(pts.upsertReqs) != 1 {
		t.Fatalf("expected exactly one upsert call, got %d", len(pts.upsertReqs))
	}
	req := pts.upsertReqs[0]
	if req.Wait == nil || !*req.Wait {
		t.Error("upsert must wait for acknowledgment")
	}
	if len(req.Points) != len(points) {
		t.Fatalf("expected %d points, got %d", len(points), len(req.Points))
	}

	seen := make(map[string]bool)
	for _, p := range req.Points {
		id := p.GetId().GetUuid()
		if id == "" {
			t.Fatal("point has no uuid id")
		}
		if id == "caller-supplied" {
			t.Error("caller-supplied id must be ignored")
		}
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}

	// IDs stay distinct across repeated calls too.
	if _, err := vs.Insert(context.Background(), "docs", points); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	for _, p := range pts.upsertReqs[1].Points {
		if seen[p.GetId().GetUuid()] {
			t.Error("id reused across calls")
		}
	}
}

func TestInsert_PayloadPreserved(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "t1")

	points := []VectorPoint{{
		Vector: []float32{0.1, 0.2},
		Payload: map[string]any{
			TenantKey: "t1",
			"count":   7,
			"score":   0.5,
			"flag":    true,
			"other":   []int{1, 2}, // default stringification
		},
	}}
	if _, err := vs.Insert(context.Background(), "docs", points); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	payload := pts.upsertReqs[0].Points[0].Payload
	if payload[TenantKey].GetStringValue() != "t1" {
		t.Errorf("tenant_id = %q, want t1", payload[TenantKey].GetStringValue())
	}
	if payload["count"].GetIntegerValue() != 7 {
		t.Error("int payload lost")
	}
	if !payload["flag"].GetBoolValue() {
		t.Error("bool payload lost")
	}
}

func TestInsert_Error(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("rpc fail")}
	vs := NewWithClients(pts, &mockCollections{}, "t1")
	if _, err := vs.Insert(context.Background(), "docs", []VectorPoint{{Vector: []float32{1}}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_NoTenantNoFilter(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "t1")

	if _, err := vs.Search(context.Background(), "docs", []float32{1, 0}, "", 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	req := pts.searchReqs[0]
	if req.Filter != nil {
		t.Error("empty tenant must issue no filter")
	}
	if req.Limit != DefaultSearchLimit {
		t.Errorf("limit = %d, want default %d", req.Limit, DefaultSearchLimit)
	}
}

func TestSearch_TenantFilter(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "t1")

	if _, err := vs.Search(context.Background(), "docs", []float32{1, 0}, "t1", 3); err != nil {
		t.Fatalf("Search: %v", err)
	}
	req := pts.searchReqs[0]
	if req.Filter == nil || len(req.Filter.Must) != 1 {
		t.Fatal("expected exactly one filter condition")
	}
	fc := req.Filter.Must[0].GetField()
	if fc.Key != TenantKey {
		t.Errorf("filter key = %q, want %s", fc.Key, TenantKey)
	}
	if fc.Match.GetKeyword() != "t1" {
		t.Errorf("filter value = %q, want t1", fc.Match.GetKeyword())
	}
	if req.Limit != 3 {
		t.Errorf("limit = %d, want 3", req.Limit)
	}
}

func TestSearch_ResultsUnmodified(t *testing.T) {
	hits := []*pb.ScoredPoint{
		{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}}, Score: 0.9},
		{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p2"}}, Score: 0.4},
	}
	pts := &mockPoints{searchResp: &pb.SearchResponse{Result: hits}}
	vs := NewWithClients(pts, &mockCollections{}, "t1")

	got, err := vs.Search(context.Background(), "docs", []float32{1}, "", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0] != hits[0] || got[1] != hits[1] {
		t.Error("results must be passed through untouched")
	}
}

func TestSearch_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("rpc fail")}
	vs := NewWithClients(pts, &mockCollections{}, "t1")
	if _, err := vs.Search(context.Background(), "docs", []float32{1}, "", 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "docs"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "t1")
	if err := vs.EnsureCollection(context.Background(), "docs", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.created) != 0 {
		t.Error("existing collection must not be recreated")
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	vs := NewWithClients(&mockPoints{}, cols, "t1")
	if err := vs.EnsureCollection(context.Background(), "docs", 1536); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.created) != 1 || cols.created[0].CollectionName != "docs" {
		t.Fatalf("create not issued: %+v", cols.created)
	}
}

func TestEnsureCollection_ListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	vs := NewWithClients(&mockPoints{}, cols, "t1")
	if err := vs.EnsureCollection(context.Background(), "docs", 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteByURL(t *testing.T) {
	pts := &mockPoints{deleteResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "t1")
	if err := vs.DeleteByURL(context.Background(), "docs", "https://a.example/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pts.deleteErr = errors.New("fail")
	if err := vs.DeleteByURL(context.Background(), "docs", "https://a.example/"); err == nil {
		t.Fatal("expected error")
	}
}
