// Package semantic is the sole owner of all Qdrant operations: a thin,
// tenant-scoped adapter over the gRPC Points and Collections clients.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// DefaultSearchLimit caps search results when the caller passes no limit.
const DefaultSearchLimit = 5

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Config identifies the Qdrant endpoint and the tenant this store serves.
type Config struct {
	Addr     string // gRPC address, e.g. "localhost:6334"
	APIKey   string // optional, sent as api-key metadata on every call
	TenantID string
}

// VectorStore adapts the Qdrant clients for one tenant. The connection is
// owned directly and starts nil; Connect opens it on first use. The store
// assumes single-threaded access — concurrent callers hold their own
// instance or serialize externally.
type VectorStore struct {
	cfg         Config
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
}

// New creates a disconnected VectorStore.
func New(cfg Config) *VectorStore {
	return &VectorStore{cfg: cfg}
}

// NewWithClients builds a store over existing clients, bypassing Connect.
// Used by tests and by callers that share a connection.
func NewWithClients(points pointsAPI, collections collectionsAPI, tenantID string) *VectorStore {
	return &VectorStore{
		cfg:         Config{TenantID: tenantID},
		points:      points,
		collections: collections,
	}
}

// TenantID returns the tenant this store was constructed for.
func (v *VectorStore) TenantID() string { return v.cfg.TenantID }

// Connect opens the gRPC connection if none exists. Idempotent; dial errors
// propagate to the caller unchanged. There is no disconnect/reconnect —
// once connected the store stays connected for its lifetime.
func (v *VectorStore) Connect(_ context.Context) error {
	if v.points != nil {
		return nil
	}

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if v.cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(v.cfg.APIKey)))
	}

	conn, err := grpc.NewClient(v.cfg.Addr, opts...)
	if err != nil {
		return err
	}
	v.conn = conn
	v.points = pb.NewPointsClient(conn)
	v.collections = pb.NewCollectionsClient(conn)
	return nil
}

// Close closes the underlying gRPC connection, if one was opened.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// apiKeyInterceptor attaches the Qdrant api-key header to every call.
func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// EnsureCollection creates the collection with cosine distance if it does
// not already exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, collection string, dims int) error {
	if err := v.Connect(ctx); err != nil {
		return err
	}

	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", collection, err)
	}
	return nil
}

// DeleteCollection removes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context, collection string) error {
	if err := v.Connect(ctx); err != nil {
		return err
	}
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: collection})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", collection, err)
	}
	return nil
}

// Insert upserts the given points in a single blocking call that waits for
// server-side acknowledgment. Every point gets a fresh random UUID; any
// caller-supplied ID is discarded. The server response is returned
// unmodified — the store does no per-point validation and no partial retry.
func (v *VectorStore) Insert(ctx context.Context, collection string, points []VectorPoint) (*pb.PointsOperationResponse, error) {
	if err := v.Connect(ctx); err != nil {
		return nil, err
	}

	pts := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		pts[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: toPayload(p.Payload),
		}
	}

	wait := true
	resp, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         pts,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return resp, nil
}

// Search runs a k-NN similarity query and returns the ranked hits
// unmodified — no post-processing, no score thresholding. A non-empty
// tenantID adds exactly one equality filter on the tenant_id payload
// field; an empty tenantID searches across tenants. A non-positive limit
// falls back to DefaultSearchLimit.
func (v *VectorStore) Search(ctx context.Context, collection string, vector []float32, tenantID string, limit int) ([]*pb.ScoredPoint, error) {
	if err := v.Connect(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	req := &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if tenantID != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch(TenantKey, tenantID)}}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}
	return resp.GetResult(), nil
}

// DeleteByURL removes all points whose url payload field matches. Used
// when a page is re-ingested.
func (v *VectorStore) DeleteByURL(ctx context.Context, collection, url string) error {
	if err := v.Connect(ctx); err != nil {
		return err
	}
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch("url", url)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by url %s: %w", url, err)
	}
	return nil
}

// toPayload converts an arbitrary payload map into Qdrant values.
func toPayload(payload map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(payload))
	for k, val := range payload {
		switch tv := val.(type) {
		case string:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			out[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			out[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return out
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
