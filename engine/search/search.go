// Package search is the retrieval path: embed the query text, run a
// tenant-filtered similarity search, and shape the hits for callers.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/pagesift/pagesift/engine/domain"
	"github.com/pagesift/pagesift/engine/semantic"
	"github.com/pagesift/pagesift/pkg/embed"
)

// VectorSearcher abstracts the Qdrant similarity search.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, tenantID string, limit int) ([]*pb.ScoredPoint, error)
}

// Options configures the search service.
type Options struct {
	Collection    string
	TenantID      string
	Limit         int
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults for everything but Collection.
func DefaultOptions() Options {
	return Options{
		Limit:         semantic.DefaultSearchLimit,
		SearchTimeout: 5 * time.Second,
	}
}

// Service embeds queries and searches the vector store.
type Service struct {
	embedder embed.Embedder
	store    VectorSearcher
	opts     Options
	logger   *slog.Logger
}

// New creates a search Service.
func New(embedder embed.Embedder, store VectorSearcher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, store: store, opts: opts, logger: logger}
}

// Source is one retrieved chunk.
type Source struct {
	ID      string         `json:"id"`
	URL     string         `json:"url"`
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Query validates, embeds, and searches. Results come back in the store's
// ranking order.
func (s *Service) Query(ctx context.Context, text string) ([]Source, error) {
	if err := domain.ValidateQuery(text); err != nil {
		return nil, err
	}
	s.logger.Info("search query start", "query_len", len(text), "tenant", s.opts.TenantID)

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	searchCtx := ctx
	if s.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
	}

	hits, err := s.store.Search(searchCtx, s.opts.Collection, vector, s.opts.TenantID, s.opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("search: vector search: %w", err)
	}
	s.logger.Info("search done", "hits", len(hits))

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = sourceFromPoint(h)
	}
	return sources, nil
}

// sourceFromPoint flattens a scored point into a Source. Well-known
// payload fields are lifted out; the rest stay in Payload.
func sourceFromPoint(p *pb.ScoredPoint) Source {
	src := Source{
		ID:    p.GetId().GetUuid(),
		Score: p.GetScore(),
	}

	rest := make(map[string]any)
	for k, v := range p.GetPayload() {
		switch k {
		case "url":
			src.URL = v.GetStringValue()
		case "title":
			src.Title = v.GetStringValue()
		case "content":
			src.Content = v.GetStringValue()
		default:
			rest[k] = payloadValue(v)
		}
	}
	if len(rest) > 0 {
		src.Payload = rest
	}
	return src
}

func payloadValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	default:
		return v.String()
	}
}
