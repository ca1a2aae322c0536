// Package ingest runs scraped pages through validation, parsing,
// chunking, embedding, and storage. Pages arrive over NATS from the
// scraper; vectors land in Qdrant, the link graph in Neo4j.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/pagesift/pagesift/engine/domain"
	"github.com/pagesift/pagesift/engine/linkgraph"
	"github.com/pagesift/pagesift/engine/scraper"
	"github.com/pagesift/pagesift/engine/semantic"
	"github.com/pagesift/pagesift/pkg/embed"
	"github.com/pagesift/pagesift/pkg/fn"
	"github.com/pagesift/pagesift/pkg/metrics"
	"github.com/pagesift/pagesift/pkg/natsutil"
	"github.com/pagesift/pagesift/pkg/resilience"
)

const (
	// IngestSubject carries scrape results from the scraper.
	IngestSubject = "pagesift.ingest"
	// DLQSubject receives messages that failed MaxRetries times.
	DLQSubject = "pagesift.ingest.dlq"
	// MaxRetries before a message goes to the DLQ.
	MaxRetries = 3
	// EmbedBatchSize is the max chunks per embedding request.
	EmbedBatchSize = 100

	retryHeader = "X-Retry-Count"
)

// VectorWriter is the slice of semantic.VectorStore the pipeline writes
// through.
type VectorWriter interface {
	Insert(ctx context.Context, collection string, points []semantic.VectorPoint) (*pb.PointsOperationResponse, error)
	DeleteByURL(ctx context.Context, collection, url string) error
}

// PageWriter persists pages and their outbound links.
type PageWriter interface {
	SavePage(ctx context.Context, p linkgraph.Page) error
	SaveLinks(ctx context.Context, links []linkgraph.Link) error
}

// Deps holds the external dependencies of the pipeline.
type Deps struct {
	Embedder   embed.Embedder
	Vectors    VectorWriter
	Pages      PageWriter
	Collection string
	TenantID   string
	Breaker    *resilience.Breaker // optional, guards the embed stage
	Metrics    *metrics.Registry   // optional
	Logger     *slog.Logger
}

// --- Pipeline stages ---

// Validate rejects scrape results that should not be ingested.
var Validate fn.Stage[scraper.ScrapeResult, scraper.ScrapeResult] = func(_ context.Context, res scraper.ScrapeResult) fn.Result[scraper.ScrapeResult] {
	if !res.Success {
		return fn.Errf[scraper.ScrapeResult]("ingest: scrape of %s failed: %s", res.URL, res.Error)
	}
	if err := domain.ValidateScrapeResult(res); err != nil {
		return fn.Err[scraper.ScrapeResult](err)
	}
	return fn.Ok(res)
}

// Parse converts a ScrapeResult into a ParsedPage.
var Parse fn.Stage[scraper.ScrapeResult, ParsedPage] = func(_ context.Context, res scraper.ScrapeResult) fn.Result[ParsedPage] {
	return fn.Ok(parsedPageFromScrape(res))
}

// ChunkPage splits a ParsedPage into a ChunkedPage.
var ChunkPage fn.Stage[ParsedPage, ChunkedPage] = func(_ context.Context, page ParsedPage) fn.Result[ChunkedPage] {
	chunks := chunkSentences(page.URL, page.Sentences, DefaultChunkSize, DefaultOverlap)
	if len(chunks) == 0 {
		// Single chunk fallback for pages without sentence breaks.
		chunks = []Chunk{{Text: page.Content, Index: 0, URL: page.URL}}
	}
	return fn.Ok(ChunkedPage{ParsedPage: page, Chunks: chunks})
}

// NewEmbed creates the Embed stage over an Embedder, batching chunks.
func NewEmbed(embedder embed.Embedder) fn.Stage[ChunkedPage, EmbeddedPage] {
	return func(ctx context.Context, page ChunkedPage) fn.Result[EmbeddedPage] {
		embeddings := make([][]float32, len(page.Chunks))

		for i := 0; i < len(page.Chunks); i += EmbedBatchSize {
			end := min(i+EmbedBatchSize, len(page.Chunks))

			texts := make([]string, end-i)
			for j, c := range page.Chunks[i:end] {
				texts[j] = c.Text
			}

			vecs, err := embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fn.Err[EmbeddedPage](fmt.Errorf("ingest: embed batch: %w", err))
			}
			copy(embeddings[i:end], vecs)
		}

		return fn.Ok(EmbeddedPage{ChunkedPage: page, Embeddings: embeddings})
	}
}

// NewStore creates the Store stage. Old vectors for the URL are removed
// first so re-ingesting a page replaces its chunks, then the page and its
// links are merged into the graph.
func NewStore(deps Deps) fn.Stage[EmbeddedPage, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, page EmbeddedPage) fn.Result[string] {
		if err := deps.Vectors.DeleteByURL(ctx, deps.Collection, page.URL); err != nil {
			log.Warn("ingest: stale vector cleanup failed", "url", page.URL, "err", err)
		}

		points := make([]semantic.VectorPoint, len(page.Chunks))
		for i, chunk := range page.Chunks {
			points[i] = semantic.VectorPoint{
				Vector: page.Embeddings[i],
				Payload: map[string]any{
					semantic.TenantKey: deps.TenantID,
					"url":              page.URL,
					"title":            page.Title,
					"content":          chunk.Text,
					"chunk_index":      chunk.Index,
				},
			}
		}
		if _, err := deps.Vectors.Insert(ctx, deps.Collection, points); err != nil {
			return fn.Err[string](fmt.Errorf("ingest: vector insert: %w", err))
		}

		if err := deps.Pages.SavePage(ctx, linkgraph.Page{
			URL:        page.URL,
			Host:       page.Host,
			Title:      page.Title,
			TextLength: len(page.Content),
			ScrapedAt:  page.ScrapedAt,
		}); err != nil {
			return fn.Err[string](fmt.Errorf("ingest: graph save page: %w", err))
		}

		links := make([]linkgraph.Link, 0, len(page.Links))
		for _, l := range page.Links {
			if domain.ValidateTargetURL(l.URL) != nil {
				continue // relative links and fragments stay out of the graph
			}
			links = append(links, linkgraph.Link{
				From:   page.URL,
				To:     l.URL,
				Anchor: l.Text,
				Rel:    l.Rel,
			})
		}
		if err := deps.Pages.SaveLinks(ctx, links); err != nil {
			return fn.Err[string](fmt.Errorf("ingest: graph save links: %w", err))
		}

		return fn.Ok(page.URL)
	}
}

// LoggedTap logs stage entry and exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(_ context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline wires Validate, Parse, ChunkPage, Embed, and Store. The
// embed stage goes through the breaker when one is configured.
func NewPipeline(deps Deps) fn.Stage[scraper.ScrapeResult, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	embedStage := NewEmbed(deps.Embedder)
	if deps.Breaker != nil {
		embedStage = resilience.BreakerStage(deps.Breaker, embedStage)
	}

	validated := fn.Then(LoggedTap[scraper.ScrapeResult]("validate", log), Validate)
	parsed := fn.Then(validated, fn.TracedStage("ingest.parse", Parse))
	chunked := fn.Then(parsed, fn.TracedStage("ingest.chunk", ChunkPage))
	embedded := fn.Then(chunked, fn.TracedStage("ingest.embed", embedStage))
	return fn.Then(embedded, fn.TracedStage("ingest.store", NewStore(deps)))
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Result  scraper.ScrapeResult `json:"result"`
	Error   string               `json:"error"`
	Retries int                  `json:"retries"`
}

// StartConsumer subscribes the pipeline to IngestSubject within a queue
// group. Failed messages are republished with an incremented retry
// header; after MaxRetries they go to the DLQ.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	var ingested, failed, deadLettered *metrics.Counter
	var duration *metrics.Histogram
	if deps.Metrics != nil {
		ingested = deps.Metrics.Counter("ingest_pages_total", "Pages ingested.")
		failed = deps.Metrics.Counter("ingest_failures_total", "Pipeline failures.")
		deadLettered = deps.Metrics.Counter("ingest_dlq_total", "Messages sent to the DLQ.")
		duration = deps.Metrics.Histogram("ingest_duration_seconds", "Pipeline duration.", nil)
	}

	return natsutil.QueueSubscribe(nc, IngestSubject, "ingest",
		func(ctx context.Context, res scraper.ScrapeResult, msg *nats.Msg) {
			start := time.Now()

			result := pipeline(ctx, res)
			if duration != nil {
				duration.Since(start)
			}

			if result.IsOk() {
				pageURL, _ := result.Unwrap()
				if ingested != nil {
					ingested.Inc()
				}
				log.Info("ingest: success", "url", pageURL)
				return
			}

			_, pipeErr := result.Unwrap()
			if failed != nil {
				failed.Inc()
			}

			retries := 0
			if msg.Header != nil {
				if v := msg.Header.Get(retryHeader); v != "" {
					fmt.Sscanf(v, "%d", &retries)
				}
			}
			retries++
			log.Error("ingest: pipeline failed", "url", res.URL, "retry", retries, "err", pipeErr)

			if retries >= MaxRetries {
				if deadLettered != nil {
					deadLettered.Inc()
				}
				dlq := dlqMessage{Result: res, Error: pipeErr.Error(), Retries: retries}
				if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
					log.Error("ingest: DLQ publish failed", "err", err)
				}
				return
			}

			headers := nats.Header{}
			headers.Set(retryHeader, fmt.Sprintf("%d", retries))
			if err := natsutil.PublishHeaders(ctx, nc, IngestSubject, res, headers); err != nil {
				log.Error("ingest: retry publish failed", "err", err)
			}
		})
}
