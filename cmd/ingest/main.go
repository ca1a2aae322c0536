// Command ingest consumes scrape results from NATS and runs them through
// the ingestion pipeline into Qdrant and Neo4j. It can also seed the
// queue by scraping a list of URLs on startup.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/pagesift/pagesift/engine/ingest"
	"github.com/pagesift/pagesift/engine/linkgraph"
	"github.com/pagesift/pagesift/engine/scraper"
	"github.com/pagesift/pagesift/engine/semantic"
	"github.com/pagesift/pagesift/pkg/embed"
	"github.com/pagesift/pagesift/pkg/metrics"
	"github.com/pagesift/pagesift/pkg/natsutil"
	"github.com/pagesift/pagesift/pkg/resilience"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		natsURL      = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
		qdrantAddr   = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection   = flag.String("collection", envOr("QDRANT_COLLECTION", "pagesift"), "Qdrant collection")
		tenantID     = flag.String("tenant", envOr("TENANT_ID", "default"), "tenant id for stored vectors")
		neo4jURL     = flag.String("neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
		neo4jUser    = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass    = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		embedderKind = flag.String("embedder", envOr("EMBEDDER", "openai"), "embedder: openai or ollama")
		embedModel   = flag.String("embed-model", envOr("EMBED_MODEL", ""), "embedding model")
		ollamaURL    = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		dims         = flag.Int("dims", 1536, "embedding dimensions for collection creation")
		metricsPort  = flag.Int("metrics-port", 9091, "metrics HTTP port")
		rps          = flag.Float64("rps", 1, "seed scrape requests per second")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	met := metrics.New()
	met.ServeAsync(*metricsPort, logger)

	// Embedder
	var embedder embed.Embedder
	switch *embedderKind {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Error("OPENAI_API_KEY is not set")
			os.Exit(1)
		}
		embedder = embed.NewOpenAI(apiKey, os.Getenv("OPENAI_BASE_URL"), *embedModel)
	case "ollama":
		model := *embedModel
		if model == "" {
			model = "nomic-embed-text"
		}
		embedder = embed.NewOllama(*ollamaURL, model)
	default:
		logger.Error("unknown embedder", "embedder", *embedderKind)
		os.Exit(1)
	}

	// Qdrant
	vs := semantic.New(semantic.Config{
		Addr:     *qdrantAddr,
		APIKey:   os.Getenv("QDRANT_API_KEY"),
		TenantID: *tenantID,
	})
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, *collection, *dims); err != nil {
		logger.Error("qdrant ensure collection failed", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to Qdrant", "collection", *collection, "dims", *dims)

	// Neo4j
	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		logger.Error("neo4j connect failed", "err", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		logger.Error("neo4j verify failed", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to Neo4j")

	// NATS
	nc, err := nats.Connect(*natsURL)
	if err != nil {
		logger.Error("nats connect failed", "url", *natsURL, "err", err)
		os.Exit(1)
	}
	defer nc.Drain()

	deps := ingest.Deps{
		Embedder:   embedder,
		Vectors:    vs,
		Pages:      linkgraph.New(driver),
		Collection: *collection,
		TenantID:   *tenantID,
		Breaker:    resilience.NewBreaker(resilience.DefaultBreakerOpts),
		Metrics:    met,
		Logger:     logger,
	}

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		logger.Error("consumer start failed", "err", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()
	logger.Info("consumer started", "subject", ingest.IngestSubject)

	// Seed the queue with any URLs given on the command line.
	if urls := flag.Args(); len(urls) > 0 {
		go seed(ctx, nc, urls, *rps, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	// Give in-flight messages a moment to finish.
	time.Sleep(time.Second)
}

func seed(ctx context.Context, nc *nats.Conn, urls []string, rps float64, logger *slog.Logger) {
	s := scraper.New(scraper.Options{RequestsPerSecond: rps})
	for _, u := range urls {
		res := s.Scrape(ctx, u)
		if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, res); err != nil {
			logger.Error("seed publish failed", "url", u, "err", err)
			continue
		}
		logger.Info("seeded", "url", u, "success", res.Success)
	}
}
