// Command search embeds a query, runs a tenant-filtered vector search,
// and prints the retrieved sources as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pagesift/pagesift/engine/search"
	"github.com/pagesift/pagesift/engine/semantic"
	"github.com/pagesift/pagesift/pkg/embed"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		query      = flag.String("q", "", "query text")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "pagesift"), "Qdrant collection")
		tenantID   = flag.String("tenant", envOr("TENANT_ID", ""), "tenant filter, empty searches all tenants")
		limit      = flag.Int("limit", semantic.DefaultSearchLimit, "max results")
		embedModel = flag.String("embed-model", envOr("EMBED_MODEL", ""), "embedding model")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if *query == "" {
		logger.Error("missing -q")
		os.Exit(1)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Error("OPENAI_API_KEY is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	vs := semantic.New(semantic.Config{
		Addr:     *qdrantAddr,
		APIKey:   os.Getenv("QDRANT_API_KEY"),
		TenantID: *tenantID,
	})
	defer vs.Close()

	embedder := embed.NewOpenAI(apiKey, os.Getenv("OPENAI_BASE_URL"), *embedModel)

	opts := search.DefaultOptions()
	opts.Collection = *collection
	opts.TenantID = *tenantID
	opts.Limit = *limit

	svc := search.New(embedder, vs, opts, logger)
	sources, err := svc.Query(ctx, *query)
	if err != nil {
		logger.Error("query failed", "err", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(sources)
}
