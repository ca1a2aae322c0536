// Command scrape fetches one or more URLs and either prints the scrape
// results as JSON or publishes them to NATS for the ingest pipeline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"

	"github.com/pagesift/pagesift/engine/domain"
	"github.com/pagesift/pagesift/engine/ingest"
	"github.com/pagesift/pagesift/engine/scraper"
	"github.com/pagesift/pagesift/pkg/natsutil"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		publish = flag.Bool("publish", false, "publish results to NATS instead of stdout")
		natsURL = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
		rps     = flag.Float64("rps", 1, "max requests per second")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	urls := flag.Args()
	if len(urls) == 0 {
		logger.Error("no URLs given")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var nc *nats.Conn
	if *publish {
		var err error
		nc, err = nats.Connect(*natsURL)
		if err != nil {
			logger.Error("nats connect failed", "url", *natsURL, "err", err)
			os.Exit(1)
		}
		defer nc.Drain()
	}

	s := scraper.New(scraper.Options{RequestsPerSecond: *rps})
	enc := json.NewEncoder(os.Stdout)

	exitCode := 0
	for _, u := range urls {
		if err := domain.ValidateTargetURL(u); err != nil {
			logger.Error("skipping invalid url", "url", u, "err", err)
			exitCode = 1
			continue
		}

		res := s.Scrape(ctx, u)
		if !res.Success {
			logger.Warn("scrape failed", "url", u, "reason", res.Error)
			exitCode = 1
		}

		if *publish {
			if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, res); err != nil {
				logger.Error("publish failed", "url", u, "err", err)
				exitCode = 1
			}
			continue
		}
		if err := enc.Encode(res); err != nil {
			logger.Error("encode failed", "err", err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
