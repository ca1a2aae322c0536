// Command extract scrapes a URL and runs one of the LLM extraction
// operations over it, printing the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pagesift/pagesift/engine/domain"
	"github.com/pagesift/pagesift/engine/extract"
	"github.com/pagesift/pagesift/engine/scraper"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		rawURL  = flag.String("url", "", "URL to scrape and extract from")
		mode    = flag.String("mode", "keywords", "extraction mode: keywords or headings")
		model   = flag.String("model", envOr("OPENAI_MODEL", extract.DefaultModel), "chat model")
		baseURL = flag.String("base-url", envOr("OPENAI_BASE_URL", ""), "OpenAI-compatible base URL")
		timeout = flag.Duration("timeout", extract.DefaultTimeout, "model call timeout")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *rawURL == "" {
		logger.Error("missing -url")
		os.Exit(1)
	}
	if err := domain.ValidateTargetURL(*rawURL); err != nil {
		logger.Error("invalid url", "url", *rawURL, "err", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Error("OPENAI_API_KEY is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	scrape := scraper.New(scraper.Options{}).Scrape(ctx, *rawURL)

	completer := extract.NewChatCompleter(extract.Config{
		APIKey:  apiKey,
		BaseURL: *baseURL,
		Model:   *model,
		Timeout: *timeout,
	})
	ex := extract.New(completer, *timeout, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	switch *mode {
	case "keywords":
		start := time.Now()
		res := ex.ExtractKeywords(ctx, scrape)
		logger.Info("extraction done", "success", res.Success, "duration", time.Since(start))
		enc.Encode(res)
		if !res.Success {
			os.Exit(1)
		}
	case "headings":
		if !scrape.Success {
			logger.Error("scrape failed", "reason", scrape.Error)
			os.Exit(1)
		}
		summaries, err := ex.SummarizeHeadings(ctx, scrape.Headings, scrape.Text)
		if err != nil {
			logger.Error("summarization failed", "err", err)
			os.Exit(1)
		}
		enc.Encode(summaries)
	default:
		logger.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}
}
