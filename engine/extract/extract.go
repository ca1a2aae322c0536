// Package extract turns scraped pages into model-extracted information.
// It owns the two LLM operations: keyword extraction over the page text
// and per-heading summarization. Model output is returned as-is; callers
// decide how much to trust it.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/pagesift/pagesift/engine/scraper"
)

const (
	// DefaultModel is used when Config leaves Model empty.
	DefaultModel = "gpt-3.5-turbo"
	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 30 * time.Second

	textLimit    = 4000
	headingLimit = 10
	linkLimit    = 10
)

// Completer abstracts a single system+user chat completion. The production
// implementation is ChatCompleter; tests substitute their own.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config configures the OpenAI-backed completer.
type Config struct {
	APIKey  string
	BaseURL string        // optional, for proxies and compatible servers
	Model   string        // defaults to DefaultModel
	Timeout time.Duration // per-request timeout; zero leaves it to the caller's context
}

// ChatCompleter calls the OpenAI chat completions API.
type ChatCompleter struct {
	client openai.Client
	model  string
}

// NewChatCompleter builds a completer from explicit config. Credentials are
// passed in by the caller; nothing here reads the environment.
func NewChatCompleter(cfg Config) *ChatCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0), // single attempt per call
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &ChatCompleter{client: openai.NewClient(opts...), model: model}
}

// Complete sends one system+user exchange and returns the first choice's
// content verbatim.
func (c *ChatCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Extractor runs the extraction prompts against a Completer.
type Extractor struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates an Extractor. A non-positive timeout falls back to
// DefaultTimeout; a nil logger falls back to slog.Default.
func New(completer Completer, timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{completer: completer, timeout: timeout, logger: logger}
}

// ExtractKeywords asks the model to identify keyword-keyed information in
// a scraped page. A failed scrape short-circuits without touching the
// model: the result carries the scrape error behind a "Web scraping
// failed: " prefix and no metadata. Model errors come back with an
// "Error during keyword identification: " prefix and the scrape metadata
// intact. On success Content is the raw first-choice text, never parsed.
func (e *Extractor) ExtractKeywords(ctx context.Context, scrape scraper.ScrapeResult) ExtractionResult {
	if !scrape.Success {
		return ExtractionResult{
			Success:  false,
			Error:    "Web scraping failed: " + scrape.Error,
			Metadata: nil,
		}
	}

	text := firstChars(scrape.Text, textLimit)
	links := scrape.Links
	if len(links) > linkLimit {
		links = links[:linkLimit]
	}
	linksJSON, _ := json.Marshal(links)

	system, err := renderPrompt("keywords_system.tmpl", nil)
	if err != nil {
		return keywordFailure(err, scrape.Metadata)
	}
	user, err := renderPrompt("keywords_user.tmpl", keywordsPromptData{
		Text:       text,
		LinksCount: len(scrape.Links),
		LinksJSON:  string(linksJSON),
	})
	if err != nil {
		return keywordFailure(err, scrape.Metadata)
	}
	return e.complete(ctx, system, user, scrape.Metadata)
}

func keywordFailure(err error, meta *scraper.Metadata) ExtractionResult {
	return ExtractionResult{
		Success:  false,
		Error:    "Error during keyword identification: " + err.Error(),
		Metadata: meta,
	}
}

func (e *Extractor) complete(ctx context.Context, system, user string, meta *scraper.Metadata) ExtractionResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Info("keyword extraction start", "prompt_len", len(user))
	content, err := e.completer.Complete(ctx, system, user)
	if err != nil {
		e.logger.Error("keyword extraction failed", "err", err)
		return keywordFailure(err, meta)
	}

	return ExtractionResult{
		Success:  true,
		Content:  content,
		Metadata: meta,
	}
}

// SummarizeHeadings asks the model for a 1-2 sentence summary per heading.
// Only the first headingLimit headings and the first textLimit characters
// of text go into the prompt. The reply is expected to be the
// information.headings JSON envelope; a reply that does not parse is not
// an error, it comes back with Raw set and Summaries nil.
func (e *Extractor) SummarizeHeadings(ctx context.Context, headings []scraper.Heading, fullText string) (HeadingSummaries, error) {
	text := firstChars(fullText, textLimit)

	subset := headings
	if len(subset) > headingLimit {
		subset = subset[:headingLimit]
	}
	entries := make([]map[string]string, len(subset))
	for i, h := range subset {
		entries[i] = map[string]string{h.Text: fmt.Sprintf("h%d", h.Level)}
	}
	headingsJSON, _ := json.Marshal(entries)

	system, err := renderPrompt("headings_system.tmpl", nil)
	if err != nil {
		return HeadingSummaries{}, err
	}
	user, err := renderPrompt("headings_user.tmpl", headingsPromptData{
		Text:         text,
		HeadingCount: len(headings),
		HeadingLimit: headingLimit,
		HeadingsJSON: string(headingsJSON),
	})
	if err != nil {
		return HeadingSummaries{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Info("heading summarization start", "headings", len(headings))
	content, err := e.completer.Complete(ctx, system, user)
	if err != nil {
		return HeadingSummaries{}, fmt.Errorf("extract: summarize headings: %w", err)
	}

	return parseHeadingSummaries(content), nil
}

// firstChars returns the first n characters of s. Limits count runes, not
// bytes, so a multibyte character at the boundary is never split.
func firstChars(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

// parseHeadingSummaries unwraps the information.headings envelope. Anything
// that fails to parse is handed back raw.
func parseHeadingSummaries(content string) HeadingSummaries {
	var envelope struct {
		Information struct {
			Headings map[string]string `json:"headings"`
		} `json:"information"`
	}
	if err := json.Unmarshal([]byte(content), &envelope); err != nil || envelope.Information.Headings == nil {
		return HeadingSummaries{Raw: content}
	}
	return HeadingSummaries{Summaries: envelope.Information.Headings, Raw: content}
}
