// Package scraper fetches web pages and extracts visible text, outbound
// links, and headings. Every scrape is a single bounded GET; failures are
// reported in the result rather than raised.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds the GET request.
	DefaultTimeout = 10 * time.Second
	// TruncateThreshold is the text length at which Metadata.Truncated is
	// set. Consumers slice at this limit when building prompts.
	TruncateThreshold = 4000

	defaultUserAgent = "pagesift/1.0"
)

// Options configures a Scraper.
type Options struct {
	Timeout   time.Duration // zero means DefaultTimeout
	UserAgent string
	// RequestsPerSecond throttles repeated scrapes. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// Scraper issues rate-limited page fetches over a shared HTTP client.
type Scraper struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// New creates a Scraper.
func New(opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Scraper{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:   limiter,
		userAgent: opts.UserAgent,
	}
}

// Scrape fetches one URL and extracts text, links, and headings. A single
// attempt, no retry: any failure (bad URL, network error, non-200 status,
// unparseable body) comes back as Success=false with a non-empty Error and
// all content fields zero.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) ScrapeResult {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return failure(rawURL, err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return failure(rawURL, err.Error())
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return failure(rawURL, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(rawURL, fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, rawURL))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return failure(rawURL, err.Error())
	}

	doc.Find("script, style, noscript").Remove()
	text := collapseWhitespace(doc.Text())
	links := extractLinks(doc)

	return ScrapeResult{
		Success:  true,
		URL:      rawURL,
		Text:     text,
		Links:    links,
		Headings: extractHeadings(doc),
		Metadata: &Metadata{
			TextLength: len(text),
			LinksCount: len(links),
			Truncated:  len(text) >= TruncateThreshold,
		},
	}
}

func failure(url, msg string) ScrapeResult {
	return ScrapeResult{Success: false, URL: url, Error: msg}
}

// extractLinks walks all <a> and <link> tags. href wins over src: when both
// attributes are present only href is recorded. Tags with neither are
// skipped. Duplicates are kept; ordering follows the document.
func extractLinks(doc *goquery.Document) []LinkInfo {
	var links []LinkInfo
	doc.Find("a, link").Each(func(_ int, sel *goquery.Selection) {
		var li LinkInfo
		if href, ok := sel.Attr("href"); ok && href != "" {
			li.URL = href
		} else if src, ok := sel.Attr("src"); ok && src != "" {
			li.URL = src
		} else {
			return
		}
		li.Text = strings.TrimSpace(sel.Text())
		if title, ok := sel.Attr("title"); ok && title != "" {
			li.Title = title
		}
		if rel, ok := sel.Attr("rel"); ok && rel != "" {
			li.Rel = rel
		}
		links = append(links, li)
	})
	return links
}

// extractHeadings collects h1-h6 text in document order.
func extractHeadings(doc *goquery.Document) []Heading {
	var headings []Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" || len(sel.Nodes) == 0 {
			return
		}
		name := sel.Nodes[0].Data // "h1".."h6"
		if len(name) != 2 {
			return
		}
		headings = append(headings, Heading{Text: text, Level: int(name[1] - '0')})
	})
	return headings
}

// collapseWhitespace squeezes all runs of whitespace to single spaces and
// trims the ends.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
