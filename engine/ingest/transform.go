package ingest

import (
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/pagesift/pagesift/engine/scraper"
)

const (
	// DefaultChunkSize is the target number of tokens per chunk.
	DefaultChunkSize = 512
	// DefaultOverlap is the number of overlapping tokens between chunks.
	DefaultOverlap = 50
)

// parsedPageFromScrape converts a successful scrape into a ParsedPage.
// The title is the first heading, falling back to the URL.
func parsedPageFromScrape(res scraper.ScrapeResult) ParsedPage {
	title := res.URL
	if len(res.Headings) > 0 {
		title = res.Headings[0].Text
	}

	host := ""
	if u, err := url.Parse(res.URL); err == nil {
		host = u.Host
	}

	return ParsedPage{
		URL:       res.URL,
		Host:      host,
		Title:     title,
		Content:   res.Text,
		Sentences: splitSentences(res.Text),
		Links:     res.Links,
		ScrapedAt: time.Now().UTC(),
	}
}

// splitSentences splits text into sentences on punctuation and newlines.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			// End of sentence only when followed by space or end of text.
			if r == '\n' || i == len(text)-1 || (i+1 < len(text) && unicode.IsSpace(rune(text[i+1]))) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// chunkSentences groups sentences into chunks of roughly chunkSize tokens
// with overlap between consecutive chunks. Tokens are approximated as words.
func chunkSentences(pageURL string, sentences []string, chunkSize, overlap int) []Chunk {
	if len(sentences) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []Chunk
	idx := 0
	start := 0

	for start < len(sentences) {
		var buf strings.Builder
		tokens := 0
		end := start

		for end < len(sentences) {
			words := wordCount(sentences[end])
			if tokens+words > chunkSize && tokens > 0 {
				break
			}
			if buf.Len() > 0 {
				buf.WriteRune(' ')
			}
			buf.WriteString(sentences[end])
			tokens += words
			end++
		}

		chunks = append(chunks, Chunk{
			Text:  buf.String(),
			Index: idx,
			URL:   pageURL,
		})
		idx++

		// Back up by overlap tokens, keeping forward progress.
		overlapTokens := 0
		newStart := end
		for newStart > start && overlapTokens < overlap {
			newStart--
			overlapTokens += wordCount(sentences[newStart])
		}
		if newStart == start {
			start = end
		} else {
			start = newStart
		}
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
