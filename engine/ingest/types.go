package ingest

import (
	"time"

	"github.com/pagesift/pagesift/engine/scraper"
)

// ParsedPage is a successful scrape prepared for chunking.
type ParsedPage struct {
	URL       string
	Host      string
	Title     string
	Content   string
	Sentences []string
	Links     []scraper.LinkInfo
	ScrapedAt time.Time
}

// ChunkedPage is a parsed page split into embeddable chunks.
type ChunkedPage struct {
	ParsedPage
	Chunks []Chunk
}

// Chunk is a text segment ready for embedding.
type Chunk struct {
	Text  string
	Index int
	URL   string
}

// EmbeddedPage is a chunked page with one embedding per chunk.
type EmbeddedPage struct {
	ChunkedPage
	Embeddings [][]float32
}
