package extract

import "github.com/pagesift/pagesift/engine/scraper"

// ExtractionResult is the one-shot outcome of a keyword extraction.
// Content is the raw first-choice completion, unparsed — the model is
// steered toward JSON but nothing here validates that it complied.
type ExtractionResult struct {
	Success  bool              `json:"success"`
	Content  string            `json:"content,omitempty"`
	Error    string            `json:"error,omitempty"`
	Metadata *scraper.Metadata `json:"metadata,omitempty"`
}

// HeadingSummaries is the outcome of a per-heading summarization.
// Summaries is populated when the model returned the documented
// information.headings envelope; otherwise it is nil and Raw carries the
// completion untouched for the caller to deal with.
type HeadingSummaries struct {
	Summaries map[string]string `json:"summaries,omitempty"`
	Raw       string            `json:"raw,omitempty"`
}
