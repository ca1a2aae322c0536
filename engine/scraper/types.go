package scraper

// LinkInfo is one outbound link found on a page, in document order.
type LinkInfo struct {
	URL   string `json:"url"`
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
	Rel   string `json:"rel,omitempty"`
}

// Heading is a structural marker (h1..h6) in document order.
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// Metadata summarizes a successful scrape. Truncated only flags that the
// text is at or past the consumption limit; the text itself is never cut.
type Metadata struct {
	TextLength int  `json:"text_length"`
	LinksCount int  `json:"links_count"`
	Truncated  bool `json:"truncated"`
}

// ScrapeResult is the outcome of scraping a single URL. On failure only
// URL and Error are set; callers branch on Success rather than an error
// return.
type ScrapeResult struct {
	Success  bool       `json:"success"`
	URL      string     `json:"original_url"`
	Text     string     `json:"all_text,omitempty"`
	Links    []LinkInfo `json:"links,omitempty"`
	Headings []Heading  `json:"headings,omitempty"`
	Metadata *Metadata  `json:"metadata,omitempty"`
	Error    string     `json:"error,omitempty"`
}
