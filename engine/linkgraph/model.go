package linkgraph

import "time"

// Page is a scraped page node. URL is the node identity.
type Page struct {
	URL        string    `json:"url"`
	Host       string    `json:"host"`
	Title      string    `json:"title"`
	TextLength int       `json:"text_length"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// Link is a directed LINKS_TO edge between two pages.
type Link struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Anchor string `json:"anchor"`
	Rel    string `json:"rel"`
}
