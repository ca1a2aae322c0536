// Package linkgraph stores the page link graph in Neo4j. Pages are
// (:Page {url}) nodes, outbound links are LINKS_TO relationships carrying
// the anchor text and rel attribute.
package linkgraph

import (
	"context"
	"net/url"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/pagesift/pagesift/pkg/repo"
)

// Store provides link graph operations on top of the generic Neo4j
// repository.
type Store struct {
	driver neo4j.DriverWithContext
	pages  *repo.Neo4jRepo[Page, string]
}

// New creates a Store.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver: driver,
		pages:  newPageRepo(driver),
	}
}

func newPageRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[Page, string] {
	return repo.NewNeo4jRepo[Page, string](
		driver,
		"Page",
		pageToMap,
		pageFromRecord,
		repo.WithIDKey[Page, string]("url"),
	)
}

// GetPage returns a page by URL.
func (s *Store) GetPage(ctx context.Context, pageURL string) (Page, error) {
	return s.pages.Get(ctx, pageURL)
}

// SavePage upserts a page node keyed on its URL.
func (s *Store) SavePage(ctx context.Context, p Page) error {
	_, err := s.pages.Merge(ctx, p)
	return err
}

// SaveLinks upserts a page's outbound edges in one transaction. Target
// pages that have not been scraped yet get a bare (:Page {url}) node.
func (s *Store) SaveLinks(ctx context.Context, links []Link) error {
	if len(links) == 0 {
		return nil
	}
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := `MERGE (a:Page {url: $from})
		 MERGE (b:Page {url: $to})
		 MERGE (a)-[r:LINKS_TO]->(b)
		 SET r.anchor = $anchor, r.rel = $rel`
		for _, l := range links {
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"from":   l.From,
				"to":     l.To,
				"anchor": l.Anchor,
				"rel":    l.Rel,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// Outlinks returns the pages this page links to.
func (s *Store) Outlinks(ctx context.Context, pageURL string) ([]Page, error) {
	return s.queryPages(ctx,
		`MATCH (:Page {url: $url})-[:LINKS_TO]->(n:Page) RETURN n`,
		map[string]any{"url": pageURL})
}

// Backlinks returns the pages that link to this page.
func (s *Store) Backlinks(ctx context.Context, pageURL string) ([]Page, error) {
	return s.queryPages(ctx,
		`MATCH (n:Page)-[:LINKS_TO]->(:Page {url: $url}) RETURN n`,
		map[string]any{"url": pageURL})
}

// PagesByHost returns all scraped pages on a host.
func (s *Store) PagesByHost(ctx context.Context, host string) ([]Page, error) {
	return s.queryPages(ctx,
		`MATCH (n:Page {host: $host}) RETURN n`,
		map[string]any{"host": host})
}

func (s *Store) queryPages(ctx context.Context, cypher string, params map[string]any) ([]Page, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var pages []Page
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return nil, err
		}
		pages = append(pages, pageFromProps(node.Props))
	}
	return pages, nil
}

func pageToMap(p Page) map[string]any {
	return map[string]any{
		"url":         p.URL,
		"host":        p.Host,
		"title":       p.Title,
		"text_length": int64(p.TextLength),
		"scraped_at":  p.ScrapedAt.UTC().Format(time.RFC3339),
	}
}

func pageFromRecord(rec *neo4j.Record) (Page, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Page{}, err
	}
	return pageFromProps(node.Props), nil
}

func pageFromProps(props map[string]any) Page {
	p := Page{
		URL:   strProp(props, "url"),
		Host:  strProp(props, "host"),
		Title: strProp(props, "title"),
	}
	if n, ok := props["text_length"].(int64); ok {
		p.TextLength = int(n)
	}
	if ts, ok := props["scraped_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			p.ScrapedAt = parsed
		}
	}
	return p
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

// HostOf extracts the host from a URL, or "" if it does not parse.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
