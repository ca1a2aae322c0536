package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrape_NormalizesWhitespace(t *testing.T) {
	srv := serve(t, 200, `<html><body><p>Hello   world</p></body></html>`)
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Text != "Hello world" {
		t.Errorf("text = %q, want %q", res.Text, "Hello world")
	}
}

func TestScrape_MetadataInvariants(t *testing.T) {
	srv := serve(t, 200, `<html><body>short page <a href="/x">x</a></body></html>`)
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Metadata == nil {
		t.Fatal("expected metadata")
	}
	if res.Metadata.TextLength != len(res.Text) {
		t.Errorf("text_length = %d, want %d", res.Metadata.TextLength, len(res.Text))
	}
	if res.Metadata.LinksCount != len(res.Links) {
		t.Errorf("links_count = %d, want %d", res.Metadata.LinksCount, len(res.Links))
	}
	if res.Metadata.Truncated {
		t.Error("short page should not be flagged truncated")
	}
}

func TestScrape_TruncatedFlagDoesNotCutText(t *testing.T) {
	long := strings.Repeat("word ", 1000) // 5000 chars of text
	srv := serve(t, 200, "<html><body>"+long+"</body></html>")
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if !res.Metadata.Truncated {
		t.Error("expected truncated flag for text >= 4000 chars")
	}
	if len(res.Text) < TruncateThreshold {
		t.Errorf("text must not be cut at scrape time, got %d chars", len(res.Text))
	}
}

func TestScrape_HrefWinsOverSrc(t *testing.T) {
	srv := serve(t, 200,
		`<html><body><a href="https://a.example/h" src="https://a.example/s">both</a></body></html>`)
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if len(res.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(res.Links))
	}
	if res.Links[0].URL != "https://a.example/h" {
		t.Errorf("src must be ignored when href is present, got %q", res.Links[0].URL)
	}
}

func TestScrape_SrcOnlyLink(t *testing.T) {
	srv := serve(t, 200, `<html><body><a src="https://a.example/s">img</a></body></html>`)
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if len(res.Links) != 1 || res.Links[0].URL != "https://a.example/s" {
		t.Fatalf("expected src link, got %+v", res.Links)
	}
}

func TestScrape_LinkAttributes(t *testing.T) {
	srv := serve(t, 200,
		`<html><head><link href="/style.css" rel="stylesheet"></head>`+
			`<body><a href="/doc" title="The Doc">read me</a></body></html>`)
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if len(res.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(res.Links))
	}
	if res.Links[0].Rel != "stylesheet" {
		t.Errorf("rel = %q, want stylesheet", res.Links[0].Rel)
	}
	if res.Links[1].Title != "The Doc" || res.Links[1].Text != "read me" {
		t.Errorf("anchor attrs wrong: %+v", res.Links[1])
	}
}

func TestScrape_Headings(t *testing.T) {
	srv := serve(t, 200,
		`<html><body><h1>Intro</h1><p>text</p><h2>Methods</h2><h3>Detail</h3></body></html>`)
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	want := []Heading{{"Intro", 1}, {"Methods", 2}, {"Detail", 3}}
	if len(res.Headings) != len(want) {
		t.Fatalf("expected %d headings, got %d", len(want), len(res.Headings))
	}
	for i, h := range want {
		if res.Headings[i] != h {
			t.Errorf("heading[%d] = %+v, want %+v", i, res.Headings[i], h)
		}
	}
}

func TestScrape_StripsScriptAndStyle(t *testing.T) {
	srv := serve(t, 200,
		`<html><head><style>p{color:red}</style></head><body><script>var x=1;</script>visible</body></html>`)
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if res.Text != "visible" {
		t.Errorf("text = %q, want %q", res.Text, "visible")
	}
}

func TestScrape_Non200(t *testing.T) {
	srv := serve(t, 503, "down")
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error == "" {
		t.Error("expected non-empty error")
	}
	if res.Text != "" || res.Links != nil || res.Metadata != nil {
		t.Error("failure result must carry no content fields")
	}
	if res.URL != srv.URL {
		t.Errorf("url = %q, want %q", res.URL, srv.URL)
	}
}

func TestScrape_Non200SuccessStatus(t *testing.T) {
	srv := serve(t, 201, `<html><body>created</body></html>`)
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if res.Success {
		t.Fatal("only a 200 reply is a successful scrape")
	}
	if !strings.Contains(res.Error, "201") {
		t.Errorf("error should name the status, got %q", res.Error)
	}
}

func TestScrape_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // connection refused
	res := New(Options{}).Scrape(context.Background(), srv.URL)
	if res.Success || res.Error == "" {
		t.Fatalf("expected failure with error, got %+v", res)
	}
	if res.Metadata != nil {
		t.Error("failure result must have nil metadata")
	}
}

func TestScrape_BadURL(t *testing.T) {
	res := New(Options{}).Scrape(context.Background(), "://not-a-url")
	if res.Success || res.Error == "" {
		t.Fatalf("expected failure, got %+v", res)
	}
}

func TestScrape_CancelledContext(t *testing.T) {
	srv := serve(t, 200, "<html><body>hi</body></html>")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(Options{RequestsPerSecond: 1}).Scrape(ctx, srv.URL)
	if res.Success {
		t.Fatal("expected failure on cancelled context")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	cases := map[string]string{
		"Hello   world":        "Hello world",
		"\n\t a \n b \t":       "a b",
		"":                     "",
		"already single space": "already single space",
	}
	for in, want := range cases {
		if got := collapseWhitespace(in); got != want {
			t.Errorf("collapseWhitespace(%q) = %q, want %q", in, got, want)
		}
	}
}
