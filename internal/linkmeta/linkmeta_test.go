package linkmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	return doc
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		html string
		want Meta
	}{
		{
			name: "open graph tags win",
			html: `<html><head>
				<title>Fallback Title</title>
				<meta property="og:title" content="Conference Keynote">
				<meta property="og:description" content="Opening talk">
				<meta property="og:image" content="https://cdn.example/thumb.jpg">
			</head></html>`,
			want: Meta{Title: "Conference Keynote", Description: "Opening talk", ThumbnailURL: "https://cdn.example/thumb.jpg"},
		},
		{
			name: "falls back to title and meta description",
			html: `<html><head>
				<title>  Plain Page  </title>
				<meta name="description" content="A plain description">
			</head></html>`,
			want: Meta{Title: "Plain Page", Description: "A plain description"},
		},
		{
			name: "empty page",
			html: `<html><head></head><body></body></html>`,
			want: Meta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(parseDoc(t, tt.html))
			if *got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestFetcher_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<html><head><meta property="og:title" content="Demo Video"></head></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, "vidlib-bot-test/1.0")
	meta, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if meta.Title != "Demo Video" {
		t.Errorf("Title = %q, want %q", meta.Title, "Demo Video")
	}
	if gotUA != "vidlib-bot-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestFetcher_FetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, "vidlib-bot-test/1.0")
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("Fetch() expected error for 404")
	}
}
