// Package linkmeta fetches Open Graph metadata from a web page, used to
// prefill title and description when importing a video by URL.
package linkmeta

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Meta is the page metadata usable as video-record prefill.
type Meta struct {
	Title        string
	Description  string
	ThumbnailURL string
}

// Fetcher downloads and parses page metadata.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher with the given timeout and User-Agent.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch loads the page and extracts og:title/og:description/og:image,
// falling back to <title> and meta[name=description].
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML error: %w", err)
	}

	meta := Parse(doc)
	log.Debug().
		Str("url", pageURL).
		Str("title", meta.Title).
		Msg("Fetched link metadata")
	return meta, nil
}

// Parse extracts metadata from an already-loaded document.
func Parse(doc *goquery.Document) *Meta {
	meta := &Meta{
		Title:        metaProperty(doc, "og:title"),
		Description:  metaProperty(doc, "og:description"),
		ThumbnailURL: metaProperty(doc, "og:image"),
	}

	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Description == "" {
		if v, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
			meta.Description = strings.TrimSpace(v)
		}
	}
	return meta
}

func metaProperty(doc *goquery.Document, property string) string {
	sel := fmt.Sprintf(`meta[property=%q]`, property)
	if v, ok := doc.Find(sel).First().Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
