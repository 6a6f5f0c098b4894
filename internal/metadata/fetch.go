// Package metadata fetches Open Graph metadata for shared links.
package metadata

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"ripple/internal/middleware"
	"ripple/internal/observability"
)

// Metadata is the best-effort page description extracted from a URL.
// Any or all fields may be empty when the page is unreachable or sparse.
type Metadata struct {
	Title       string
	Description string
	Image       string
}

// Fetcher resolves page metadata for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) Metadata
}

// HTTPFetcher fetches metadata over HTTP with a bounded timeout.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher with a 10 second request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch retrieves the page at url and extracts Open Graph tags, falling back
// to the document <title> and the standard description meta tag. It never
// returns an error: failures degrade to empty metadata so link creation can
// proceed regardless.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) Metadata {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		observability.MetadataFetchFailures.Inc()
		return Metadata{}
	}
	req.Header.Set("User-Agent", "ripple-linkbot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		observability.MetadataFetchFailures.Inc()
		middleware.Logger.WarnContext(ctx, "link metadata fetch failed", "url", url, "error", err)
		return Metadata{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.MetadataFetchFailures.Inc()
		middleware.Logger.WarnContext(ctx, "link metadata fetch failed", "url", url, "status", resp.StatusCode)
		return Metadata{}
	}

	return parse(resp.Body)
}

// parse walks the token stream collecting og:* properties plus the fallback
// <title> and description tags. Parsing stops at </head> since metadata tags
// do not appear in the body.
func parse(r io.Reader) Metadata {
	var (
		meta      Metadata
		title     string
		desc      string
		inTitle   bool
		tokenizer = html.NewTokenizer(r)
	)

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return finalize(meta, title, desc)
		case html.TextToken:
			if inTitle {
				title += string(tokenizer.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			switch string(name) {
			case "title":
				inTitle = tt == html.StartTagToken
			case "meta":
				if !hasAttr {
					continue
				}
				var property, nameAttr, content string
				for {
					key, val, more := tokenizer.TagAttr()
					switch string(key) {
					case "property":
						property = string(val)
					case "name":
						nameAttr = string(val)
					case "content":
						content = string(val)
					}
					if !more {
						break
					}
				}
				switch property {
				case "og:title":
					meta.Title = content
				case "og:description":
					meta.Description = content
				case "og:image":
					meta.Image = content
				}
				if nameAttr == "description" && desc == "" {
					desc = content
				}
			case "body":
				return finalize(meta, title, desc)
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "title":
				inTitle = false
			case "head":
				return finalize(meta, title, desc)
			}
		}
	}
}

func finalize(meta Metadata, title, desc string) Metadata {
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(title)
	}
	if meta.Description == "" {
		meta.Description = strings.TrimSpace(desc)
	}
	return meta
}
