package fetch

import (
	"context"
	"time"
)

// Page is a fetched document.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Rendered    bool // Body is browser-serialised and already UTF-8
}

// PageFetcher performs one GET and returns the body of a 2xx response.
// Implementations never retry.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Page, error)
}

var (
	_ PageFetcher = (*Retriever)(nil)
	_ PageFetcher = (*BrowserFetcher)(nil)
)
