package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-harvest/app/fetch"
)

var errEmptyLink = errors.New("entry has no link")

// Enricher loads each entry's article page and extracts its body text.
// Failures are recorded in Article.Content and never returned.
type Enricher struct {
	fetcher   fetch.PageFetcher
	extractor *ContentExtractor
	timeout   time.Duration
	encoding  string
}

func NewEnricher(fetcher fetch.PageFetcher, extractor *ContentExtractor, timeout time.Duration, encoding string) *Enricher {
	return &Enricher{
		fetcher:   fetcher,
		extractor: extractor,
		timeout:   timeout,
		encoding:  encoding,
	}
}

func (e *Enricher) Run(ctx context.Context, entry Entry) Article {
	article := Article{Entry: entry}

	if entry.Link == "" {
		article.Content = FetchFailedContent(errEmptyLink)
		return article
	}

	page, err := e.fetcher.Fetch(ctx, entry.Link, e.timeout)
	if err != nil {
		slog.Warn("Failed to fetch article", "url", entry.Link, "error", err)
		article.Content = FetchFailedContent(err)
		return article
	}

	body, err := fetch.DecodePage(page, e.encoding)
	if err != nil {
		slog.Warn("Failed to decode article", "url", entry.Link, "error", err)
		article.Content = FetchFailedContent(err)
		return article
	}

	text, err := e.extractor.Run(body, page.URL)
	if err != nil {
		if !errors.Is(err, ErrContentNotFound) {
			slog.Debug("Content extraction failed", "url", entry.Link, "error", err)
		}
		article.Content = NotFoundContent()
		return article
	}

	article.Content = FoundContent(text)
	return article
}

// RunAll enriches entries sequentially in order, waiting delay (with jitter)
// between page loads. Entries left when ctx is cancelled are marked as failed
// fetches.
func (e *Enricher) RunAll(ctx context.Context, entries []Entry, delay time.Duration) []Article {
	articles := make([]Article, 0, len(entries))

	for i, entry := range entries {
		if i > 0 && delay > 0 {
			if err := fetch.Wait(ctx, fetch.RandomDelay(delay)); err != nil {
				for _, rest := range entries[i:] {
					articles = append(articles, Article{Entry: rest, Content: FetchFailedContent(err)})
				}
				return articles
			}
		}
		articles = append(articles, e.Run(ctx, entry))
	}

	return articles
}
