package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/fetch"
)

// Runner builds harvest tasks from components shared by the CLI and the
// HTTP server.
type Runner struct {
	retriever     *fetch.Retriever
	browser       fetch.PageFetcher
	parser        *feed.Parser
	listingParser *feed.ListingParser
	filterer      *feed.Filterer
	archive       database.ArticleRepositoryInterface
}

// NewRunner accepts a nil browser (rendered sources then fall back to plain
// HTTP) and a nil archive.
func NewRunner(retriever *fetch.Retriever, browser fetch.PageFetcher, archive database.ArticleRepositoryInterface) *Runner {
	return &Runner{
		retriever:     retriever,
		browser:       browser,
		parser:        feed.NewParser(),
		listingParser: feed.NewListingParser(),
		filterer:      feed.NewFilterer(),
		archive:       archive,
	}
}

func (r *Runner) NewTask(config *feed.Config) *HarvestTask {
	retriever := r.retriever.WithUserAgent(config.Settings.UserAgent)

	var pageFetcher fetch.PageFetcher = retriever
	if config.Settings.Render {
		if r.browser != nil {
			pageFetcher = r.browser
		} else {
			slog.Warn("No browser available, fetching rendered source over HTTP", "feed", config.Name)
		}
	}

	slog.Debug("Harvest task created",
		"feed", config.Name,
		"user_agent", retriever.UserAgent(),
		"render", config.Settings.Render)

	return NewHarvestTask(config, retriever, pageFetcher, r.parser, r.listingParser, r.filterer, r.archive)
}

func (r *Runner) Harvest(ctx context.Context, config *feed.Config) (*Result, error) {
	task := r.NewTask(config)
	task.Start()
	return task.Execute(ctx)
}
