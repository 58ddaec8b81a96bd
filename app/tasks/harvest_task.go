package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/fetch"
)

var (
	ErrFeedFetch = errors.New("feed fetch failed")
	ErrNoEntries = errors.New("feed yielded no entries")
)

var _ TaskInterface = (*HarvestTask)(nil)

type Result struct {
	Source     string
	Format     feed.OutputFormat
	Metadata   *feed.Metadata
	Articles   []feed.Article
	Total      int
	Filtered   int
	Duplicates int
}

type HarvestTask struct {
	Task
	Config        *feed.Config
	retriever     fetch.PageFetcher
	pageFetcher   fetch.PageFetcher
	parser        *feed.Parser
	listingParser *feed.ListingParser
	filterer      *feed.Filterer
	archive       database.ArticleRepositoryInterface
}

// NewHarvestTask wires one source run. retriever loads feeds; pageFetcher
// loads listing and article pages. archive may be nil.
func NewHarvestTask(config *feed.Config, retriever, pageFetcher fetch.PageFetcher, parser *feed.Parser, listingParser *feed.ListingParser, filterer *feed.Filterer, archive database.ArticleRepositoryInterface) *HarvestTask {
	if pageFetcher == nil {
		pageFetcher = retriever
	}

	return &HarvestTask{
		Task:          NewTask(TaskTypeHarvest, config.Name),
		Config:        config,
		retriever:     retriever,
		pageFetcher:   pageFetcher,
		parser:        parser,
		listingParser: listingParser,
		filterer:      filterer,
		archive:       archive,
	}
}

func (t *HarvestTask) Execute(ctx context.Context) (*Result, error) {
	result := &Result{
		Source:   t.FeedName,
		Format:   t.Config.Output.Format,
		Articles: []feed.Article{},
	}

	if err := checkContext(ctx); err != nil {
		return result, err
	}

	entries, metadata, err := t.collectEntries(ctx)
	if err != nil {
		return result, err
	}
	result.Metadata = metadata
	result.Total = len(entries)

	if len(entries) == 0 {
		return result, fmt.Errorf("%w: %s", ErrNoEntries, t.Config.URL)
	}

	if t.Config.Settings.StripSummaryHTML {
		for i := range entries {
			entries[i].Summary = feed.StripHTML(entries[i].Summary)
		}
	}

	entries, result.Duplicates = t.dropSeen(entries)

	entries, result.Filtered = t.filterer.Run(entries, t.Config)

	if t.Config.Enrich.Enabled {
		extractor, err := feed.NewContentExtractorFromConfig(t.Config.Enrich.Strategies)
		if err != nil {
			return result, fmt.Errorf("failed to build content extractor: %w", err)
		}
		slog.Debug("Enriching articles",
			"feed", t.FeedName,
			"articles", len(entries),
			"strategies", extractor.StrategyNames())
		enricher := feed.NewEnricher(t.pageFetcher, extractor, t.Config.Settings.GetTimeout(), t.Config.Settings.Encoding)
		result.Articles = enricher.RunAll(ctx, entries, t.Config.Settings.GetDelay())
	} else {
		for _, entry := range entries {
			result.Articles = append(result.Articles, feed.Article{Entry: entry})
		}
	}

	t.storeArticles(result.Articles)

	slog.Info("Task completed",
		"id", t.GetID(),
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", result.Total,
		"duplicates", result.Duplicates,
		"filtered", result.Filtered,
		"articles", len(result.Articles))

	return result, nil
}

func (t *HarvestTask) collectEntries(ctx context.Context) ([]feed.Entry, *feed.Metadata, error) {
	settings := t.Config.Settings

	if t.Config.Kind == feed.KindListing {
		page, err := t.pageFetcher.Fetch(ctx, t.Config.URL, settings.GetTimeout())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrFeedFetch, err)
		}

		body, err := fetch.DecodePage(page, settings.Encoding)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrFeedFetch, err)
		}

		metadata, entries, err := t.listingParser.Run(body, page.URL, t.Config.Listing.ItemSelector, settings.MaxItems)
		if err != nil {
			slog.Warn("Failed to parse listing page", "feed", t.FeedName, "error", err)
			return nil, nil, nil
		}
		return entries, metadata, nil
	}

	page, err := t.retriever.Fetch(ctx, t.Config.URL, settings.GetTimeout())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrFeedFetch, err)
	}

	metadata, entries, err := t.parser.Run(page.Body, settings.MaxItems)
	if err != nil {
		slog.Warn("Failed to parse feed", "feed", t.FeedName, "error", err)
		return nil, nil, nil
	}

	return entries, metadata, nil
}

func (t *HarvestTask) dropSeen(entries []feed.Entry) ([]feed.Entry, int) {
	if !t.Config.Settings.SkipSeen || t.archive == nil {
		return entries, 0
	}

	fresh := make([]feed.Entry, 0, len(entries))
	duplicates := 0
	for _, entry := range entries {
		isDuplicate, err := t.archive.CheckDuplicate(t.FeedName, entry.ContentHash)
		if err != nil {
			slog.Warn("Failed to check archive for duplicate", "feed", t.FeedName, "url", entry.Link, "error", err)
		}
		if isDuplicate {
			duplicates++
			continue
		}
		fresh = append(fresh, entry)
	}

	return fresh, duplicates
}

func (t *HarvestTask) storeArticles(articles []feed.Article) {
	if t.archive == nil {
		return
	}

	for _, article := range articles {
		if article.Link == "" {
			continue
		}

		record := database.ArticleRecord{
			GUID:          article.GUID,
			Link:          article.Link,
			Title:         article.Title,
			Summary:       article.Summary,
			Published:     article.Published,
			Content:       article.Content.String(),
			ContentStatus: article.Content.Status.String(),
			ContentHash:   article.ContentHash,
		}

		if err := t.archive.UpsertArticle(t.FeedName, record); err != nil {
			slog.Warn("Failed to archive article", "feed", t.FeedName, "url", article.Link, "error", err)
		}
	}
}
