package api

import (
	"context"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/tasks"
)

type HarvesterInterface interface {
	Harvest(ctx context.Context, config *feed.Config) (*tasks.Result, error)
}

type GeneratorInterface interface {
	Run(articles []feed.Article, format feed.OutputFormat) ([]byte, error)
}

var (
	_ HarvesterInterface = (*tasks.Runner)(nil)
	_ GeneratorInterface = (*feed.Generator)(nil)
)

type Handler struct {
	configCache *feed.ConfigCache
	harvester   HarvesterInterface
	generator   GeneratorInterface
	articleRepo database.ArticleRepositoryInterface
	version     string
}

type archivedArticle struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	Summary       string `json:"summary"`
	Published     string `json:"published"`
	Content       string `json:"content"`
	ContentStatus string `json:"content_status"`
	ArchivedAt    string `json:"archived_at"`
}
