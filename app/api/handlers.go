package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/tasks"
)

const (
	defaultArchiveLimit = 50
	maxArchiveLimit     = 500
)

// NewHandler accepts a nil articleRepo; archive endpoints then answer 503.
func NewHandler(configCache *feed.ConfigCache, harvester HarvesterInterface,
	articleRepo database.ArticleRepositoryInterface, version string) *Handler {
	return &Handler{
		configCache: configCache,
		harvester:   harvester,
		generator:   feed.NewGenerator(),
		articleRepo: articleRepo,
		version:     version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	if !feedConfig.Settings.IsEnabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed is disabled"})
		return
	}

	result, err := h.harvester.Harvest(c.Request.Context(), feedConfig)
	if err != nil {
		if errors.Is(err, tasks.ErrFeedFetch) || errors.Is(err, tasks.ErrNoEntries) {
			slog.Warn("Harvest failed", "feed", name, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Harvest error", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Harvest failed"})
		return
	}

	data, err := h.generator.Run(result.Articles, result.Format)
	if err != nil {
		slog.Error("JSON generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Feed-Name", name)
	c.Header("X-Feed-Items", strconv.Itoa(len(result.Articles)))
	c.Header("X-Feed-Filtered", strconv.Itoa(result.Filtered))

	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
		"archive":               h.articleRepo != nil,
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListSources(c *gin.Context) {
	names := h.configCache.GetNames()

	sources := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		feedConfig, err := h.configCache.GetConfig(name)
		if err != nil {
			continue
		}

		sources = append(sources, map[string]interface{}{
			"name":      feedConfig.Name,
			"label":     feedConfig.Label,
			"url":       feedConfig.URL,
			"kind":      feedConfig.Kind,
			"format":    feedConfig.Output.Format,
			"enabled":   feedConfig.Settings.IsEnabled(),
			"enrich":    feedConfig.Enrich.Enabled,
			"max_items": feedConfig.Settings.MaxItems,
			"filters":   len(feedConfig.Filters),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) GetArchive(c *gin.Context) {
	name := c.Param("name")

	if h.articleRepo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Archive is not configured"})
		return
	}

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	limit := defaultArchiveLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxArchiveLimit)
	}

	articles, err := h.articleRepo.GetRecentArticles(name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_articles", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total, err := h.articleRepo.GetArticleCount(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_article_count", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	records := make([]archivedArticle, 0, len(articles))
	for _, article := range articles {
		records = append(records, archivedArticle{
			Title:         article.Title,
			Link:          article.Link,
			Summary:       article.Summary,
			Published:     article.Published,
			Content:       article.Content,
			ContentStatus: article.ContentStatus,
			ArchivedAt:    article.UpdatedAt.In(time.Local).Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"source":   name,
		"articles": records,
		"total":    total,
	})
}
