package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-harvest/app/api"
	"github.com/lysyi3m/rss-harvest/app/cfg"
	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/fetch"
	"github.com/lysyi3m/rss-harvest/app/notify"
	"github.com/lysyi3m/rss-harvest/app/tasks"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if c == nil {
		return
	}

	setupLogger(c.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch c.Command {
	case cfg.CommandFetch:
		err = runFetch(ctx, c)
	case cfg.CommandList:
		err = runList(c)
	case cfg.CommandServe:
		err = runServe(ctx, c)
	default:
		err = fmt.Errorf("unknown command: %s", c.Command)
	}

	if err != nil {
		slog.Error("Command failed", "command", c.Command, "error", err)
		stop()
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadSources(c *cfg.Cfg) (*feed.ConfigCache, error) {
	configCache := feed.NewConfigCache(c.FeedsDir)
	if err := configCache.Run(); err != nil {
		return nil, fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Debug("Feed configurations loaded", "dir", c.FeedsDir, "count", configCache.GetConfigCount())
	return configCache, nil
}

func openArchive(c *cfg.Cfg) (*database.DB, database.ArticleRepositoryInterface, error) {
	if c.ArchiveDB == "" {
		return nil, nil, nil
	}

	db, err := database.Open(c.ArchiveDB)
	if err != nil {
		return nil, nil, err
	}
	return db, database.NewArticleRepository(db), nil
}

func resolveSource(c *cfg.Cfg) (*feed.Config, error) {
	var source *feed.Config

	if c.URL != "" {
		source = &feed.Config{Name: adHocName(c.URL), URL: c.URL, Label: c.Label}
		feed.ApplyDefaults(source)
	} else {
		configCache, err := loadSources(c)
		if err != nil {
			return nil, err
		}
		loaded, err := configCache.GetConfig(c.Source)
		if err != nil {
			return nil, err
		}
		if !loaded.Settings.IsEnabled() {
			return nil, fmt.Errorf("feed '%s' is disabled", c.Source)
		}
		copied := *loaded
		source = &copied
	}

	if c.MaxItems > 0 {
		source.Settings.MaxItems = c.MaxItems
	}
	if c.NoEnrich {
		source.Enrich.Enabled = false
	}
	if c.Label != "" {
		source.Label = c.Label
	}

	if err := feed.ValidateConfig(source); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}

	return source, nil
}

// adHocName turns a feed URL into a source name usable in file names.
func adHocName(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "adhoc"
	}
	name := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(parsed.Hostname()), "_"), "_")
	if name == "" {
		return "adhoc"
	}
	return name
}

func runFetch(ctx context.Context, c *cfg.Cfg) error {
	source, err := resolveSource(c)
	if err != nil {
		return err
	}

	// Fail before harvesting when mail is requested but cannot be sent.
	var mailer *notify.Mailer
	if c.Mail {
		mailConfig, err := notify.LoadMailConfig(c.MailConfig)
		if err != nil {
			return err
		}
		mailer = notify.NewMailer(*mailConfig)
	}

	db, archive, err := openArchive(c)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	browser := fetch.NewBrowserFetcher(c.UserAgent)
	defer browser.Close()

	runner := tasks.NewRunner(fetch.NewRetriever(nil, c.UserAgent), browser, archive)

	result, err := runner.Harvest(ctx, source)
	if err != nil {
		return err
	}

	generator := feed.NewGenerator()
	data, err := generator.Run(result.Articles, result.Format)
	if err != nil {
		return err
	}

	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	now := time.Now()
	if c.OutputDir != "" {
		path, err := generator.WriteFile(c.OutputDir, source.Name, now, data)
		if err != nil {
			return err
		}
		slog.Info("Output written", "feed", source.Name, "path", path)
	}

	if mailer != nil {
		if err := mailer.SendDigest(buildDigest(source, result, now)); err != nil {
			return err
		}
	}

	found := 0
	for _, article := range result.Articles {
		if article.Content.Status == feed.ContentFound {
			found++
		}
	}

	slog.Info("Harvest summary",
		"feed", source.Name,
		"total", result.Total,
		"duplicates", result.Duplicates,
		"filtered", result.Filtered,
		"articles", len(result.Articles),
		"content_found", found)

	return nil
}

func buildDigest(source *feed.Config, result *tasks.Result, now time.Time) notify.Digest {
	digest := notify.Digest{
		Source:   source.Name,
		Label:    source.Label,
		Date:     now.In(time.Local).Format("2006-01-02"),
		Articles: make([]notify.DigestArticle, 0, len(result.Articles)),
	}

	for _, article := range result.Articles {
		digest.Articles = append(digest.Articles, notify.DigestArticle{
			Title:     article.Title,
			Link:      article.Link,
			Published: article.Published,
		})
	}

	return digest
}

func runList(c *cfg.Cfg) error {
	configCache, err := loadSources(c)
	if err != nil {
		return err
	}

	for _, name := range configCache.GetNames() {
		source, err := configCache.GetConfig(name)
		if err != nil {
			continue
		}

		status := "enabled"
		if !source.Settings.IsEnabled() {
			status = "disabled"
		}
		fmt.Printf("%-20s %-8s %-8s %-9s %s\n", name, source.Kind, source.Output.Format, status, source.URL)
	}

	return nil
}

func runServe(ctx context.Context, c *cfg.Cfg) error {
	slog.Info("Starting RSS Harvest server", "version", c.Version)

	configCache, err := loadSources(c)
	if err != nil {
		return err
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	db, archive, err := openArchive(c)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		slog.Info("Archive opened", "path", c.ArchiveDB)
	}

	browser := fetch.NewBrowserFetcher(c.UserAgent)
	defer browser.Close()

	runner := tasks.NewRunner(fetch.NewRetriever(nil, c.UserAgent), browser, archive)
	handler := api.NewHandler(configCache, runner, archive, c.Version)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      api.NewServer(handler, c.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(serverErrChan)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err, ok := <-serverErrChan:
		if ok {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	slog.Info("RSS Harvest server shutdown complete")
	return nil
}
