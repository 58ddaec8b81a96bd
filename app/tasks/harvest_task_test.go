package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/fetch"
)

type mockArchive struct {
	seen     map[string]bool
	upserted []database.ArticleRecord
	failing  bool
}

func (m *mockArchive) UpsertArticle(source string, record database.ArticleRecord) error {
	if m.failing {
		return errors.New("disk full")
	}
	m.upserted = append(m.upserted, record)
	return nil
}

func (m *mockArchive) CheckDuplicate(source, contentHash string) (bool, error) {
	return m.seen[contentHash], nil
}

func (m *mockArchive) GetRecentArticles(source string, limit int) ([]database.Article, error) {
	return nil, nil
}

func (m *mockArchive) GetArticleCount(source string) (int, error) {
	return len(m.upserted), nil
}

func newTestServer(t *testing.T, feedXML string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, strings.ReplaceAll(feedXML, "{{base}}", "http://"+r.Host))
	})
	mux.HandleFunc("/articles/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><div class="article-content"><p>Body of %s</p></div></body></html>`, r.URL.Path)
	})
	mux.HandleFunc("/nomatch/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><div class="other"><p>Nothing here</p></div></body></html>`)
	})
	mux.HandleFunc("/ranking/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Ranking</title></head><body><section><ul>
			<li><a href="/articles/1">One</a></li>
			<li><a href="/articles/2">Two</a></li>
		</ul></section></body></html>`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

const threeEntryFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test</title>
    <item>
      <title>One</title>
      <link>{{base}}/articles/1</link>
      <description>First &lt;b&gt;summary&lt;/b&gt;</description>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Two</title>
      <link>{{base}}/nomatch/2</link>
      <description>Second summary</description>
    </item>
    <item>
      <title>Three sponsored</title>
      <link>{{base}}/articles/3</link>
      <description>Third summary</description>
      <pubDate>Mon, 03 Jul 2023 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func testConfig(url string) *feed.Config {
	config := &feed.Config{Name: "test", URL: url}
	feed.ApplyDefaults(config)
	return config
}

func newTestRunner(archive database.ArticleRepositoryInterface) *Runner {
	return NewRunner(fetch.NewRetriever(nil, "test-agent"), nil, archive)
}

func TestHarvestTaskWithoutEnrichment(t *testing.T) {
	server := newTestServer(t, threeEntryFeed)

	result, err := newTestRunner(nil).Harvest(context.Background(), testConfig(server.URL+"/feed.xml"))
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Articles) != 3 || result.Total != 3 {
		t.Fatalf("Expected 3 articles, got %d (total %d)", len(result.Articles), result.Total)
	}
	if result.Articles[1].Published != "" {
		t.Errorf("Expected empty published for entry without date, got %q", result.Articles[1].Published)
	}
	for i, article := range result.Articles {
		if !article.Content.IsSkipped() {
			t.Errorf("Article %d: expected skipped content without enrichment", i)
		}
	}
	if result.Format != feed.FormatArticle {
		t.Errorf("Expected article format, got %s", result.Format)
	}
}

func TestHarvestTaskEnrichAndFilter(t *testing.T) {
	server := newTestServer(t, threeEntryFeed)

	config := testConfig(server.URL + "/feed.xml")
	config.Settings.StripSummaryHTML = true
	config.Enrich = feed.ConfigEnrich{
		Enabled:    true,
		Strategies: []feed.ConfigStrategy{{Type: feed.StrategyCSS, Selector: "div.article-content"}},
	}
	config.Filters = []feed.ConfigFilter{{Field: "title", Excludes: []string{"sponsored"}}}

	archive := &mockArchive{}
	result, err := newTestRunner(archive).Harvest(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}

	if result.Filtered != 1 {
		t.Errorf("Expected 1 filtered entry, got %d", result.Filtered)
	}
	if len(result.Articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(result.Articles))
	}

	first := result.Articles[0]
	if first.Content.String() != "Body of /articles/1" {
		t.Errorf("Unexpected content: %q", first.Content.String())
	}
	if first.Summary != "First summary" {
		t.Errorf("Expected stripped summary, got %q", first.Summary)
	}

	second := result.Articles[1]
	if second.Content.String() != "(not found)" {
		t.Errorf("Expected not found sentinel, got %q", second.Content.String())
	}
	if second.Title != "Two" || second.Summary != "Second summary" {
		t.Errorf("Expected entry fields untouched, got %+v", second.Entry)
	}

	if len(archive.upserted) != 2 {
		t.Fatalf("Expected 2 archived articles, got %d", len(archive.upserted))
	}
	if archive.upserted[1].ContentStatus != "not_found" {
		t.Errorf("Unexpected archived status: %s", archive.upserted[1].ContentStatus)
	}
}

func TestHarvestTaskFeedNotFound(t *testing.T) {
	server := newTestServer(t, threeEntryFeed)

	result, err := newTestRunner(nil).Harvest(context.Background(), testConfig(server.URL+"/missing.xml"))
	if !errors.Is(err, ErrFeedFetch) {
		t.Fatalf("Expected ErrFeedFetch, got %v", err)
	}

	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected wrapped 404 status error, got %v", err)
	}
	if result == nil || len(result.Articles) != 0 {
		t.Errorf("Expected empty article sequence, got %+v", result)
	}
}

func TestHarvestTaskNoEntries(t *testing.T) {
	server := newTestServer(t, `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`)

	result, err := newTestRunner(nil).Harvest(context.Background(), testConfig(server.URL+"/feed.xml"))
	if !errors.Is(err, ErrNoEntries) {
		t.Fatalf("Expected ErrNoEntries, got %v", err)
	}
	if len(result.Articles) != 0 {
		t.Errorf("Expected no articles, got %d", len(result.Articles))
	}
}

func TestHarvestTaskUnparseableFeed(t *testing.T) {
	server := newTestServer(t, `this is not a feed`)

	_, err := newTestRunner(nil).Harvest(context.Background(), testConfig(server.URL+"/feed.xml"))
	if !errors.Is(err, ErrNoEntries) {
		t.Fatalf("Expected parse failure to degrade to ErrNoEntries, got %v", err)
	}
}

func TestHarvestTaskMaxItems(t *testing.T) {
	server := newTestServer(t, threeEntryFeed)

	config := testConfig(server.URL + "/feed.xml")
	config.Settings.MaxItems = 2

	result, err := newTestRunner(nil).Harvest(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Articles) != 2 || result.Articles[1].Title != "Two" {
		t.Errorf("Expected first 2 entries, got %+v", result.Articles)
	}
}

func TestHarvestTaskSkipSeen(t *testing.T) {
	server := newTestServer(t, threeEntryFeed)

	parser := feed.NewParser()
	_, entries, err := parser.Run([]byte(strings.ReplaceAll(threeEntryFeed, "{{base}}", server.URL)), 0)
	if err != nil {
		t.Fatal(err)
	}

	archive := &mockArchive{seen: map[string]bool{entries[0].ContentHash: true}}

	config := testConfig(server.URL + "/feed.xml")
	config.Settings.SkipSeen = true

	result, err := newTestRunner(archive).Harvest(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}
	if result.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", result.Duplicates)
	}
	if len(result.Articles) != 2 || result.Articles[0].Title != "Two" {
		t.Errorf("Expected seen entry dropped, got %+v", result.Articles)
	}
}

func TestHarvestTaskArchiveErrorsDoNotAbort(t *testing.T) {
	server := newTestServer(t, threeEntryFeed)

	result, err := newTestRunner(&mockArchive{failing: true}).Harvest(context.Background(), testConfig(server.URL+"/feed.xml"))
	if err != nil {
		t.Fatalf("Expected archive failures to be logged only, got %v", err)
	}
	if len(result.Articles) != 3 {
		t.Errorf("Expected 3 articles, got %d", len(result.Articles))
	}
}

func TestHarvestTaskListing(t *testing.T) {
	server := newTestServer(t, threeEntryFeed)

	config := &feed.Config{
		Name:    "yomiuri",
		URL:     server.URL + "/ranking/",
		Kind:    feed.KindListing,
		Listing: feed.ConfigListing{ItemSelector: "section ul li a"},
		Enrich: feed.ConfigEnrich{
			Enabled:    true,
			Strategies: []feed.ConfigStrategy{{Type: feed.StrategyCSS, Selector: "div.article-content"}},
		},
	}
	feed.ApplyDefaults(config)

	result, err := newTestRunner(nil).Harvest(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}

	if result.Metadata == nil || result.Metadata.Title != "Ranking" {
		t.Errorf("Unexpected listing metadata: %+v", result.Metadata)
	}
	if len(result.Articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(result.Articles))
	}
	if result.Articles[0].Link != server.URL+"/articles/1" {
		t.Errorf("Expected resolved link, got %s", result.Articles[0].Link)
	}
	if result.Articles[1].Content.String() != "Body of /articles/2" {
		t.Errorf("Unexpected content: %q", result.Articles[1].Content.String())
	}
}

func TestHarvestTaskCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := newTestRunner(nil).NewTask(testConfig("http://127.0.0.1:1/feed.xml"))
	task.Start()

	if _, err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if task.GetType() != TaskTypeHarvest || task.GetFeedName() != "test" {
		t.Errorf("Unexpected task identity: %s %s", task.GetType(), task.GetFeedName())
	}
	if task.StartedAt == nil || task.GetDuration() > time.Minute {
		t.Errorf("Unexpected duration: %v", task.GetDuration())
	}
}

type recordingFetcher struct {
	urls []string
}

func (f *recordingFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*fetch.Page, error) {
	f.urls = append(f.urls, url)
	return &fetch.Page{URL: url, StatusCode: 200, ContentType: "text/html", Body: []byte(`<div class="article-content"><p>rendered</p></div>`)}, nil
}

func TestRunnerUsesBrowserForRenderedSources(t *testing.T) {
	server := newTestServer(t, threeEntryFeed)
	browser := &recordingFetcher{}

	config := testConfig(server.URL + "/feed.xml")
	config.Settings.Render = true
	config.Enrich = feed.ConfigEnrich{
		Enabled:    true,
		Strategies: []feed.ConfigStrategy{{Type: feed.StrategyCSS, Selector: "div.article-content"}},
	}

	runner := NewRunner(fetch.NewRetriever(nil, "test-agent"), browser, nil)
	result, err := runner.Harvest(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}

	if len(browser.urls) != 3 {
		t.Errorf("Expected article pages to go through the browser, got %v", browser.urls)
	}
	if result.Articles[0].Content.String() != "rendered" {
		t.Errorf("Unexpected content: %q", result.Articles[0].Content.String())
	}
}
