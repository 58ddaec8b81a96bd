package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type articleRecord struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Summary   string `json:"summary"`
	Published string `json:"published"`
	Content   string `json:"content,omitempty"`
}

type headlineRecord struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Link           string `json:"link"`
	PubDate        string `json:"pubDate"`
	Content        string `json:"content"`
	ContentSnippet string `json:"contentSnippet"`
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders articles as an indented JSON array. Non-ASCII text and HTML
// characters are written as-is.
func (g *Generator) Run(articles []Article, format OutputFormat) ([]byte, error) {
	var records any
	switch format {
	case FormatHeadline:
		records = g.headlineRecords(articles)
	case FormatArticle, "":
		records = g.articleRecords(articles)
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to encode articles: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteFile stores data as <dir>/<source>_<YYYYMMDD>.json and returns the path.
func (g *Generator) WriteFile(dir, source string, now time.Time, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, OutputFileName(source, now))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	return path, nil
}

func OutputFileName(source string, now time.Time) string {
	return fmt.Sprintf("%s_%s.json", source, now.In(time.Local).Format("20060102"))
}

func (g *Generator) articleRecords(articles []Article) []articleRecord {
	records := make([]articleRecord, 0, len(articles))
	for _, article := range articles {
		records = append(records, articleRecord{
			Title:     article.Title,
			Link:      article.Link,
			Summary:   article.Summary,
			Published: article.Published,
			Content:   article.Content.String(),
		})
	}
	return records
}

func (g *Generator) headlineRecords(articles []Article) []headlineRecord {
	records := make([]headlineRecord, 0, len(articles))
	for i, article := range articles {
		content := article.Description
		if !article.Content.IsSkipped() {
			content = article.Content.String()
		}

		records = append(records, headlineRecord{
			ID:             i + 1,
			Title:          article.Title,
			Link:           article.Link,
			PubDate:        article.Published,
			Content:        content,
			ContentSnippet: StripHTML(article.Summary),
		})
	}
	return records
}
