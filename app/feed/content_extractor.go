package feed

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var ErrContentNotFound = errors.New("no strategy matched the page")

// Document is a parsed article page shared by all strategies.
type Document struct {
	URL  *url.URL
	Raw  []byte
	Root *html.Node
}

func (d *Document) Query() *goquery.Document {
	return goquery.NewDocumentFromNode(d.Root)
}

// Strategy extracts article text from a page. An empty result means no match.
type Strategy interface {
	Name() string
	Extract(doc *Document) string
}

type CSSStrategy struct {
	Selector     string
	TextFallback bool
}

func (s CSSStrategy) Name() string {
	return "css:" + s.Selector
}

// Extract uses only the first element matching the selector.
func (s CSSStrategy) Extract(doc *Document) string {
	container := doc.Query().Find(s.Selector).First()
	if container.Length() == 0 {
		return ""
	}

	var paragraphs []string
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n")
	}
	if s.TextFallback {
		return strings.TrimSpace(container.Text())
	}
	return ""
}

type XPathStrategy struct {
	Expr         string
	TextFallback bool
}

func (s XPathStrategy) Name() string {
	return "xpath:" + s.Expr
}

func (s XPathStrategy) Extract(doc *Document) string {
	container, err := htmlquery.Query(doc.Root, s.Expr)
	if err != nil {
		slog.Warn("Invalid XPath expression", "expr", s.Expr, "error", err)
		return ""
	}
	if container == nil {
		return ""
	}

	nodes, err := htmlquery.QueryAll(container, ".//p")
	if err != nil {
		return ""
	}

	var paragraphs []string
	for _, node := range nodes {
		if text := strings.TrimSpace(htmlquery.InnerText(node)); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n")
	}
	if s.TextFallback {
		return strings.TrimSpace(htmlquery.InnerText(container))
	}
	return ""
}

// ReadabilityStrategy locates the main content with the readability
// algorithm and returns its paragraphs as plain text.
type ReadabilityStrategy struct{}

func (s ReadabilityStrategy) Name() string {
	return "readability"
}

func (s ReadabilityStrategy) Extract(doc *Document) string {
	article, err := readability.FromReader(bytes.NewReader(doc.Raw), doc.URL)
	if err != nil {
		slog.Debug("Readability extraction failed", "error", err)
		return ""
	}

	if article.Content == "" {
		return ""
	}

	return CSSStrategy{Selector: "body", TextFallback: true}.Extract(parseFragment(article.Content))
}

func parseFragment(fragment string) *Document {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		root = &html.Node{Type: html.DocumentNode}
	}
	return &Document{Raw: []byte(fragment), Root: root}
}

type ContentExtractor struct {
	strategies []Strategy
}

func NewContentExtractor(strategies ...Strategy) *ContentExtractor {
	return &ContentExtractor{strategies: strategies}
}

// NewContentExtractorFromConfig builds the strategy chain of a source.
func NewContentExtractorFromConfig(configs []ConfigStrategy) (*ContentExtractor, error) {
	strategies := make([]Strategy, 0, len(configs))
	for i, c := range configs {
		switch c.Type {
		case StrategyCSS:
			strategies = append(strategies, CSSStrategy{Selector: c.Selector, TextFallback: c.TextFallback})
		case StrategyXPath:
			strategies = append(strategies, XPathStrategy{Expr: c.Selector, TextFallback: c.TextFallback})
		case StrategyReadability:
			strategies = append(strategies, ReadabilityStrategy{})
		default:
			return nil, fmt.Errorf("invalid strategy type at index %d: %s", i, c.Type)
		}
	}
	return NewContentExtractor(strategies...), nil
}

// StrategyNames lists the strategies in the order they are tried.
func (e *ContentExtractor) StrategyNames() []string {
	names := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Run returns the text of the first strategy with a non-empty result, or
// ErrContentNotFound.
func (e *ContentExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc := &Document{Raw: data, Root: root}
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			doc.URL = u
		}
	}

	for _, strategy := range e.strategies {
		text := strategy.Extract(doc)
		if text == "" {
			continue
		}

		slog.Debug("Content extracted successfully",
			"url", pageURL,
			"strategy", strategy.Name(),
			"content_length", len(text))

		return text, nil
	}

	return "", ErrContentNotFound
}
