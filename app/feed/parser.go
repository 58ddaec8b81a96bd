package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// DateLayout is the canonical published timestamp layout.
const DateLayout = "2006-01-02 15:04:05"

var fallbackDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses feed data and returns at most maxItems entries in feed order.
// maxItems <= 0 disables the ceiling.
func (p *Parser) Run(data []byte, maxItems int) (*Metadata, []Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}

	if feed.PublishedParsed != nil {
		metadata.FeedPublishedAt = feed.PublishedParsed
	}

	items := feed.Items
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entry := p.normalizeItem(item)
		entry.ContentHash = p.generateContentHash(entry)
		entries = append(entries, entry)
	}

	return metadata, entries, nil
}

// StripHTML reduces a markup fragment to its trimmed text.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}

// NormalizeDate renders a parseable timestamp in DateLayout. Input that
// cannot be parsed is returned unchanged.
func NormalizeDate(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}

	if isCanonicalDate(value) {
		return value
	}

	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return formatTimestamp(t)
		}
	}

	return raw
}

func isCanonicalDate(value string) bool {
	_, err := time.ParseInLocation(DateLayout, value, time.Local)
	return err == nil
}

func formatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(DateLayout)
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Summary:     cmp.Or(item.Description, item.Content, p.mediaDescription(item)),
		Published:   p.publishedDate(item),
	}

	return entry
}

func (p *Parser) publishedDate(item *gofeed.Item) string {
	if raw := strings.TrimSpace(item.Published); isCanonicalDate(raw) {
		return raw
	}

	if item.PublishedParsed != nil {
		return formatTimestamp(*item.PublishedParsed)
	}

	if item.UpdatedParsed != nil {
		return formatTimestamp(*item.UpdatedParsed)
	}

	return NormalizeDate(item.Published)
}

// mediaDescription returns the Media RSS group description (YouTube feeds).
func (p *Parser) mediaDescription(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}

	for _, group := range media["group"] {
		for _, description := range group.Children["description"] {
			if description.Value != "" {
				return description.Value
			}
		}
	}

	for _, description := range media["description"] {
		if description.Value != "" {
			return description.Value
		}
	}

	return ""
}

func (p *Parser) generateContentHash(entry Entry) string {
	return hashEntry(entry)
}

// hashEntry keys an entry on title and link only, so summary edits do not
// make a known entry look new.
func hashEntry(entry Entry) string {
	content := fmt.Sprintf("%s|%s",
		entry.Title,
		entry.Link)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
