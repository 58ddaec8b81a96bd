package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ListingParser builds entries from an HTML page of article links, such as
// a ranking page that has no feed.
type ListingParser struct{}

func NewListingParser() *ListingParser {
	return &ListingParser{}
}

func (p *ListingParser) Run(data []byte, pageURL string, selector string, maxItems int) (*Metadata, []Entry, error) {
	if selector == "" {
		return nil, nil, fmt.Errorf("listing item selector is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	base, _ := url.Parse(pageURL)

	metadata := &Metadata{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Link:  pageURL,
	}

	var entries []Entry
	seen := make(map[string]bool)

	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if maxItems > 0 && len(entries) >= maxItems {
			return false
		}

		href, exists := s.Attr("href")
		if !exists {
			return true
		}

		link := resolveLink(base, href)
		if link == "" || seen[link] {
			return true
		}
		seen[link] = true

		entry := Entry{
			GUID:  link,
			Title: strings.TrimSpace(s.Text()),
			Link:  link,
		}
		entry.ContentHash = hashEntry(entry)
		entries = append(entries, entry)
		return true
	})

	return metadata, entries, nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	parsed.Fragment = ""

	if parsed.IsAbs() || base == nil {
		return parsed.String()
	}

	return base.ResolveReference(parsed).String()
}
