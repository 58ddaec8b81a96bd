package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	Language        string
	FeedPublishedAt *time.Time
}

// Entry is one parsed feed item. Fields missing from the feed are empty strings.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	Description string // raw description as published, may contain markup
	Published   string // YYYY-MM-DD HH:MM:SS, the raw feed value, or empty

	ContentHash  string
	IsFiltered   bool
	FilterReason string
}

// Article is an Entry augmented with the enrichment result.
type Article struct {
	Entry
	Content Content
}

// Configuration types

type Kind string

const (
	KindFeed    Kind = "feed"
	KindListing Kind = "listing"
)

type OutputFormat string

const (
	FormatArticle  OutputFormat = "article"
	FormatHeadline OutputFormat = "headline"
)

type StrategyType string

const (
	StrategyCSS         StrategyType = "css"
	StrategyXPath       StrategyType = "xpath"
	StrategyReadability StrategyType = "readability"
)

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Label    string         `yaml:"label"`
	Kind     Kind           `yaml:"kind"`
	Settings ConfigSettings `yaml:"settings"`
	Listing  ConfigListing  `yaml:"listing"`
	Enrich   ConfigEnrich   `yaml:"enrich"`
	Output   ConfigOutput   `yaml:"output"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled          *bool  `yaml:"enabled"`
	MaxItems         int    `yaml:"max_items"`
	Timeout          int    `yaml:"timeout"` // seconds
	UserAgent        string `yaml:"user_agent"`
	Encoding         string `yaml:"encoding"` // charset override for article pages
	Delay            int    `yaml:"delay"`    // milliseconds between article fetches
	Render           bool   `yaml:"render"`   // fetch pages with a headless browser
	StripSummaryHTML bool   `yaml:"strip_summary_html"`
	SkipSeen         bool   `yaml:"skip_seen"`
}

type ConfigListing struct {
	ItemSelector string `yaml:"item_selector"`
}

type ConfigEnrich struct {
	Enabled    bool             `yaml:"enabled"`
	Strategies []ConfigStrategy `yaml:"strategies"`
}

type ConfigStrategy struct {
	Type         StrategyType `yaml:"type"`
	Selector     string       `yaml:"selector"`
	TextFallback bool         `yaml:"text_fallback"`
}

type ConfigOutput struct {
	Format OutputFormat `yaml:"format"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (s ConfigSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

func (s ConfigSettings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(s.Timeout) * time.Second
}

func (s ConfigSettings) GetDelay() time.Duration {
	return time.Duration(s.Delay) * time.Millisecond
}
