package database

import (
	"time"
)

type Article struct {
	ID            int64
	Source        string // Configuration source name derived from filename
	GUID          string
	Link          string
	Title         string
	Summary       string
	Published     string // YYYY-MM-DD HH:MM:SS or the raw feed value
	Content       string // serialised content, sentinels included
	ContentStatus string // found, not_found, fetch_failed, skipped
	ContentHash   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
