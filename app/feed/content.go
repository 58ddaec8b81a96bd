package feed

import (
	"fmt"
)

const (
	NotFoundSentinel  = "(not found)"
	FetchFailedPrefix = "(fetch failed: "
)

type ContentStatus int

const (
	ContentSkipped ContentStatus = iota
	ContentFound
	ContentNotFound
	ContentFetchFailed
)

func (s ContentStatus) String() string {
	switch s {
	case ContentFound:
		return "found"
	case ContentNotFound:
		return "not_found"
	case ContentFetchFailed:
		return "fetch_failed"
	default:
		return "skipped"
	}
}

// Content is the outcome of enriching one entry. It is turned into the
// sentinel wire strings only by String.
type Content struct {
	Status ContentStatus
	Text   string
	Reason string
}

func FoundContent(text string) Content {
	return Content{Status: ContentFound, Text: text}
}

func NotFoundContent() Content {
	return Content{Status: ContentNotFound}
}

func FetchFailedContent(err error) Content {
	return Content{Status: ContentFetchFailed, Reason: err.Error()}
}

func (c Content) String() string {
	switch c.Status {
	case ContentFound:
		return c.Text
	case ContentNotFound:
		return NotFoundSentinel
	case ContentFetchFailed:
		return fmt.Sprintf("%s%s)", FetchFailedPrefix, c.Reason)
	default:
		return ""
	}
}

func (c Content) IsSkipped() bool {
	return c.Status == ContentSkipped
}
