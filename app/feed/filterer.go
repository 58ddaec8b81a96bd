package feed

import (
	"fmt"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run marks entries rejected by the source filters and returns the entries
// that pass, in order, together with the number rejected.
func (f *Filterer) Run(entries []Entry, config *Config) ([]Entry, int) {
	if len(config.Filters) == 0 {
		return entries, 0
	}

	kept := make([]Entry, 0, len(entries))
	rejected := 0
	for _, entry := range entries {
		entry.IsFiltered, entry.FilterReason = f.applyFilters(entry, config.Filters)
		if entry.IsFiltered {
			rejected++
			continue
		}
		kept = append(kept, entry)
	}

	return kept, rejected
}

func (f *Filterer) applyFilters(entry Entry, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(entry, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(entry Entry, field string) string {
	switch field {
	case "title":
		return entry.Title
	case "summary":
		return entry.Summary
	case "link":
		return entry.Link
	default:
		return ""
	}
}
