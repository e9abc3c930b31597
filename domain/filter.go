package domain

import "strings"

// StatusAll disables status filtering.
const StatusAll = "all"

// FilterState drives list queries on the violations, payments and disputes pages.
type FilterState struct {
	Search string `json:"search"`
	Status string `json:"status"`
}

// HasStatus reports whether a concrete status filter is set.
func (f FilterState) HasStatus() bool {
	s := strings.TrimSpace(f.Status)
	return s != "" && !strings.EqualFold(s, StatusAll)
}

// Normalized returns the filter with surrounding whitespace removed and an
// empty status replaced by StatusAll.
func (f FilterState) Normalized() FilterState {
	out := FilterState{Search: strings.TrimSpace(f.Search), Status: strings.TrimSpace(f.Status)}
	if out.Status == "" {
		out.Status = StatusAll
	}
	return out
}
