package session

import (
	"fmt"
	"time"
)

// TimeFilter is the time-range selection a run was requested with. Value is
// the machine form ("last30", "months-3", "year-2025"), Label the human form,
// and Year is set for year-scoped filters.
type TimeFilter struct {
	Value string `json:"value,omitempty"`
	Label string `json:"label,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// IsZero reports whether no filter was selected.
func (f TimeFilter) IsZero() bool { return f.Value == "" && f.Label == "" && f.Year == 0 }

// Describe renders the filter for status messages, preferring the label over
// a bare year.
func (f TimeFilter) Describe() string {
	switch {
	case f.Label != "":
		return f.Label
	case f.Year != 0:
		return fmt.Sprintf("%d", f.Year)
	default:
		return ""
	}
}

// FallbackFilters builds the filter options offered when the collector cannot
// be queried: the two rolling ranges plus the given number of recent years.
func FallbackFilters(now time.Time, yearCount int) []TimeFilter {
	filters := []TimeFilter{
		{Value: "last30", Label: "last 30 days"},
		{Value: "months-3", Label: "past 3 months"},
	}
	current := now.Year()
	for i := 0; i < yearCount; i++ {
		year := current - i
		filters = append(filters, TimeFilter{
			Value: fmt.Sprintf("year-%d", year),
			Label: fmt.Sprintf("%d", year),
			Year:  year,
		})
	}
	return filters
}
