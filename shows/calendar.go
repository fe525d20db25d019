package shows

import "sort"

// GroupByDate buckets shows by their date string. Undated shows land under
// Unknown.
func GroupByDate(list []Show) map[string][]Show {
	groups := make(map[string][]Show)
	for _, s := range list {
		groups[s.Date] = append(groups[s.Date], s)
	}
	return groups
}

// SortedDates returns group keys in calendar order with Unknown last.
// DateLayout strings sort chronologically as plain strings.
func SortedDates(groups map[string][]Show) []string {
	dates := make([]string, 0, len(groups))
	hasUnknown := false
	for d := range groups {
		if d == Unknown {
			hasUnknown = true
			continue
		}
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if hasUnknown {
		dates = append(dates, Unknown)
	}
	return dates
}
