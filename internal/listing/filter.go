package listing

import (
	"strings"
)

// MatchesText reports whether query occurs in any field, ignoring case.
func MatchesText(query string, fields ...string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// Selected reports whether a select filter is active.
func Selected(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && value != DefaultFilter
}

// MatchesSelect is true when the filter is inactive or equals value.
func MatchesSelect(filter, value string) bool {
	if !Selected(filter) {
		return true
	}
	return strings.TrimSpace(filter) == strings.TrimSpace(value)
}

type DateRange struct {
	From string
	To   string
}

func (r DateRange) Active() bool {
	return strings.TrimSpace(r.From) != "" || strings.TrimSpace(r.To) != ""
}

// Contains compares the calendar date of value against the inclusive range.
// Bounds and value are normalized to YYYY-MM-DD first.
func (r DateRange) Contains(value string) bool {
	if !r.Active() {
		return true
	}
	day := DatePart(value)
	if day == "" {
		return false
	}
	if from := DatePart(r.From); from != "" && day < from {
		return false
	}
	if to := DatePart(r.To); to != "" && day > to {
		return false
	}
	return true
}

// Summary renders the range the way filter chips show it.
func (r DateRange) Summary() string {
	from, to := strings.TrimSpace(r.From), strings.TrimSpace(r.To)
	switch {
	case from != "" && to != "":
		return from + " a " + to
	case from != "":
		return "Desde " + from
	case to != "":
		return "Hasta " + to
	default:
		return ""
	}
}

// Filter keeps the items for which keep returns true.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Distinct returns the unique non-empty values in first-seen order.
func Distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
