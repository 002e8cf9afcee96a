package listing

type WindowItem struct {
	Page     int
	Ellipsis bool
	Active   bool
}

// Window returns the page links to render around current. The first and last
// pages are always reachable; gaps are marked with an ellipsis item.
func Window(current, totalPages, maxPages int) []WindowItem {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if totalPages <= 1 {
		return nil
	}

	start, end := 1, totalPages
	if totalPages > maxPages {
		before := maxPages / 2
		after := (maxPages+1)/2 - 1
		switch {
		case current <= before:
			start, end = 1, maxPages
		case current+after >= totalPages:
			start, end = totalPages-maxPages+1, totalPages
		default:
			start, end = current-before, current+after
		}
	}

	items := make([]WindowItem, 0, end-start+5)
	if start > 1 {
		items = append(items, WindowItem{Page: 1, Active: current == 1})
		if start > 2 {
			items = append(items, WindowItem{Ellipsis: true})
		}
	}
	for p := start; p <= end; p++ {
		items = append(items, WindowItem{Page: p, Active: p == current})
	}
	if end < totalPages {
		if end < totalPages-1 {
			items = append(items, WindowItem{Ellipsis: true})
		}
		items = append(items, WindowItem{Page: totalPages, Active: current == totalPages})
	}
	return items
}
