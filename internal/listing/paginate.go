package listing

const (
	DefaultPerPage  = 10
	DefaultMaxPages = 3
	// DefaultFilter is the select value meaning "no filter".
	DefaultFilter = "todos"
)

type Page[T any] struct {
	Items      []T
	Current    int
	TotalPages int
	TotalItems int
	PerPage    int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

// Paginate slices items for the requested page. Pages past the end yield no
// items but keep the counters so the caller can still render navigation.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}

	total := len(items)
	totalPages := (total + perPage - 1) / perPage

	// Compare pages before multiplying so huge page numbers cannot overflow.
	start := total
	if page <= totalPages {
		start = (page - 1) * perPage
	}
	end := start + perPage
	if end > total {
		end = total
	}

	out := make([]T, end-start)
	copy(out, items[start:end])

	return Page[T]{
		Items:      out,
		Current:    page,
		TotalPages: totalPages,
		TotalItems: total,
		PerPage:    perPage,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		PrevPage:   max(1, page-1),
		NextPage:   page + 1,
	}
}

// ClampTarget resolves a navigation request. Targets outside 1..total, or equal
// to the current page, are ignored.
func ClampTarget(target, current, total int) (int, bool) {
	if target < 1 || target > total || target == current {
		return current, false
	}
	return target, true
}

func Reverse[T any](items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out
}
