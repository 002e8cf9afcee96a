package listing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestPaginate(t *testing.T) {
	page := Paginate(numbers(25), 2, 10)
	assert.Equal(t, []int{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, page.Items)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 25, page.TotalItems)
	assert.True(t, page.HasPrev)
	assert.True(t, page.HasNext)
	assert.Equal(t, 1, page.PrevPage)
	assert.Equal(t, 3, page.NextPage)

	last := Paginate(numbers(25), 3, 10)
	assert.Equal(t, []int{21, 22, 23, 24, 25}, last.Items)
	assert.False(t, last.HasNext)
}

func TestPaginateDefaultsAndBounds(t *testing.T) {
	page := Paginate(numbers(12), 0, 0)
	assert.Equal(t, 1, page.Current)
	assert.Equal(t, DefaultPerPage, page.PerPage)
	assert.Len(t, page.Items, 10)

	beyond := Paginate(numbers(12), 9, 10)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 2, beyond.TotalPages)
	assert.False(t, beyond.HasNext)

	empty := Paginate([]int{}, 1, 10)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasPrev)
	assert.False(t, empty.HasNext)
}

func TestPaginateHugePageIsEmpty(t *testing.T) {
	for _, page := range []int{math.MaxInt/10 + 2, math.MaxInt} {
		var p Page[int]
		require.NotPanics(t, func() { p = Paginate([]int{1, 2, 3}, page, 10) })
		assert.Empty(t, p.Items)
		assert.Equal(t, 1, p.TotalPages)
		assert.Equal(t, page, p.Current)
	}
}

func TestPaginateDoesNotAliasInput(t *testing.T) {
	in := numbers(5)
	page := Paginate(in, 1, 5)
	page.Items[0] = 99
	assert.Equal(t, 1, in[0])
}

func pages(items []WindowItem) []int {
	out := make([]int, 0, len(items))
	for _, item := range items {
		if item.Ellipsis {
			out = append(out, 0)
			continue
		}
		out = append(out, item.Page)
	}
	return out
}

func TestWindow(t *testing.T) {
	cases := []struct {
		name    string
		current int
		total   int
		want    []int
	}{
		{name: "single page hidden", current: 1, total: 1, want: []int{}},
		{name: "fits", current: 2, total: 3, want: []int{1, 2, 3}},
		{name: "start", current: 1, total: 10, want: []int{1, 2, 3, 0, 10}},
		{name: "middle", current: 5, total: 10, want: []int{1, 0, 4, 5, 6, 0, 10}},
		{name: "near start", current: 3, total: 10, want: []int{1, 2, 3, 4, 0, 10}},
		{name: "end", current: 10, total: 10, want: []int{1, 0, 8, 9, 10}},
		{name: "near end", current: 8, total: 10, want: []int{1, 0, 7, 8, 9, 10}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pages(Window(tc.current, tc.total, 3)))
		})
	}
}

func TestWindowMarksActive(t *testing.T) {
	items := Window(5, 10, 3)
	var active []int
	for _, item := range items {
		if item.Active {
			active = append(active, item.Page)
		}
	}
	assert.Equal(t, []int{5}, active)
}

func TestClampTarget(t *testing.T) {
	got, ok := ClampTarget(3, 1, 5)
	assert.True(t, ok)
	assert.Equal(t, 3, got)

	for _, target := range []int{0, 6, 1} {
		got, ok := ClampTarget(target, 1, 5)
		assert.False(t, ok)
		assert.Equal(t, 1, got)
	}
}

func TestMatchesText(t *testing.T) {
	assert.True(t, MatchesText("", "anything"))
	assert.True(t, MatchesText("pér", "Juan", "PÉREZ"))
	assert.False(t, MatchesText("lopez", "Juan", "Pérez"))
}

func TestMatchesSelect(t *testing.T) {
	assert.True(t, MatchesSelect("todos", "x"))
	assert.True(t, MatchesSelect("", "x"))
	assert.True(t, MatchesSelect("x", "x"))
	assert.False(t, MatchesSelect("y", "x"))
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{From: "2024-03-01", To: "2024-03-31"}
	assert.True(t, r.Contains("2024-03-01T23:59:00Z"))
	assert.True(t, r.Contains("2024-03-31"))
	assert.True(t, r.Contains("15/03/2024"))
	assert.False(t, r.Contains("2024-04-01"))
	assert.False(t, r.Contains(""))

	assert.True(t, DateRange{}.Contains(""))
	assert.True(t, DateRange{From: "2024-03-10"}.Contains("2024-12-01"))
	assert.False(t, DateRange{To: "2024-03-10"}.Contains("2024-03-11"))
}

func TestDateRangeSummary(t *testing.T) {
	assert.Equal(t, "2024-01-01 a 2024-01-31", DateRange{From: "2024-01-01", To: "2024-01-31"}.Summary())
	assert.Equal(t, "Desde 2024-01-01", DateRange{From: "2024-01-01"}.Summary())
	assert.Equal(t, "Hasta 2024-01-31", DateRange{To: "2024-01-31"}.Summary())
	assert.Equal(t, "", DateRange{}.Summary())
}

func TestParseDateFormats(t *testing.T) {
	for _, value := range []string{
		"2025-10-08",
		"2025-10-8",
		"8-10-2025",
		"08/10/2025",
		"2025-10-08T14:30:00Z",
		"2025-10-08T14:30:00.000Z",
		"2025-10-08 14:30:00",
	} {
		parsed, ok := ParseDate(value)
		require.True(t, ok, value)
		assert.Equal(t, "2025-10-08", parsed.Format("2006-01-02"), value)
	}

	_, ok := ParseDate("not a date")
	assert.False(t, ok)
	_, ok = ParseDate("2024")
	assert.False(t, ok)
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "08/10/2025", FormatDate("2025-10-08T03:00:00Z"))
	assert.Equal(t, "08/10/2025", FormatDate("8/10/2025"))
	assert.Equal(t, "-", FormatDate(""))
	assert.Equal(t, "-", FormatDate("garbage"))
	assert.Equal(t, "08/10/2025 14:30", FormatDateTime("2025-10-08T14:30:00Z"))
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 30, DaysRemaining("2024-03-31", now, 30))
	assert.Equal(t, 20, DaysRemaining("2024-03-21", now, 30))
	assert.Equal(t, 0, DaysRemaining("2024-01-01", now, 30))
	assert.Equal(t, 0, DaysRemaining("", now, 30))

	assert.True(t, IsRecent("2024-03-10", now))
	assert.False(t, IsRecent("2024-03-05", now))
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, "2024-03-31", AddDays("2024-03-01T10:00:00Z", 30))
	assert.Equal(t, "", AddDays("", 30))
}

type row struct {
	name  string
	total float64
	date  string
}

func TestSortBy(t *testing.T) {
	rows := []row{
		{name: "beta", total: 2, date: "2024-02-01"},
		{name: "Alpha", total: 3, date: "2024-03-01"},
		{name: "gamma", total: 1, date: "2024-01-01"},
	}

	byName := SortBy(rows, StringKey(func(r row) string { return r.name }), false)
	assert.Equal(t, "Alpha", byName[0].name)

	byTotal := SortBy(rows, NumberKey(func(r row) float64 { return r.total }), true)
	assert.Equal(t, 3.0, byTotal[0].total)

	byDate := SortBy(rows, DateKey(func(r row) string { return r.date }), false)
	assert.Equal(t, "gamma", byDate[0].name)
	assert.Equal(t, "beta", rows[0].name)
}

func TestReverseAndDistinct(t *testing.T) {
	assert.Equal(t, []int{3, 2, 1}, Reverse([]int{1, 2, 3}))
	assert.Equal(t, []string{"a", "b"}, Distinct([]string{"a", " ", "b", "a"}))
}
