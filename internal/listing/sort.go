package listing

import (
	"sort"
	"strings"
	"time"
)

type KeyKind int

const (
	KeyString KeyKind = iota
	KeyNumber
	KeyDate
)

// SortKey extracts a comparable value from an item.
type SortKey[T any] struct {
	Kind   KeyKind
	String func(T) string
	Number func(T) float64
}

func StringKey[T any](fn func(T) string) SortKey[T] {
	return SortKey[T]{Kind: KeyString, String: fn}
}

func NumberKey[T any](fn func(T) float64) SortKey[T] {
	return SortKey[T]{Kind: KeyNumber, Number: fn}
}

func DateKey[T any](fn func(T) string) SortKey[T] {
	return SortKey[T]{Kind: KeyDate, String: fn}
}

// SortBy returns a stably sorted copy. Unparseable dates sort first ascending.
func SortBy[T any](items []T, key SortKey[T], desc bool) []T {
	out := make([]T, len(items))
	copy(out, items)

	less := func(a, b T) bool {
		switch key.Kind {
		case KeyNumber:
			return key.Number(a) < key.Number(b)
		case KeyDate:
			return dateValue(key.String(a)).Before(dateValue(key.String(b)))
		default:
			return strings.ToLower(key.String(a)) < strings.ToLower(key.String(b))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func dateValue(value string) time.Time {
	parsed, _ := ParseDate(value)
	return parsed
}
