// Package memfilter applies filters and sorts to in-memory collections.
package memfilter

import (
	"context"
	"iter"
	"reflect"
	"slices"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter"
)

// Predicate returns a match function for a compiled expression. A nil
// expression matches every record.
func Predicate[T any](e filter.Expr) func(item T) bool {
	p := build(e)
	return func(item T) bool {
		return p(reflect.ValueOf(item)) == truthy
	}
}

// Where lazily yields the items of seq matching f.
func Where[T any](seq iter.Seq[T], f sortfilter.Filter, opts ...filter.Option) (iter.Seq[T], error) {
	e, err := filter.CompileFor[T](f, opts...)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return seq, nil
	}
	match := Predicate[T](e)
	return func(yield func(T) bool) {
		for item := range seq {
			if match(item) && !yield(item) {
				return
			}
		}
	}, nil
}

// Filter returns the items matching f in their original order.
func Filter[T any](items []T, f sortfilter.Filter, opts ...filter.Option) ([]T, error) {
	seq, err := Where(slices.Values(items), f, opts...)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// Order returns a sorted copy of items. Nulls come first in ascending order
// and equal records keep their relative order.
func Order[T any](items []T, keys []filter.SortKey) []T {
	out := slices.Clone(items)
	if len(keys) == 0 || len(out) < 2 {
		return out
	}

	type row struct {
		item   T
		values []any
		nulls  []bool
	}
	rows := make([]row, len(out))
	for i, item := range out {
		rv := reflect.ValueOf(item)
		r := row{item: item, values: make([]any, len(keys)), nulls: make([]bool, len(keys))}
		for k, key := range keys {
			v, ok := lookup(rv, filter.Field{Path: key.Path})
			r.values[k], r.nulls[k] = v, !ok
		}
		rows[i] = r
	}

	slices.SortStableFunc(rows, func(a, b row) int {
		for k, key := range keys {
			c := compareNullable(a.values[k], a.nulls[k], b.values[k], b.nulls[k])
			if key.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	for i := range rows {
		out[i] = rows[i].item
	}
	return out
}

func compareNullable(a any, aNull bool, b any, bNull bool) int {
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return -1
	case bNull:
		return 1
	}
	c, _ := compare(a, b)
	return c
}

// OrderBy sorts a copy of items by s, falling back to the identity member.
func OrderBy[T any](items []T, s sortfilter.Sort, opts ...filter.Option) []T {
	return Order(items, filter.CompileSortFor[T](s, opts...))
}

// Apply filters then sorts items according to q.
func Apply[T any](items []T, q *sortfilter.Query, opts ...filter.Option) ([]T, error) {
	if q == nil {
		q = &sortfilter.Query{}
	}
	filtered, err := Filter(items, q.Filter, opts...)
	if err != nil {
		return nil, err
	}
	return OrderBy(filtered, q.Sort, opts...), nil
}

// Finder is an offset finder over a filtered and sorted slice.
type Finder[T any] struct {
	items []T
}

var _ sortfilter.OffsetFinder[any] = (*Finder[any])(nil)

// NewFinder applies q to items and returns a finder over the result.
func NewFinder[T any](items []T, q *sortfilter.Query, opts ...filter.Option) (*Finder[T], error) {
	applied, err := Apply(items, q, opts...)
	if err != nil {
		return nil, err
	}
	return &Finder[T]{items: applied}, nil
}

func (f *Finder[T]) Count(_ context.Context) (int, error) {
	return len(f.items), nil
}

func (f *Finder[T]) Find(_ context.Context, skip, limit int) ([]T, error) {
	if skip >= len(f.items) || limit <= 0 {
		return []T{}, nil
	}
	skip = max(skip, 0)
	return slices.Clone(f.items[skip:min(skip+limit, len(f.items))]), nil
}
