package sortfilter

import (
	"context"
)

// EnsurePageSize replaces a page size that is not set, negative, or above
// maxSize with defaultSize.
func EnsurePageSize[T any](defaultSize, maxSize int) func(next Paginator[T]) Paginator[T] {
	if defaultSize <= 0 {
		panic("defaultSize must be greater than 0")
	}
	if maxSize < defaultSize {
		panic("maxSize must be greater than or equal to defaultSize")
	}
	return func(next Paginator[T]) Paginator[T] {
		return PaginatorFunc[T](func(ctx context.Context, req *PageRequest) (*PagedData[T], error) {
			r := PageRequest{}
			if req != nil {
				r = *req
			}
			if r.PageSize <= 0 || r.PageSize > maxSize {
				r.PageSize = defaultSize
			}
			return next.Paginate(ctx, &r)
		})
	}
}

// EnsurePageNumber moves a missing or non-positive page number to the first page.
func EnsurePageNumber[T any]() func(next Paginator[T]) Paginator[T] {
	return func(next Paginator[T]) Paginator[T] {
		return PaginatorFunc[T](func(ctx context.Context, req *PageRequest) (*PagedData[T], error) {
			r := PageRequest{}
			if req != nil {
				r = *req
			}
			if r.PageNumber <= 0 {
				r.PageNumber = DefaultPageNumber
			}
			return next.Paginate(ctx, &r)
		})
	}
}
