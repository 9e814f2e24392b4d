package sortfilter

import (
	"context"

	"github.com/pkg/errors"

	"github.com/theplant/sortfilter/internal/hook"
)

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 20
	MaxPageSize       = 500
)

type PageRequest struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

type PageInfo struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

type PagedData[T any] struct {
	PageInfo *PageInfo `json:"pageInfo"`
	Data     []T       `json:"data"`
}

// OffsetFinder is a filtered and ordered source that can be counted and read
// by offset. Implementations must have the filter and the ordering attached
// before Count is called.
type OffsetFinder[T any] interface {
	Count(ctx context.Context) (int, error)
	Find(ctx context.Context, skip, limit int) ([]T, error)
}

type Paginator[T any] interface {
	Paginate(ctx context.Context, req *PageRequest) (*PagedData[T], error)
}

type PaginatorFunc[T any] func(ctx context.Context, req *PageRequest) (*PagedData[T], error)

func (f PaginatorFunc[T]) Paginate(ctx context.Context, req *PageRequest) (*PagedData[T], error) {
	return f(ctx, req)
}

// New creates a page-number paginator over finder. The total is counted first,
// a page number beyond the last page is moved to the last page, then the page
// is fetched.
func New[T any](finder OffsetFinder[T], hooks ...func(next Paginator[T]) Paginator[T]) Paginator[T] {
	if finder == nil {
		panic("finder must be set")
	}

	var p Paginator[T] = PaginatorFunc[T](func(ctx context.Context, req *PageRequest) (*PagedData[T], error) {
		return paginate(ctx, req, finder)
	})

	hook := hook.Chain(hooks...)
	if hook != nil {
		p = hook(p)
	}
	return p
}

func paginate[T any](ctx context.Context, req *PageRequest, finder OffsetFinder[T]) (*PagedData[T], error) {
	if req == nil {
		req = &PageRequest{}
	}

	info := &PageInfo{
		PageNumber: req.PageNumber,
		PageSize:   req.PageSize,
	}
	if info.PageNumber <= 0 {
		info.PageNumber = DefaultPageNumber
	}
	if info.PageSize <= 0 {
		info.PageSize = DefaultPageSize
	}

	total, err := finder.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count")
	}
	info.TotalItems = total
	info.TotalPages = (total + info.PageSize - 1) / info.PageSize

	if info.TotalPages > 0 && info.PageNumber > info.TotalPages {
		info.PageNumber = info.TotalPages
	}

	if total == 0 {
		return &PagedData[T]{PageInfo: info, Data: []T{}}, nil
	}

	data, err := finder.Find(ctx, (info.PageNumber-1)*info.PageSize, info.PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "find")
	}
	if data == nil {
		data = []T{}
	}
	return &PagedData[T]{PageInfo: info, Data: data}, nil
}
