package gormfilter

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/theplant/sortfilter"
)

// OffsetFinder counts and reads the records of a statement matching a query.
// It implements sortfilter.OffsetFinder.
type OffsetFinder[T any] struct {
	db    *gorm.DB
	query *sortfilter.Query
	opts  []Option
}

var _ sortfilter.OffsetFinder[any] = (*OffsetFinder[any])(nil)

func NewOffsetFinder[T any](db *gorm.DB, q *sortfilter.Query, opts ...Option) *OffsetFinder[T] {
	if q == nil {
		q = &sortfilter.Query{}
	}
	return &OffsetFinder[T]{db: db, query: q, opts: opts}
}

func (f *OffsetFinder[T]) Count(ctx context.Context) (int, error) {
	db, basedOnModel, err := f.prepare(ctx)
	if err != nil {
		return 0, err
	}
	if !basedOnModel {
		db = applyModel[T](db)
	}

	var totalCount int64
	if err := db.Scopes(Scope(f.query.Filter, f.opts...)).Count(&totalCount).Error; err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return int(totalCount), nil
}

func (f *OffsetFinder[T]) Find(ctx context.Context, skip, limit int) ([]T, error) {
	nodes := []T{}
	if limit <= 0 {
		return nodes, nil
	}

	db, basedOnModel, err := f.prepare(ctx)
	if err != nil {
		return nil, err
	}
	if !basedOnModel {
		db = applyModel[T](db)
	}
	if skip > 0 {
		db = db.Offset(skip)
	}
	db = db.Limit(limit).Scopes(Apply(f.query, f.opts...))

	if basedOnModel {
		modelType := reflect.TypeOf(db.Statement.Model)
		nodesVal := reflect.New(reflect.SliceOf(modelType)).Elem()
		if err := db.Find(nodesVal.Addr().Interface()).Error; err != nil {
			return nil, errors.Wrap(err, "find")
		}
		nodes = make([]T, nodesVal.Len())
		for i := range nodesVal.Len() {
			node, ok := nodesVal.Index(i).Interface().(T)
			if !ok {
				return nil, errors.Errorf("model %s is not assignable to %T", modelType, node)
			}
			nodes[i] = node
		}
		return nodes, nil
	}

	if err := db.Find(&nodes).Error; err != nil {
		return nil, errors.Wrap(err, "find")
	}
	return nodes, nil
}

func (f *OffsetFinder[T]) prepare(ctx context.Context) (*gorm.DB, bool, error) {
	db := f.db.WithContext(ctx)
	basedOnModel, err := shouldBasedOnModel[T](db)
	return db, basedOnModel, err
}

// If T is not a struct or struct pointer, we need to use db.Statement.Model to find or count
func shouldBasedOnModel[T any](db *gorm.DB) (bool, error) {
	if db.Statement.Model != nil {
		return true, nil
	}
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Struct || (rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.Struct) {
		return false, nil
	}
	return false, errors.New("invalid model type: db.Statement.Model is nil and T is not a struct or struct pointer")
}

func applyModel[T any](db *gorm.DB) *gorm.DB {
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return db.Model(newModel(rt))
}

// newModel returns a pointer to a zero value of the struct type rt.
func newModel(rt reflect.Type) any {
	return reflect.New(rt).Interface()
}
