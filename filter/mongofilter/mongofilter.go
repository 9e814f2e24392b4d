// Package mongofilter translates filters and sorts into MongoDB queries.
package mongofilter

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/gobeam/stringy"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter"
	"github.com/theplant/sortfilter/schema"
)

// Naming maps a member name to a document field name when the member has no
// bson tag.
type Naming func(member string) string

// LowerCase matches the default struct codec of the mongo driver.
func LowerCase(member string) string {
	return strings.ToLower(member)
}

func SnakeCase(member string) string {
	return stringy.New(member).SnakeCase("?", "").ToLower()
}

type config struct {
	filterOpts []filter.Option
	naming     Naming
}

type Option func(*config)

func WithNaming(naming Naming) Option {
	return func(c *config) {
		c.naming = naming
	}
}

func WithFilterOptions(opts ...filter.Option) Option {
	return func(c *config) {
		c.filterOpts = append(c.filterOpts, opts...)
	}
}

func newConfig(opts ...Option) *config {
	c := &config{naming: LowerCase}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build compiles f against root and returns the equivalent query document.
// An empty document matches everything.
func Build(root reflect.Type, f sortfilter.Filter, opts ...Option) (bson.M, error) {
	c := newConfig(opts...)
	e, err := filter.Compile(root, f, c.filterOpts...)
	if err != nil {
		return nil, err
	}
	return c.expr(e)
}

// BuildFor is Build for documents decoded into T.
func BuildFor[T any](f sortfilter.Filter, opts ...Option) (bson.M, error) {
	return Build(reflect.TypeFor[T](), f, opts...)
}

// Sort returns the sort document for s. MongoDB orders missing and null
// values first ascending.
func Sort(root reflect.Type, s sortfilter.Sort, opts ...Option) bson.D {
	c := newConfig(opts...)
	keys := filter.CompileSort(root, s, c.filterOpts...)
	if len(keys) == 0 {
		return nil
	}
	sd := make(bson.D, 0, len(keys))
	for _, key := range keys {
		order := 1
		if key.Desc {
			order = -1
		}
		sd = append(sd, bson.E{Key: c.fieldName(key.Path), Value: order})
	}
	return sd
}

// FindOptions produces options with the sort of s and the given window.
// Zero skip or limit are left unset.
func FindOptions(root reflect.Type, s sortfilter.Sort, skip, limit int, opts ...Option) *options.FindOptions {
	fo := options.Find()
	if sd := Sort(root, s, opts...); len(sd) > 0 {
		fo.SetSort(sd)
	}
	if skip > 0 {
		fo.SetSkip(int64(skip))
	}
	if limit > 0 {
		fo.SetLimit(int64(limit))
	}
	return fo
}

// fieldName is the dotted document path of p. A bson tag name wins over the
// naming strategy.
func (c *config) fieldName(p *schema.Path) string {
	owner := p.Root
	parts := make([]string, len(p.Segments))
	for i, m := range p.Segments {
		sf := owner.FieldByIndex(m.Index)
		parts[i] = c.naming(sf.Name)
		if tag, ok := sf.Tag.Lookup("bson"); ok {
			if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
				parts[i] = name
			}
		}
		owner = m.Underlying
	}
	return strings.Join(parts, ".")
}

func (c *config) expr(e filter.Expr) (bson.M, error) {
	switch v := e.(type) {
	case nil:
		return bson.M{}, nil
	case filter.And:
		parts, err := c.exprs(v.Exprs)
		if err != nil {
			return nil, err
		}
		return bson.M{"$and": parts}, nil
	case filter.Or:
		parts, err := c.exprs(v.Exprs)
		if err != nil {
			return nil, err
		}
		return bson.M{"$or": parts}, nil
	case filter.Not:
		if n, ok := v.Expr.(filter.IsNull); ok {
			return bson.M{c.fieldName(n.Field.Path): bson.M{"$ne": nil}}, nil
		}
		field, cond, err := c.leaf(v.Expr)
		if errors.Is(err, errNotLeaf) {
			inner, err := c.expr(v.Expr)
			if err != nil {
				return nil, err
			}
			return bson.M{"$nor": []bson.M{inner}}, nil
		}
		if err != nil {
			return nil, err
		}
		return bson.M{field: negate(cond)}, nil
	}

	field, cond, err := c.leaf(e)
	if err != nil {
		return nil, err
	}
	return bson.M{field: cond}, nil
}

func (c *config) exprs(es []filter.Expr) ([]bson.M, error) {
	parts := make([]bson.M, 0, len(es))
	for _, e := range es {
		m, err := c.expr(e)
		if err != nil {
			return nil, err
		}
		parts = append(parts, m)
	}
	return parts, nil
}

var errNotLeaf = errors.New("not a field comparison")

// leaf returns the field and operator document of a single comparison.
func (c *config) leaf(e filter.Expr) (string, bson.M, error) {
	var (
		f    filter.Field
		cond bson.M
	)
	switch v := e.(type) {
	case filter.Eq:
		f, cond = v.Field, compare(v.Field, "$eq", v.Value)
	case filter.NotEq:
		f, cond = v.Field, negate(compare(v.Field, "$eq", v.Value))
	case filter.Gt:
		f, cond = v.Field, compare(v.Field, "$gt", v.Value)
	case filter.Gte:
		f, cond = v.Field, compare(v.Field, "$gte", v.Value)
	case filter.Lt:
		f, cond = v.Field, compare(v.Field, "$lt", v.Value)
	case filter.Lte:
		f, cond = v.Field, compare(v.Field, "$lte", v.Value)
	case filter.StartsWith:
		f, cond = v.Field, regex("^"+regexp.QuoteMeta(v.Value))
	case filter.EndsWith:
		f, cond = v.Field, regex(regexp.QuoteMeta(v.Value)+"$")
	case filter.Contains:
		f, cond = v.Field, regex(regexp.QuoteMeta(v.Value))
	case filter.IsNull:
		f, cond = v.Field, bson.M{"$eq": nil}
	case filter.Not, filter.And, filter.Or:
		return "", nil, errNotLeaf
	default:
		return "", nil, errors.Errorf("unsupported filter expression %T", e)
	}
	return c.fieldName(f.Path), cond, nil
}

// negate inverts cond while still excluding missing and null values, which
// never satisfy a comparison.
func negate(cond bson.M) bson.M {
	return bson.M{"$not": cond, "$ne": nil}
}

// Finder implements sortfilter.OffsetFinder over a collection.
type Finder[T any] struct {
	coll   *mongo.Collection
	filter bson.M
	sort   bson.D
}

var _ sortfilter.OffsetFinder[any] = (*Finder[any])(nil)

// NewFinder compiles q for documents decoded into T.
func NewFinder[T any](coll *mongo.Collection, q *sortfilter.Query, opts ...Option) (*Finder[T], error) {
	if q == nil {
		q = &sortfilter.Query{}
	}
	root := reflect.TypeFor[T]()
	m, err := Build(root, q.Filter, opts...)
	if err != nil {
		return nil, err
	}
	return &Finder[T]{coll: coll, filter: m, sort: Sort(root, q.Sort, opts...)}, nil
}

func (f *Finder[T]) Count(ctx context.Context) (int, error) {
	n, err := f.coll.CountDocuments(ctx, f.filter)
	if err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return int(n), nil
}

func (f *Finder[T]) Find(ctx context.Context, skip, limit int) ([]T, error) {
	nodes := []T{}
	if limit <= 0 {
		return nodes, nil
	}

	fo := options.Find().SetLimit(int64(limit))
	if skip > 0 {
		fo.SetSkip(int64(skip))
	}
	if len(f.sort) > 0 {
		fo.SetSort(f.sort)
	}

	cursor, err := f.coll.Find(ctx, f.filter, fo)
	if err != nil {
		return nil, errors.Wrap(err, "find")
	}
	if err := cursor.All(ctx, &nodes); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return nodes, nil
}
