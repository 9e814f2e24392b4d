package memfilter

import (
	"bytes"
	"cmp"
	"database/sql/driver"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/theplant/sortfilter/filter"
	"github.com/theplant/sortfilter/schema"
)

// truth is a three-valued boolean. Comparisons against a null value are
// unknown, like in SQL, and only true records match.
type truth int8

const (
	unknown truth = iota
	falsy
	truthy
)

func truthOf(b bool) truth {
	if b {
		return truthy
	}
	return falsy
}

func (t truth) not() truth {
	switch t {
	case truthy:
		return falsy
	case falsy:
		return truthy
	}
	return unknown
}

type predicate func(rv reflect.Value) truth

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

// lookup reads the normalized value at f, reporting false for null.
func lookup(rv reflect.Value, f filter.Field) (any, bool) {
	v, ok := f.Path.Get(rv)
	if !ok {
		return nil, false
	}
	if v.Type().Implements(valuerType) {
		dv, err := v.Interface().(driver.Valuer).Value()
		if err != nil || dv == nil {
			return nil, false
		}
	}
	return normalize(v, f.Path.Terminal(), f.Round), true
}

func normalize(v reflect.Value, m *schema.Member, round bool) any {
	switch m.Category {
	case schema.CategoryString:
		return v.String()
	case schema.CategoryNumeric:
		d := toDecimal(v.Interface())
		if round {
			d = d.Round(0)
		}
		return d
	case schema.CategoryTime:
		return v.Interface().(time.Time)
	case schema.CategoryDate:
		y, mo, d := time.Time(v.Interface().(datatypes.Date)).Date()
		return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	case schema.CategoryEnum:
		if v.CanInt() {
			return v.Int()
		}
		return int64(v.Uint())
	case schema.CategoryUUID:
		return v.Interface().(uuid.UUID)
	}
	return v.Interface()
}

func normalizeLiteral(lit any, m *schema.Member) any {
	if m.Category == schema.CategoryNumeric {
		return toDecimal(lit)
	}
	return lit
}

func toDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case decimal.Decimal:
		return n
	case int64:
		return decimal.NewFromInt(n)
	case float64:
		return decimal.NewFromFloat(n)
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return decimal.NewFromInt(rv.Int())
	case rv.CanUint():
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0)
	case rv.CanFloat():
		return decimal.NewFromFloat(rv.Float())
	}
	return decimal.Zero
}

// compare orders two normalized values of the same category.
func compare(a, b any) (int, bool) {
	switch a := a.(type) {
	case string:
		b, ok := b.(string)
		return strings.Compare(a, b), ok
	case decimal.Decimal:
		b, ok := b.(decimal.Decimal)
		return a.Cmp(b), ok
	case time.Time:
		b, ok := b.(time.Time)
		return a.Compare(b), ok
	case int64:
		b, ok := b.(int64)
		return cmp.Compare(a, b), ok
	case uuid.UUID:
		b, ok := b.(uuid.UUID)
		return bytes.Compare(a[:], b[:]), ok
	case bool:
		b, ok := b.(bool)
		switch {
		case a == b:
			return 0, ok
		case !a:
			return -1, ok
		default:
			return 1, ok
		}
	}
	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return false
}

func comparison(f filter.Field, lit any, test func(c int) bool) predicate {
	lit = normalizeLiteral(lit, f.Path.Terminal())
	return func(rv reflect.Value) truth {
		v, ok := lookup(rv, f)
		if !ok {
			return unknown
		}
		c, ok := compare(v, lit)
		if !ok {
			return falsy
		}
		return truthOf(test(c))
	}
}

func stringTest(f filter.Field, test func(s string) bool) predicate {
	return func(rv reflect.Value) truth {
		v, ok := lookup(rv, f)
		if !ok {
			return unknown
		}
		s, ok := v.(string)
		if !ok {
			return falsy
		}
		return truthOf(test(s))
	}
}

// build turns a compiled expression into a predicate over record values.
func build(e filter.Expr) predicate {
	switch v := e.(type) {
	case nil:
		return func(reflect.Value) truth { return truthy }
	case filter.Eq:
		lit := normalizeLiteral(v.Value, v.Field.Path.Terminal())
		f := v.Field
		return func(rv reflect.Value) truth {
			val, ok := lookup(rv, f)
			if !ok {
				return unknown
			}
			return truthOf(equal(val, lit))
		}
	case filter.NotEq:
		return build(filter.Eq(v)).not()
	case filter.Gt:
		return comparison(v.Field, v.Value, func(c int) bool { return c > 0 })
	case filter.Gte:
		return comparison(v.Field, v.Value, func(c int) bool { return c >= 0 })
	case filter.Lt:
		return comparison(v.Field, v.Value, func(c int) bool { return c < 0 })
	case filter.Lte:
		return comparison(v.Field, v.Value, func(c int) bool { return c <= 0 })
	case filter.StartsWith:
		return stringTest(v.Field, func(s string) bool { return strings.HasPrefix(s, v.Value) })
	case filter.EndsWith:
		return stringTest(v.Field, func(s string) bool { return strings.HasSuffix(s, v.Value) })
	case filter.Contains:
		return stringTest(v.Field, func(s string) bool { return strings.Contains(s, v.Value) })
	case filter.IsNull:
		f := v.Field
		return func(rv reflect.Value) truth {
			_, ok := lookup(rv, f)
			return truthOf(!ok)
		}
	case filter.Not:
		return build(v.Expr).not()
	case filter.And:
		ps := buildAll(v.Exprs)
		return func(rv reflect.Value) truth {
			result := truthy
			for _, p := range ps {
				switch p(rv) {
				case falsy:
					return falsy
				case unknown:
					result = unknown
				}
			}
			return result
		}
	case filter.Or:
		ps := buildAll(v.Exprs)
		return func(rv reflect.Value) truth {
			result := falsy
			for _, p := range ps {
				switch p(rv) {
				case truthy:
					return truthy
				case unknown:
					result = unknown
				}
			}
			return result
		}
	}
	panic("memfilter: unsupported expression " + filter.String(e))
}

func buildAll(exprs []filter.Expr) []predicate {
	ps := make([]predicate, len(exprs))
	for i, e := range exprs {
		ps[i] = build(e)
	}
	return ps
}

func (p predicate) not() predicate {
	return func(rv reflect.Value) truth {
		return p(rv).not()
	}
}
