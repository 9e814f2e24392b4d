package filter

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/schema"
)

// Compile builds a single predicate over records of type root.
//
// Top-level nodes are folded left to right, each joined to the running result
// by its own logical operator. Nodes that cannot be applied, such as unknown
// columns or unparseable numbers and dates, are dropped. A nil Expr means no
// filter.
func Compile(root reflect.Type, f sortfilter.Filter, opts ...Option) (Expr, error) {
	o := NewOptions(opts...)
	if err := CheckComplexity(f, o.Limits); err != nil {
		return nil, err
	}
	c := &compiler{root: root, opts: o}

	var result Expr
	for _, node := range f {
		if node == nil {
			continue
		}
		e, err := c.flatten(node, "")
		if err != nil {
			return nil, err
		}
		result = join(node.Lop, result, e)
	}
	return result, nil
}

// CompileFor is Compile for records of type T.
func CompileFor[T any](f sortfilter.Filter, opts ...Option) (Expr, error) {
	return Compile(reflect.TypeFor[T](), f, opts...)
}

type compiler struct {
	root reflect.Type
	opts *Options
}

// flatten ANDs the node's own term with the fold of its children.
func (c *compiler) flatten(node *sortfilter.FilterNode, inherited string) (Expr, error) {
	column := effectiveColumn(node, inherited)
	own, err := c.compileNode(node, column)
	if err != nil {
		return nil, err
	}
	children, err := c.foldChildren(node.Children, column)
	if err != nil {
		return nil, err
	}
	return AndOf(own, children), nil
}

// foldChildren combines each child's term with the running result using the
// child's logical operator, the first term seeding the result. A child's own
// children are ANDed onto the running result.
func (c *compiler) foldChildren(children sortfilter.Filter, column string) (Expr, error) {
	var result Expr
	for _, child := range children {
		if child == nil {
			continue
		}
		childColumn := effectiveColumn(child, column)
		e, err := c.compileNode(child, childColumn)
		if err != nil {
			return nil, err
		}
		result = join(child.Lop, result, e)

		if len(child.Children) > 0 {
			sub, err := c.foldChildren(child.Children, childColumn)
			if err != nil {
				return nil, err
			}
			result = AndOf(result, sub)
		}
	}
	return result, nil
}

func effectiveColumn(node *sortfilter.FilterNode, inherited string) string {
	if strings.TrimSpace(node.Column) == "" {
		return inherited
	}
	return node.Column
}

func join(lop sortfilter.LogicalOperator, acc, e Expr) Expr {
	if acc == nil || e == nil {
		return AndOf(acc, e)
	}
	if lop == sortfilter.LopOr {
		return OrOf(acc, e)
	}
	return AndOf(acc, e)
}

func (c *compiler) skip(node *sortfilter.FilterNode, column string, reason string) (Expr, error) {
	c.opts.Logger.Debug("filter node skipped",
		zap.String("column", column),
		zap.String("value", node.Value),
		zap.Stringer("op", node.Op),
		zap.String("reason", reason),
	)
	return nil, nil
}

// compileNode builds the term of a single node, or nil when the node does not
// contribute.
func (c *compiler) compileNode(node *sortfilter.FilterNode, column string) (Expr, error) {
	if strings.TrimSpace(node.Value) == "" && !node.IsValueNull {
		return nil, nil
	}
	if strings.TrimSpace(column) == "" {
		return nil, errors.Wrapf(ErrEmptyColumn, "value %q", node.Value)
	}

	path, ok := c.opts.Registry.Resolve(c.root, column)
	if !ok {
		return c.skip(node, column, "unresolved column")
	}
	m := path.Terminal()
	field := Field{Path: path}

	if node.IsValueNull {
		if node.Op == sortfilter.OpNotEq {
			return Not{Expr: IsNull{Field: field}}, nil
		}
		return IsNull{Field: field}, nil
	}

	switch m.Category {
	case schema.CategoryString:
		return stringExpr(field, node.Op, node.Value), nil

	case schema.CategoryNumeric:
		round := !c.opts.Strict
		value, ok := parseNumber(node.Value, m, round)
		if !ok {
			if c.opts.Strict {
				return nil, errors.Wrapf(ErrInvalidValue, "%q is not a number for %s", node.Value, path)
			}
			return c.skip(node, column, "not a number")
		}
		field.Round = m.Floating && round
		return compareExpr(field, node.Op, value), nil

	case schema.CategoryTime, schema.CategoryDate:
		date, ok := parseDate(node.Value)
		if !ok {
			if c.opts.Strict {
				return nil, errors.Wrapf(ErrInvalidValue, "%q is not a date for %s", node.Value, path)
			}
			return c.skip(node, column, "not a date")
		}
		if m.Category == schema.CategoryDate {
			return compareExpr(field, node.Op, date), nil
		}
		loc, err := c.location(node)
		if err != nil {
			return nil, err
		}
		return dayRangeExpr(field, node.Op, date, loc), nil

	case schema.CategoryEnum:
		v, ok := m.Enum.Parse(node.Value)
		if !ok {
			if c.opts.Strict {
				return nil, errors.Wrapf(ErrInvalidValue, "%q is not a member of %s", node.Value, m.Underlying)
			}
			v = -1
		}
		return equalityExpr(field, node.Op, v), nil

	case schema.CategoryUUID:
		id, ok := parseUUID(node.Value)
		if !ok && c.opts.Strict {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not a UUID for %s", node.Value, path)
		}
		return equalityExpr(field, node.Op, id), nil

	case schema.CategoryRecord:
		return c.skip(node, column, "record is not comparable")
	}

	value, err := convert(node.Value, m.Underlying)
	if err != nil {
		return nil, errors.WithMessagef(err, "column %s", path)
	}
	return equalityExpr(field, node.Op, value), nil
}

func (c *compiler) location(node *sortfilter.FilterNode) (*time.Location, error) {
	name := strings.TrimSpace(node.ClientTimeZone)
	if name == "" {
		return c.opts.DefaultLocation, nil
	}
	loc, err := loadLocation(name)
	if err != nil {
		if c.opts.Strict {
			return nil, errors.Wrapf(ErrInvalidValue, "%v", err)
		}
		c.opts.Logger.Debug("unknown time zone, using default", zap.String("zone", name), zap.Error(err))
		return c.opts.DefaultLocation, nil
	}
	return loc, nil
}

func stringExpr(field Field, op sortfilter.ComparisonOperator, value string) Expr {
	switch op {
	case sortfilter.OpNotEq:
		return NotEq{Field: field, Value: value}
	case sortfilter.OpStW:
		return StartsWith{Field: field, Value: value}
	case sortfilter.OpNotStW:
		return Not{Expr: StartsWith{Field: field, Value: value}}
	case sortfilter.OpEndW:
		return EndsWith{Field: field, Value: value}
	case sortfilter.OpNotEndW:
		return Not{Expr: EndsWith{Field: field, Value: value}}
	case sortfilter.OpCt:
		return Contains{Field: field, Value: value}
	case sortfilter.OpNotCt:
		return Not{Expr: Contains{Field: field, Value: value}}
	}
	return Eq{Field: field, Value: value}
}

func compareExpr(field Field, op sortfilter.ComparisonOperator, value any) Expr {
	switch op {
	case sortfilter.OpNotEq:
		return NotEq{Field: field, Value: value}
	case sortfilter.OpGt:
		return Gt{Field: field, Value: value}
	case sortfilter.OpGte:
		return Gte{Field: field, Value: value}
	case sortfilter.OpLt:
		return Lt{Field: field, Value: value}
	case sortfilter.OpLte:
		return Lte{Field: field, Value: value}
	}
	return Eq{Field: field, Value: value}
}

func equalityExpr(field Field, op sortfilter.ComparisonOperator, value any) Expr {
	if op == sortfilter.OpNotEq {
		return NotEq{Field: field, Value: value}
	}
	return Eq{Field: field, Value: value}
}

// dayRangeExpr compares an instant against the whole day of date in loc.
// Gt and Lte use the last second of the day, Gte and Lt the first.
func dayRangeExpr(field Field, op sortfilter.ComparisonOperator, date time.Time, loc *time.Location) Expr {
	start, end := dayRange(date, loc)
	switch op {
	case sortfilter.OpLt:
		return Lt{Field: field, Value: start}
	case sortfilter.OpLte:
		return Lte{Field: field, Value: end}
	case sortfilter.OpGt:
		return Gt{Field: field, Value: end}
	case sortfilter.OpGte:
		return Gte{Field: field, Value: start}
	case sortfilter.OpNotEq:
		return Or{Exprs: []Expr{Lt{Field: field, Value: start}, Gt{Field: field, Value: end}}}
	}
	return And{Exprs: []Expr{Gte{Field: field, Value: start}, Lte{Field: field, Value: end}}}
}
