package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/theplant/sortfilter/schema"
)

// Expr is a compiled boolean predicate. Backends translate it by switching on
// the concrete type.
type Expr interface {
	isExpr()
}

// Field references the value at Path. Round asks the backend to round the
// stored value to 0 decimal places before comparing.
type Field struct {
	Path  *schema.Path
	Round bool
}

func (f Field) String() string {
	if f.Path == nil {
		return "<nil>"
	}
	if f.Round {
		return "ROUND(" + f.Path.String() + ")"
	}
	return f.Path.String()
}

type (
	Eq struct {
		Field Field
		Value any
	}
	NotEq struct {
		Field Field
		Value any
	}
	Gt struct {
		Field Field
		Value any
	}
	Gte struct {
		Field Field
		Value any
	}
	Lt struct {
		Field Field
		Value any
	}
	Lte struct {
		Field Field
		Value any
	}
	StartsWith struct {
		Field Field
		Value string
	}
	EndsWith struct {
		Field Field
		Value string
	}
	Contains struct {
		Field Field
		Value string
	}
	IsNull struct {
		Field Field
	}
	Not struct {
		Expr Expr
	}
	And struct {
		Exprs []Expr
	}
	Or struct {
		Exprs []Expr
	}
)

func (Eq) isExpr()         {}
func (NotEq) isExpr()      {}
func (Gt) isExpr()         {}
func (Gte) isExpr()        {}
func (Lt) isExpr()         {}
func (Lte) isExpr()        {}
func (StartsWith) isExpr() {}
func (EndsWith) isExpr()   {}
func (Contains) isExpr()   {}
func (IsNull) isExpr()     {}
func (Not) isExpr()        {}
func (And) isExpr()        {}
func (Or) isExpr()         {}

// AndOf joins a and b, dropping nil operands and merging nested And lists.
func AndOf(a, b Expr) Expr {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	var exprs []Expr
	for _, e := range []Expr{a, b} {
		if v, ok := e.(And); ok {
			exprs = append(exprs, v.Exprs...)
		} else {
			exprs = append(exprs, e)
		}
	}
	return And{Exprs: exprs}
}

// OrOf joins a and b, dropping nil operands and merging nested Or lists.
func OrOf(a, b Expr) Expr {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	var exprs []Expr
	for _, e := range []Expr{a, b} {
		if v, ok := e.(Or); ok {
			exprs = append(exprs, v.Exprs...)
		} else {
			exprs = append(exprs, e)
		}
	}
	return Or{Exprs: exprs}
}

// String renders e in a SQL-like notation, mainly for logs and tests.
func String(e Expr) string {
	switch v := e.(type) {
	case nil:
		return "<nil>"
	case Eq:
		return binary(v.Field, "=", v.Value)
	case NotEq:
		return binary(v.Field, "!=", v.Value)
	case Gt:
		return binary(v.Field, ">", v.Value)
	case Gte:
		return binary(v.Field, ">=", v.Value)
	case Lt:
		return binary(v.Field, "<", v.Value)
	case Lte:
		return binary(v.Field, "<=", v.Value)
	case StartsWith:
		return binary(v.Field, "STARTS WITH", v.Value)
	case EndsWith:
		return binary(v.Field, "ENDS WITH", v.Value)
	case Contains:
		return binary(v.Field, "CONTAINS", v.Value)
	case IsNull:
		return v.Field.String() + " IS NULL"
	case Not:
		return "NOT " + String(v.Expr)
	case And:
		return "(" + strings.Join(lo.Map(v.Exprs, func(e Expr, _ int) string { return String(e) }), " AND ") + ")"
	case Or:
		return "(" + strings.Join(lo.Map(v.Exprs, func(e Expr, _ int) string { return String(e) }), " OR ") + ")"
	}
	return fmt.Sprintf("%#v", e)
}

func binary(f Field, op string, value any) string {
	return f.String() + " " + op + " " + literal(value)
}

func literal(value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", value)
}
