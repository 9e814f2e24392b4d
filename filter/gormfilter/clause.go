package gormfilter

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClauseNot negates expr. Comparisons that know their own negation are
// rewritten (= to <>, LIKE to NOT LIKE, IS NULL to IS NOT NULL), anything else
// is prefixed with NOT.
func ClauseNot(expr clause.Expression) clause.Expression {
	if expr == nil {
		return nil
	}
	if not, ok := expr.(NotCondition); ok {
		return not.Expr
	}
	return NotCondition{Expr: expr}
}

// NotCondition represents a negated expression.
type NotCondition struct {
	Expr clause.Expression
}

func (not NotCondition) Build(builder clause.Builder) {
	if negationBuilder, ok := not.Expr.(clause.NegationExpressionBuilder); ok {
		negationBuilder.NegationBuild(builder)
		return
	}

	_, _ = builder.WriteString("NOT ")
	wrapInParentheses := false
	if e, ok := not.Expr.(clause.Expr); ok {
		sql := strings.ToUpper(e.SQL)
		wrapInParentheses = strings.Contains(sql, clause.AndWithSpace) || strings.Contains(sql, clause.OrWithSpace)
	}
	if wrapInParentheses {
		_ = builder.WriteByte('(')
	}
	not.Expr.Build(builder)
	if wrapInParentheses {
		_ = builder.WriteByte(')')
	}
}

// Like is a LIKE comparison with backslash as the escape character, which
// PostgreSQL assumes and SQLite needs to be told.
type Like struct {
	Column any
	Value  string
}

func (like Like) Build(builder clause.Builder) {
	builder.WriteQuoted(like.Column)
	_, _ = builder.WriteString(" LIKE ")
	builder.AddVar(builder, like.Value)
	_, _ = builder.WriteString(` ESCAPE '\'`)
}

func (like Like) NegationBuild(builder clause.Builder) {
	builder.WriteQuoted(like.Column)
	_, _ = builder.WriteString(" NOT LIKE ")
	builder.AddVar(builder, like.Value)
	_, _ = builder.WriteString(` ESCAPE '\'`)
}

// InSubquery is "column IN (subquery)". Its negation also matches a null
// column, so a missing relationship counts as absent rather than unknown.
type InSubquery struct {
	Column   clause.Column
	Subquery *gorm.DB
}

func (in InSubquery) Build(builder clause.Builder) {
	builder.WriteQuoted(in.Column)
	_, _ = builder.WriteString(" IN (")
	builder.AddVar(builder, in.Subquery)
	_ = builder.WriteByte(')')
}

func (in InSubquery) NegationBuild(builder clause.Builder) {
	_ = builder.WriteByte('(')
	builder.WriteQuoted(in.Column)
	_, _ = builder.WriteString(" IS NULL OR ")
	builder.WriteQuoted(in.Column)
	_, _ = builder.WriteString(" NOT IN (")
	builder.AddVar(builder, in.Subquery)
	_, _ = builder.WriteString("))")
}
