package gormfilter

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormschema "gorm.io/gorm/schema"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter"
)

// Scope compiles f against the model of the statement and adds the result as
// a WHERE condition. Errors are reported through db.AddError.
func Scope(f sortfilter.Filter, opts ...Option) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if db == nil {
			return nil
		}
		fdb, err := addFilter(db, f, newOptions(opts...))
		if err != nil {
			db.AddError(err)
			return db
		}
		return fdb
	}
}

func addFilter(db *gorm.DB, f sortfilter.Filter, o *options) (*gorm.DB, error) {
	if len(f) == 0 {
		return db, nil
	}

	stmt, err := parseStatement(db)
	if err != nil {
		return nil, err
	}

	e, err := filter.Compile(stmt.Schema.ModelType, f, o.filterOpts...)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return db, nil
	}

	b := &builder{db: db, stmt: stmt, opts: o}
	expr, err := b.build(e)
	if err != nil {
		return nil, err
	}
	if expr != nil {
		db = db.Where(expr)
	}
	return db, nil
}

func parseStatement(db *gorm.DB) (*gorm.Statement, error) {
	model := cmp.Or(db.Statement.Model, db.Statement.Dest)
	if model == nil {
		return nil, errors.New("model is nil")
	}
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, errors.Wrap(err, "parse schema with db")
	}
	return stmt, nil
}

type builder struct {
	db   *gorm.DB
	stmt *gorm.Statement
	opts *options
}

func (b *builder) build(e filter.Expr) (clause.Expression, error) {
	switch v := e.(type) {
	case nil:
		return nil, nil
	case filter.Eq, filter.NotEq, filter.Gt, filter.Gte, filter.Lt, filter.Lte,
		filter.StartsWith, filter.EndsWith, filter.Contains:
		f, cond, _ := leaf(v)
		return b.field(f, cond)
	case filter.IsNull:
		expr, err := b.presence(v.Field)
		if err != nil {
			return nil, err
		}
		return ClauseNot(expr), nil
	case filter.Not:
		if isNull, ok := v.Expr.(filter.IsNull); ok {
			return b.presence(isNull.Field)
		}
		// leaves crossing relationships are negated inside the subquery so
		// records without the related row never match
		if f, cond, ok := leaf(v.Expr); ok {
			return b.field(f, func(col any) clause.Expression { return ClauseNot(cond(col)) })
		}
		expr, err := b.build(v.Expr)
		if err != nil || expr == nil {
			return nil, err
		}
		return ClauseNot(expr), nil
	case filter.And:
		exprs, err := b.buildAll(v.Exprs)
		if err != nil {
			return nil, err
		}
		return combineExprs(exprs...)
	case filter.Or:
		exprs, err := b.buildAll(v.Exprs)
		if err != nil {
			return nil, err
		}
		if len(exprs) == 0 {
			return nil, nil
		}
		return clause.Or(exprs...), nil
	}
	return nil, errors.Errorf("unsupported filter expression %T", e)
}

func (b *builder) buildAll(es []filter.Expr) ([]clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(es))
	for _, e := range es {
		expr, err := b.build(e)
		if err != nil {
			return nil, err
		}
		if expr != nil {
			exprs = append(exprs, expr)
		}
	}
	return exprs, nil
}

// leaf splits a comparison into its field and the condition on the column.
func leaf(e filter.Expr) (filter.Field, func(col any) clause.Expression, bool) {
	switch v := e.(type) {
	case filter.Eq:
		return v.Field, func(col any) clause.Expression { return clause.Eq{Column: col, Value: sqlValue(v.Value)} }, true
	case filter.NotEq:
		return v.Field, func(col any) clause.Expression { return clause.Neq{Column: col, Value: sqlValue(v.Value)} }, true
	case filter.Gt:
		return v.Field, func(col any) clause.Expression { return clause.Gt{Column: col, Value: sqlValue(v.Value)} }, true
	case filter.Gte:
		return v.Field, func(col any) clause.Expression { return clause.Gte{Column: col, Value: sqlValue(v.Value)} }, true
	case filter.Lt:
		return v.Field, func(col any) clause.Expression { return clause.Lt{Column: col, Value: sqlValue(v.Value)} }, true
	case filter.Lte:
		return v.Field, func(col any) clause.Expression { return clause.Lte{Column: col, Value: sqlValue(v.Value)} }, true
	case filter.StartsWith:
		return v.Field, func(col any) clause.Expression { return Like{Column: col, Value: escapeLike(v.Value) + "%"} }, true
	case filter.EndsWith:
		return v.Field, func(col any) clause.Expression { return Like{Column: col, Value: "%" + escapeLike(v.Value)} }, true
	case filter.Contains:
		return v.Field, func(col any) clause.Expression { return Like{Column: col, Value: "%" + escapeLike(v.Value) + "%"} }, true
	}
	return filter.Field{}, nil, false
}

// relations resolves the relationships crossed by every name but the last.
func (b *builder) relations(names []string) ([]*gormschema.Relationship, *gormschema.Schema, error) {
	s := b.stmt.Schema
	var rels []*gormschema.Relationship
	for _, name := range names[:len(names)-1] {
		rel, err := b.relationship(s, name)
		if err != nil {
			return nil, nil, err
		}
		rels = append(rels, rel)
		s = rel.FieldSchema
	}
	return rels, s, nil
}

func (b *builder) relationship(s *gormschema.Schema, name string) (*gormschema.Relationship, error) {
	rel, ok := s.Relationships.Relations[name]
	if !ok {
		return nil, errors.Errorf("missing relationship %q in schema %s", name, s.Name)
	}
	if rel.Type == gormschema.BelongsTo && b.opts.disableBelongsTo {
		return nil, errors.Errorf("belongs_to filter is disabled for field %q", name)
	}
	return rel, nil
}

// field builds the condition for a compiled field. Paths crossing
// relationships become nested "fk IN (SELECT pk ...)" subqueries.
func (b *builder) field(f filter.Field, cond func(col any) clause.Expression) (clause.Expression, error) {
	names := f.Path.Names()
	rels, s, err := b.relations(names)
	if err != nil {
		return nil, err
	}

	terminal := names[len(names)-1]
	field, ok := s.FieldsByName[terminal]
	if !ok || field.DBName == "" {
		return nil, errors.Errorf("missing field %q in schema", strings.Join(names, "."))
	}

	var column any = clause.Column{Table: tableOf(s, len(rels)), Name: field.DBName}
	if f.Round {
		column = roundColumn(b.stmt, column)
	}
	return b.wrap(rels, cond(column))
}

// presence builds the condition that the value at f exists: every
// relationship on the way is present and the terminal is not null. A record
// terminal is present when its row exists.
func (b *builder) presence(f filter.Field) (clause.Expression, error) {
	names := f.Path.Names()
	rels, s, err := b.relations(names)
	if err != nil {
		return nil, err
	}

	terminal := names[len(names)-1]
	table := tableOf(s, len(rels))
	if _, ok := s.Relationships.Relations[terminal]; ok {
		rel, err := b.relationship(s, terminal)
		if err != nil {
			return nil, err
		}
		expr, err := b.exists(rel, table)
		if err != nil {
			return nil, err
		}
		return b.wrap(rels, expr)
	}

	field, ok := s.FieldsByName[terminal]
	if !ok || field.DBName == "" {
		return nil, errors.Errorf("missing field %q in schema", strings.Join(names, "."))
	}
	return b.wrap(rels, clause.Neq{Column: clause.Column{Table: table, Name: field.DBName}, Value: nil})
}

func (b *builder) wrap(rels []*gormschema.Relationship, expr clause.Expression) (clause.Expression, error) {
	for i := len(rels) - 1; i >= 0; i-- {
		var err error
		expr, err = b.subquery(rels[i], tableOf(rels[i].Schema, i), expr)
		if err != nil {
			return nil, err
		}
	}
	return expr, nil
}

// tableOf qualifies columns of the root model with the current table so
// db.Table overrides are honored.
func tableOf(s *gormschema.Schema, depth int) string {
	if depth == 0 {
		return clause.CurrentTable
	}
	return s.Table
}

func keys(rel *gormschema.Relationship) (owner, related *gormschema.Field, err error) {
	if rel.Type != gormschema.BelongsTo && rel.Type != gormschema.HasOne {
		return nil, nil, errors.Errorf("unsupported %s relationship %q", rel.Type, rel.Name)
	}
	if len(rel.References) != 1 || rel.References[0].PrimaryValue != "" {
		return nil, nil, errors.Errorf("unsupported composite or polymorphic relationship %q", rel.Name)
	}

	ref := rel.References[0]
	if ref.OwnPrimaryKey {
		return ref.PrimaryKey, ref.ForeignKey, nil
	}
	return ref.ForeignKey, ref.PrimaryKey, nil
}

// exists is true when the row of rel is present for the owner in ownerTable.
func (b *builder) exists(rel *gormschema.Relationship, ownerTable string) (clause.Expression, error) {
	owner, _, err := keys(rel)
	if err != nil {
		return nil, err
	}
	if rel.Type == gormschema.BelongsTo {
		return clause.Neq{Column: clause.Column{Table: ownerTable, Name: owner.DBName}, Value: nil}, nil
	}
	return b.subquery(rel, ownerTable, nil)
}

func (b *builder) subquery(rel *gormschema.Relationship, ownerTable string, inner clause.Expression) (clause.Expression, error) {
	owner, related, err := keys(rel)
	if err != nil {
		return nil, err
	}

	sub := b.db.Session(&gorm.Session{NewDB: true}).
		Model(newModel(rel.FieldSchema.ModelType)).
		Select(related.DBName)
	if rel.Type == gormschema.HasOne {
		// NOT IN against a list holding NULL is never true
		sub = sub.Where(clause.Neq{Column: clause.Column{Table: rel.FieldSchema.Table, Name: related.DBName}, Value: nil})
	}
	if inner != nil {
		sub = sub.Where(inner)
	}

	return InSubquery{Column: clause.Column{Table: ownerTable, Name: owner.DBName}, Subquery: sub}, nil
}

// roundColumn rounds half away from zero on both PostgreSQL and SQLite.
func roundColumn(stmt *gorm.Statement, column any) clause.Expr {
	return clause.Expr{SQL: fmt.Sprintf("ROUND(CAST(%s AS NUMERIC))", stmt.Quote(column))}
}

// sqlValue binds integral decimals as integers so they compare numerically
// against expressions without a column affinity.
func sqlValue(v any) any {
	d, ok := v.(decimal.Decimal)
	if !ok || !d.IsInteger() {
		return v
	}
	if n := d.IntPart(); decimal.NewFromInt(n).Equal(d) {
		return n
	}
	return v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// combineExprs combines multiple expressions into a single expression
func combineExprs(exprs ...clause.Expression) (clause.Expression, error) {
	switch len(exprs) {
	case 0:
		return nil, nil
	case 1:
		return exprs[0], nil
	default:
		return clause.And(exprs...), nil
	}
}
