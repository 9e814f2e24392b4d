package gormfilter

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormschema "gorm.io/gorm/schema"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter"
)

// OrderScope orders the statement by s, falling back to the identity member.
// Keys on related records join the relationship the way db.Joins does, under
// the alias "A__B" for the path A.B. Nulls sort first ascending on every
// dialect.
func OrderScope(s sortfilter.Sort, opts ...Option) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if db == nil {
			return nil
		}
		odb, err := addOrder(db, s, newOptions(opts...))
		if err != nil {
			db.AddError(err)
			return db
		}
		return odb
	}
}

func addOrder(db *gorm.DB, s sortfilter.Sort, o *options) (*gorm.DB, error) {
	stmt, err := parseStatement(db)
	if err != nil {
		return nil, err
	}

	keys := filter.CompileSort(stmt.Schema.ModelType, s, o.filterOpts...)
	if len(keys) == 0 {
		return db, nil
	}

	var joins []string
	exprs := make([]clause.Expression, 0, len(keys))
	for _, key := range keys {
		names := key.Path.Names()
		relations := names[:len(names)-1]

		sch := stmt.Schema
		for _, name := range relations {
			rel, ok := sch.Relationships.Relations[name]
			if !ok || (rel.Type != gormschema.BelongsTo && rel.Type != gormschema.HasOne) {
				return nil, errors.Errorf("cannot order by %q: %q is not a joinable relationship", key.Path, name)
			}
			sch = rel.FieldSchema
		}
		field, ok := sch.FieldsByName[names[len(names)-1]]
		if !ok || field.DBName == "" {
			return nil, errors.Errorf("missing field %q in schema", key.Path)
		}

		table := clause.CurrentTable
		if len(relations) > 0 {
			joins = append(joins, strings.Join(relations, "."))
			table = strings.Join(relations, "__")
		}

		exprs = append(exprs, orderExpr(clause.Column{Table: table, Name: field.DBName}, key.Desc))
	}

	for _, join := range outermostJoins(joins) {
		db = db.Joins(join)
	}
	return db.Order(clause.OrderBy{Expression: clause.CommaExpression{Exprs: exprs}}), nil
}

// outermostJoins drops joins implied by a longer nested join, since joining
// "A.B" already joins "A".
func outermostJoins(joins []string) []string {
	joins = lo.Uniq(joins)
	return lo.Filter(joins, func(j string, _ int) bool {
		return !lo.SomeBy(joins, func(k string) bool { return strings.HasPrefix(k, j+".") })
	})
}

func orderExpr(column clause.Column, desc bool) clause.Expression {
	if desc {
		return clause.Expr{SQL: "? DESC NULLS LAST", Vars: []any{column}}
	}
	return clause.Expr{SQL: "? ASC NULLS FIRST", Vars: []any{column}}
}

// Apply filters and orders the statement by q.
func Apply(q *sortfilter.Query, opts ...Option) func(db *gorm.DB) *gorm.DB {
	if q == nil {
		q = &sortfilter.Query{}
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Scopes(Scope(q.Filter, opts...), OrderScope(q.Sort, opts...))
	}
}
