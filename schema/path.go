package schema

import (
	"reflect"
	"strings"

	"github.com/samber/lo"
)

// Path is a dotted property path resolved against a root record type.
type Path struct {
	Root     reflect.Type
	Segments []*Member
}

// Terminal is the member the path ends at.
func (p *Path) Terminal() *Member {
	return p.Segments[len(p.Segments)-1]
}

// Names returns the declared member names along the path.
func (p *Path) Names() []string {
	return lo.Map(p.Segments, func(m *Member, _ int) string { return m.Name })
}

// String joins the declared names with dots, so "company.NAME" resolves to
// "Company.Name".
func (p *Path) String() string {
	return strings.Join(p.Names(), ".")
}

// Nullable reports whether any segment may be nil.
func (p *Path) Nullable() bool {
	return lo.SomeBy(p.Segments, func(m *Member) bool { return m.Nullable })
}

// Get reads the terminal value from a root value. It reports false when a
// nullable segment along the way is nil. The returned value has pointers removed.
func (p *Path) Get(v reflect.Value) (reflect.Value, bool) {
	v, ok := indirect(v)
	if !ok {
		return reflect.Value{}, false
	}
	for _, m := range p.Segments {
		f, err := v.FieldByIndexErr(m.Index)
		if err != nil {
			return reflect.Value{}, false
		}
		v, ok = indirect(f)
		if !ok {
			return reflect.Value{}, false
		}
	}
	return v, true
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}
