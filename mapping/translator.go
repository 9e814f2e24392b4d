package mapping

import (
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/schema"
)

// Translator rewrites paths on a destination type into paths on its source
// type. Paths it cannot translate are kept as written, so filters on
// unmapped members still apply when the name happens to exist on the source.
type Translator struct {
	lookup   Lookup
	registry *schema.Registry
	logger   *zap.Logger
}

func NewTranslator(lookup Lookup, opts ...Option) *Translator {
	o := newOptions(opts...)
	return &Translator{
		lookup:   lookup,
		registry: o.registry,
		logger:   o.logger,
	}
}

// TranslatePath translates path segment by segment. A segment naming a record
// member continues in the map of the nested pair. A derived member yields the
// receiver and member of its chain. Translation is all or nothing: any
// segment that cannot be translated returns path unchanged.
func (t *Translator) TranslatePath(path string, source, dest reflect.Type) string {
	if source == nil || dest == nil {
		return path
	}
	segments, ok := t.translate(strings.Split(strings.TrimSpace(path), "."), deref(source), deref(dest))
	if !ok {
		t.logger.Debug("path not translated",
			zap.String("path", path),
			zap.Stringer("source", source),
			zap.Stringer("dest", dest),
		)
		return path
	}
	return strings.Join(segments, ".")
}

func (t *Translator) translate(segments []string, source, dest reflect.Type) ([]string, bool) {
	m, ok := t.lookup.Lookup(source, dest)
	if !ok {
		if source != dest {
			return nil, false
		}
		// a member of the model type itself needs no map
		return segments, true
	}
	c, ok := m.Find(segments[0])
	if !ok {
		return nil, false
	}

	rest := segments[1:]
	if c.SourceMember != "" && t.isRecord(source, c.SourceMember) {
		if len(rest) == 0 {
			return []string{c.SourceMember}, true
		}
		nested, ok := t.translate(rest, c.SourceType, deref(c.DestType))
		if !ok {
			return nil, false
		}
		return append([]string{c.SourceMember}, nested...), true
	}
	if len(rest) > 0 {
		return nil, false
	}
	if len(c.Derivation) > 0 {
		return receiverAndMember(c.Derivation), true
	}
	if c.SourceMember == "" {
		return nil, false
	}
	return []string{c.SourceMember}, true
}

func (t *Translator) isRecord(source reflect.Type, member string) bool {
	m, ok := t.registry.TypeOf(source).Member(member)
	return ok && m.Category == schema.CategoryRecord
}

// receiverAndMember keeps the last two names of a derivation chain.
func receiverAndMember(chain []string) []string {
	if len(chain) <= 2 {
		return chain
	}
	return chain[len(chain)-2:]
}

// TranslateFilter returns a copy of f with every column translated. A node
// without a column first takes the column of its parent.
func (t *Translator) TranslateFilter(f sortfilter.Filter, source, dest reflect.Type) sortfilter.Filter {
	out := f.Clone()
	t.translateNodes(out, "", source, dest)
	return out
}

func (t *Translator) translateNodes(nodes sortfilter.Filter, inherited string, source, dest reflect.Type) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		column := n.Column
		if strings.TrimSpace(column) == "" {
			column = inherited
		}
		if column != "" {
			n.Column = t.TranslatePath(column, source, dest)
		}
		t.translateNodes(n.Children, column, source, dest)
	}
}

// TranslateSort translates the paths of s keeping their order. Entries that
// translate to the same path are merged into the first one, taking the later
// direction.
func (t *Translator) TranslateSort(s sortfilter.Sort, source, dest reflect.Type) sortfilter.Sort {
	if s == nil {
		return nil
	}
	out := make(sortfilter.Sort, 0, len(s))
	for _, e := range s {
		out.Set(t.TranslatePath(e.Path, source, dest), e.Direction)
	}
	return out
}

func (t *Translator) TranslateQuery(q *sortfilter.Query, source, dest reflect.Type) *sortfilter.Query {
	if q == nil {
		return nil
	}
	return &sortfilter.Query{
		Filter: t.TranslateFilter(q.Filter, source, dest),
		Sort:   t.TranslateSort(q.Sort, source, dest),
	}
}

// Translate rewrites a query written against DTO into one against Model.
func Translate[Model, DTO any](t *Translator, q *sortfilter.Query) *sortfilter.Query {
	return t.TranslateQuery(q, reflect.TypeFor[Model](), reflect.TypeFor[DTO]())
}
