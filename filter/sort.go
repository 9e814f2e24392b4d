package filter

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/schema"
)

// IdentityMember is the member ordered by when no sort entry applies.
const IdentityMember = "Id"

type SortKey struct {
	Path *schema.Path
	Desc bool
}

func (k SortKey) String() string {
	if k.Desc {
		return k.Path.String() + " DESC"
	}
	return k.Path.String()
}

// CompileSort turns s into ordering keys, the first being the primary key and
// the rest tie-breakers. Unresolvable entries are skipped. When nothing
// resolves the records are ordered by IdentityMember, and when the type has no
// such member nil is returned and the source order is kept.
func CompileSort(root reflect.Type, s sortfilter.Sort, opts ...Option) []SortKey {
	o := NewOptions(opts...)

	var keys []SortKey
	for _, entry := range s {
		path, ok := o.Registry.Resolve(root, entry.Path)
		if !ok || path.Terminal().Category == schema.CategoryRecord {
			o.Logger.Debug("sort entry skipped", zap.String("path", entry.Path))
			continue
		}
		keys = append(keys, SortKey{Path: path, Desc: entry.Direction == sortfilter.Desc})
	}
	if len(keys) > 0 {
		return keys
	}

	if path, ok := o.Registry.Resolve(root, IdentityMember); ok {
		return []SortKey{{Path: path}}
	}
	return nil
}

// CompileSortFor is CompileSort for records of type T.
func CompileSortFor[T any](s sortfilter.Sort, opts ...Option) []SortKey {
	return CompileSort(reflect.TypeFor[T](), s, opts...)
}
