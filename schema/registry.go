package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/constraints"
)

const DefaultPathCacheSize = 4096

// Enum holds the names of a registered integer enum type.
type Enum struct {
	Type  reflect.Type
	Names []string

	values map[string]int64
}

// Parse maps a member name or a numeric string to its value.
func (e *Enum) Parse(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if v, ok := e.values[s]; ok {
		return v, true
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	return 0, false
}

type pathKey struct {
	root reflect.Type
	path string
}

// Registry caches member tables per type and resolved paths per (root, path).
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[reflect.Type]*Type
	enums map[reflect.Type]*Enum
	paths *lru.Cache[pathKey, *Path]
}

type Option func(*options)

type options struct {
	pathCacheSize int
}

func WithPathCacheSize(size int) Option {
	return func(o *options) {
		o.pathCacheSize = size
	}
}

func NewRegistry(opts ...Option) *Registry {
	o := &options{pathCacheSize: DefaultPathCacheSize}
	for _, opt := range opts {
		opt(o)
	}
	r := &Registry{
		types: map[reflect.Type]*Type{},
		enums: map[reflect.Type]*Enum{},
	}
	if o.pathCacheSize > 0 {
		cache, err := lru.New[pathKey, *Path](o.pathCacheSize)
		if err != nil {
			panic(err)
		}
		r.paths = cache
	}
	return r
}

// Default is the registry used when none is configured.
var Default = NewRegistry()

// RegisterEnum marks E as an enum whose filter values are parsed by name.
// Names come from String() of each given value.
func RegisterEnum[E interface {
	constraints.Integer
	fmt.Stringer
}](r *Registry, values ...E) {
	rt := reflect.TypeOf((*E)(nil)).Elem()
	e := &Enum{
		Type:   rt,
		values: make(map[string]int64, len(values)),
	}
	for _, v := range values {
		name := v.String()
		e.Names = append(e.Names, name)
		e.values[name] = int64(v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[rt] = e
	// categories already computed may have changed
	r.types = map[reflect.Type]*Type{}
	if r.paths != nil {
		r.paths.Purge()
	}
}

// TypeOf returns the member table of rt, building it on first use.
// Pointer types are dereferenced.
func (r *Registry) TypeOf(rt reflect.Type) *Type {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}

	r.mu.RLock()
	t, ok := r.types[rt]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.types[rt]; ok {
		return t
	}
	t = newType(rt, r.enums)
	r.types[rt] = t
	return t
}

// Resolve resolves a dotted path against root. Every segment must match a
// member, and every segment but the last must be a record. Results, including
// misses, are memoized.
func (r *Registry) Resolve(root reflect.Type, path string) (*Path, bool) {
	if root == nil {
		return nil, false
	}
	for root.Kind() == reflect.Ptr {
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return nil, false
	}

	key := pathKey{root: root, path: path}
	if r.paths != nil {
		if p, ok := r.paths.Get(key); ok {
			return p, p != nil
		}
	}

	p := r.resolve(root, path)
	if r.paths != nil {
		r.paths.Add(key, p)
	}
	return p, p != nil
}

func (r *Registry) resolve(root reflect.Type, path string) *Path {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	names := strings.Split(path, ".")
	segments := make([]*Member, 0, len(names))
	owner := root
	for i, name := range names {
		m, ok := r.TypeOf(owner).Member(name)
		if !ok {
			return nil
		}
		if i < len(names)-1 {
			if m.Category != CategoryRecord {
				return nil
			}
			owner = m.Underlying
		}
		segments = append(segments, m)
	}
	return &Path{Root: root, Segments: segments}
}

// Resolve resolves path against root using the Default registry.
func Resolve(root reflect.Type, path string) (*Path, bool) {
	return Default.Resolve(root, path)
}
