// Package mapping rewrites filter and sort paths written against a projection
// type (a DTO) into paths on the model type the projection is built from.
package mapping

import (
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/theplant/sortfilter/schema"
)

// Correspondence maps one member of the destination type to the source.
// Exactly one of SourceMember and Derivation is set.
type Correspondence struct {
	DestName string
	DestType reflect.Type

	// SourceMember is the declared name of the source member.
	SourceMember string
	// Derivation is the member access chain the value is read from, such as
	// ["Company", "Name"] for a flattened CompanyName.
	Derivation []string
	// SourceType is the type of the source member or of the end of the
	// derivation, with pointers removed.
	SourceType reflect.Type
}

// TypeMap holds the correspondences of one (source, destination) pair in
// declaration order of the destination members.
type TypeMap struct {
	Source          reflect.Type
	Dest            reflect.Type
	Correspondences []*Correspondence
}

// Find matches a destination member name exactly, then case-insensitively.
// A case-insensitive name matching more than one member is not found.
func (m *TypeMap) Find(destName string) (*Correspondence, bool) {
	var found []*Correspondence
	for _, c := range m.Correspondences {
		if c.DestName == destName {
			return c, true
		}
		if strings.EqualFold(c.DestName, destName) {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return nil, false
	}
	return found[0], true
}

// Lookup provides the mapping of a (source, destination) type pair.
type Lookup interface {
	Lookup(source, dest reflect.Type) (*TypeMap, bool)
}

type LookupFunc func(source, dest reflect.Type) (*TypeMap, bool)

func (f LookupFunc) Lookup(source, dest reflect.Type) (*TypeMap, bool) {
	return f(source, dest)
}

type typePair struct {
	source reflect.Type
	dest   reflect.Type
}

// Table is an in-memory Lookup filled by Register. It is safe for concurrent
// use.
type Table struct {
	registry *schema.Registry

	mu   sync.RWMutex
	maps map[typePair]*TypeMap
}

var _ Lookup = (*Table)(nil)

func NewTable(opts ...Option) *Table {
	o := newOptions(opts...)
	return &Table{
		registry: o.registry,
		maps:     map[typePair]*TypeMap{},
	}
}

// Add stores m, replacing an earlier map of the same pair.
func (t *Table) Add(m *TypeMap) {
	key := typePair{source: deref(m.Source), dest: deref(m.Dest)}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maps[key] = m
}

func (t *Table) Lookup(source, dest reflect.Type) (*TypeMap, bool) {
	if source == nil || dest == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.maps[typePair{source: deref(source), dest: deref(dest)}]
	return m, ok
}

func deref(rt reflect.Type) reflect.Type {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt
}

type options struct {
	registry *schema.Registry
	logger   *zap.Logger
}

type Option func(*options)

// WithRegistry sets the registry member tables are read from.
func WithRegistry(r *schema.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = schema.Default
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}
