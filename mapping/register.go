package mapping

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/sunfmin/reflectutils"

	"github.com/theplant/sortfilter/schema"
)

// Source tells Register where a destination member is read from.
type Source struct {
	member string
	path   string
}

// FromMember reads the destination member from a differently named source
// member.
func FromMember(name string) Source {
	return Source{member: name}
}

// FromPath reads the destination member from a dotted chain of source member
// names, such as "Company.Country.Name". Names match case-insensitively like
// FromMember.
func FromPath(path string) Source {
	return Source{path: path}
}

type override struct {
	dest   string
	ignore bool
	source Source
}

type MemberOption func(overrides *[]override)

// ForMember maps the destination member dest from src instead of by
// convention.
func ForMember(dest string, src Source) MemberOption {
	return func(overrides *[]override) {
		*overrides = append(*overrides, override{dest: dest, source: src})
	}
}

// Ignore leaves the destination member dest unmapped.
func Ignore(dest string) MemberOption {
	return func(overrides *[]override) {
		*overrides = append(*overrides, override{dest: dest, ignore: true})
	}
}

// Register adds the map from S to D to t. Members of D without an override are
// mapped by convention:
//
//   - a source member with the same name, compared case-insensitively
//   - a flattened name, CompanyName reading Company.Name
//
// Members matching neither are left out, so paths through them are not
// translated. Nested record pairs are looked up separately at translation
// time and need their own Register call.
func Register[S, D any](t *Table, opts ...MemberOption) error {
	source, dest := deref(reflect.TypeFor[S]()), deref(reflect.TypeFor[D]())
	m, err := t.build(source, dest, opts...)
	if err != nil {
		return errors.Wrapf(err, "register %s to %s", source, dest)
	}
	t.Add(m)
	return nil
}

func (t *Table) build(source, dest reflect.Type, opts ...MemberOption) (*TypeMap, error) {
	if source.Kind() != reflect.Struct || dest.Kind() != reflect.Struct {
		return nil, errors.New("source and destination must be structs")
	}

	var list []override
	for _, opt := range opts {
		opt(&list)
	}

	src, dst := t.registry.TypeOf(source), t.registry.TypeOf(dest)
	overrides := make(map[string]override, len(list))
	for _, o := range list {
		dm, ok := dst.Member(o.dest)
		if !ok {
			return nil, errors.Errorf("missing destination member %q", o.dest)
		}
		overrides[dm.Name] = o
	}

	m := &TypeMap{Source: source, Dest: dest}
	for _, dm := range dst.Members {
		o, ok := overrides[dm.Name]
		if ok && o.ignore {
			continue
		}
		if ok {
			c, err := t.explicit(src, dm, o.source)
			if err != nil {
				return nil, err
			}
			m.Correspondences = append(m.Correspondences, c)
			continue
		}
		if c := t.convention(src, dm); c != nil {
			m.Correspondences = append(m.Correspondences, c)
		}
	}
	return m, nil
}

func (t *Table) explicit(src *schema.Type, dm *schema.Member, from Source) (*Correspondence, error) {
	switch {
	case from.member != "":
		sm, ok := src.Member(from.member)
		if !ok {
			return nil, errors.Errorf("missing source member %q for %q", from.member, dm.Name)
		}
		return memberCorrespondence(dm, sm), nil
	case from.path != "":
		return t.derivation(src.Type, dm, from.path)
	}
	return nil, errors.Errorf("empty source for %q", dm.Name)
}

func (t *Table) derivation(source reflect.Type, dm *schema.Member, path string) (*Correspondence, error) {
	p, ok := t.registry.Resolve(source, path)
	if !ok {
		if reflectutils.GetType(reflect.New(source).Interface(), path) != nil {
			return nil, errors.Errorf("source path %q for %q must only traverse records", path, dm.Name)
		}
		return nil, errors.Errorf("invalid source path %q for %q", path, dm.Name)
	}
	if len(p.Segments) == 1 {
		return memberCorrespondence(dm, p.Terminal()), nil
	}
	return &Correspondence{
		DestName:   dm.Name,
		DestType:   dm.Underlying,
		Derivation: p.Names(),
		SourceType: p.Terminal().Underlying,
	}, nil
}

func (t *Table) convention(src *schema.Type, dm *schema.Member) *Correspondence {
	if sm, ok := src.Member(dm.Name); ok {
		return memberCorrespondence(dm, sm)
	}
	for _, sm := range src.Members {
		if sm.Category != schema.CategoryRecord || len(dm.Name) <= len(sm.Name) {
			continue
		}
		if !strings.EqualFold(dm.Name[:len(sm.Name)], sm.Name) {
			continue
		}
		nested, ok := t.registry.TypeOf(sm.Underlying).Member(dm.Name[len(sm.Name):])
		if !ok {
			continue
		}
		return &Correspondence{
			DestName:   dm.Name,
			DestType:   dm.Underlying,
			Derivation: []string{sm.Name, nested.Name},
			SourceType: nested.Underlying,
		}
	}
	return nil
}

func memberCorrespondence(dm, sm *schema.Member) *Correspondence {
	return &Correspondence{
		DestName:     dm.Name,
		DestType:     dm.Underlying,
		SourceMember: sm.Name,
		SourceType:   sm.Underlying,
	}
}
