package sortfilter

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	ValidateJsonRawMessage: true,
}.Froze()

// FilterNode is one comparison term of a filter, joined to its siblings by Lop
// and optionally refined by nested Children.
//
// An empty Column inherits the effective column of the nearest ancestor when the
// filter is compiled, so a node with a column and only valued children builds
// an OR/AND group over a single column.
type FilterNode struct {
	Column         string             `json:"col,omitempty"`
	Value          string             `json:"val,omitempty"`
	IsValueNull    bool               `json:"null,omitempty"`
	Op             ComparisonOperator `json:"op,omitempty"`
	Lop            LogicalOperator    `json:"lop,omitempty"`
	Children       Filter             `json:"q,omitempty"`
	ClientTimeZone string             `json:"tz,omitempty"` // IANA zone name, e.g. "Asia/Tokyo"
	Tag            string             `json:"tag,omitempty"`
}

// Filter is an ordered list of top-level nodes, folded left to right.
type Filter []*FilterNode

// Clone returns a deep copy, leaving the receiver untouched.
func (f Filter) Clone() Filter {
	if f == nil {
		return nil
	}
	return lo.Map(f, func(n *FilterNode, _ int) *FilterNode {
		if n == nil {
			return nil
		}
		c := *n
		c.Children = n.Children.Clone()
		return &c
	})
}

type SortEntry struct {
	Path      string
	Direction SortDirection
}

// Sort is an ordered path to direction mapping. Entry order is the precedence
// of the keys. It encodes as a JSON object whose key order is preserved.
type Sort []SortEntry

// Set updates the direction of an existing path in place or appends a new entry.
func (s *Sort) Set(path string, direction SortDirection) {
	for i := range *s {
		if (*s)[i].Path == path {
			(*s)[i].Direction = direction
			return
		}
	}
	*s = append(*s, SortEntry{Path: path, Direction: direction})
}

func (s Sort) Get(path string) (SortDirection, bool) {
	for _, e := range s {
		if e.Path == path {
			return e.Direction, true
		}
	}
	return Asc, false
}

func (s Sort) Paths() []string {
	return lo.Map(s, func(e SortEntry, _ int) string { return e.Path })
}

func (s Sort) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, e := range s {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(e.Path)
		stream.WriteString(e.Direction.String())
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return nil, errors.Wrap(stream.Error, "marshal sort")
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func (s *Sort) UnmarshalJSON(data []byte) error {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	if iter.WhatIsNext() == jsoniter.NilValue {
		*s = nil
		return nil
	}

	var (
		out  Sort
		xerr error
	)
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, key string) bool {
		var d SortDirection
		if err := d.UnmarshalJSON(iter.SkipAndReturnBytes()); err != nil {
			xerr = errors.Wrapf(err, "sort path %q", key)
			return false
		}
		out.Set(key, d)
		return true
	})
	if xerr != nil {
		return xerr
	}
	if iter.Error != nil && iter.Error != io.EOF {
		return errors.Wrap(iter.Error, "unmarshal sort")
	}
	*s = out
	return nil
}

// Query is the client request: a filter under "q" and a sort under "s".
type Query struct {
	Filter Filter `json:"q,omitempty"`
	Sort   Sort   `json:"s,omitempty"`
}

// ParseQuery decodes a JSON encoded Query.
func ParseQuery(data []byte) (*Query, error) {
	q := &Query{}
	if len(data) == 0 {
		return q, nil
	}
	if err := json.Unmarshal(data, q); err != nil {
		return nil, errors.Wrap(err, "unmarshal query")
	}
	return q, nil
}
