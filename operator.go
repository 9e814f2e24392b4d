package sortfilter

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// ComparisonOperator is the comparison a filter node applies to its column.
// The zero value is OpEq.
type ComparisonOperator int

const (
	OpEq ComparisonOperator = iota
	OpNotEq
	OpGt
	OpGte
	OpLt
	OpLte
	OpStW
	OpEndW
	OpCt
	OpNotStW
	OpNotEndW
	OpNotCt
)

var comparisonOperatorNames = []string{"Eq", "NotEq", "Gt", "Gte", "Lt", "Lte", "StW", "EndW", "Ct", "NotStW", "NotEndW", "NotCt"}

func (op ComparisonOperator) String() string {
	return enumName(comparisonOperatorNames, int(op), "ComparisonOperator")
}

// Negated reports whether op is one of the negative string or equality operators.
func (op ComparisonOperator) Negated() bool {
	switch op {
	case OpNotEq, OpNotStW, OpNotEndW, OpNotCt:
		return true
	}
	return false
}

func (op ComparisonOperator) MarshalText() ([]byte, error) {
	return marshalEnum(comparisonOperatorNames, int(op), "comparison operator")
}

func (op *ComparisonOperator) UnmarshalText(text []byte) error {
	v, err := parseEnum(comparisonOperatorNames, string(text), "comparison operator")
	if err != nil {
		return err
	}
	*op = ComparisonOperator(v)
	return nil
}

func (op *ComparisonOperator) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(comparisonOperatorNames, data, "comparison operator")
	if err != nil {
		return err
	}
	*op = ComparisonOperator(v)
	return nil
}

// ParseComparisonOperator parses a name such as "StW" (case-insensitive) or
// its 1-based numeric code.
func ParseComparisonOperator(s string) (ComparisonOperator, error) {
	var op ComparisonOperator
	err := op.UnmarshalText([]byte(s))
	return op, err
}

// LogicalOperator joins a filter node to the running result of its siblings.
// The zero value is LopAnd.
type LogicalOperator int

const (
	LopAnd LogicalOperator = iota
	LopOr
)

var logicalOperatorNames = []string{"And", "Or"}

func (lop LogicalOperator) String() string {
	return enumName(logicalOperatorNames, int(lop), "LogicalOperator")
}

func (lop LogicalOperator) MarshalText() ([]byte, error) {
	return marshalEnum(logicalOperatorNames, int(lop), "logical operator")
}

func (lop *LogicalOperator) UnmarshalText(text []byte) error {
	v, err := parseEnum(logicalOperatorNames, string(text), "logical operator")
	if err != nil {
		return err
	}
	*lop = LogicalOperator(v)
	return nil
}

func (lop *LogicalOperator) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(logicalOperatorNames, data, "logical operator")
	if err != nil {
		return err
	}
	*lop = LogicalOperator(v)
	return nil
}

// SortDirection is the direction of one sort entry. The zero value is Asc.
type SortDirection int

const (
	Asc SortDirection = iota
	Desc
)

var sortDirectionNames = []string{"Asc", "Desc"}

func (d SortDirection) String() string {
	return enumName(sortDirectionNames, int(d), "SortDirection")
}

func (d SortDirection) MarshalText() ([]byte, error) {
	return marshalEnum(sortDirectionNames, int(d), "sort direction")
}

func (d *SortDirection) UnmarshalText(text []byte) error {
	v, err := parseEnum(sortDirectionNames, string(text), "sort direction")
	if err != nil {
		return err
	}
	*d = SortDirection(v)
	return nil
}

func (d *SortDirection) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(sortDirectionNames, data, "sort direction")
	if err != nil {
		return err
	}
	*d = SortDirection(v)
	return nil
}

func enumName(names []string, v int, typ string) string {
	if v < 0 || v >= len(names) {
		return typ + "(" + strconv.Itoa(v) + ")"
	}
	return names[v]
}

func marshalEnum(names []string, v int, kind string) ([]byte, error) {
	if v < 0 || v >= len(names) {
		return nil, errors.Errorf("invalid %s %d", kind, v)
	}
	return []byte(names[v]), nil
}

// parseEnum accepts a case-insensitive name or a 1-based numeric code.
func parseEnum(names []string, s string, kind string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for i, name := range names {
		if strings.EqualFold(name, s) {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(names) {
		return n - 1, nil
	}
	return 0, errors.Errorf("invalid %s %q", kind, s)
}

func unmarshalEnumJSON(names []string, data []byte, kind string) (int, error) {
	iter := jsoniter.ConfigDefault.BorrowIterator(data)
	defer jsoniter.ConfigDefault.ReturnIterator(iter)

	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		return 0, nil
	case jsoniter.NumberValue:
		n := iter.ReadInt()
		if iter.Error != nil {
			return 0, errors.Wrapf(iter.Error, "read %s", kind)
		}
		return parseEnum(names, strconv.Itoa(n), kind)
	case jsoniter.StringValue:
		s := iter.ReadString()
		if iter.Error != nil {
			return 0, errors.Wrapf(iter.Error, "read %s", kind)
		}
		return parseEnum(names, s, kind)
	default:
		return 0, errors.Errorf("invalid %s %s", kind, string(data))
	}
}
