package schema

import (
	"database/sql/driver"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Category groups member types by how filter values are coerced and compared.
type Category int

const (
	CategoryOther Category = iota
	CategoryString
	CategoryNumeric
	CategoryTime
	CategoryDate
	CategoryEnum
	CategoryUUID
	CategoryRecord
)

var categoryNames = []string{"Other", "String", "Numeric", "Time", "Date", "Enum", "UUID", "Record"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Category(?)"
	}
	return categoryNames[c]
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	dateType    = reflect.TypeOf(datatypes.Date{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Member is an exported field of a record type, including fields promoted
// from embedded structs.
type Member struct {
	Name       string
	Type       reflect.Type // declared type
	Underlying reflect.Type // declared type with pointers removed
	Nullable   bool
	Category   Category
	Floating   bool  // float kinds and decimal.Decimal
	Index      []int // index sequence for reflect.Value.FieldByIndex
	Enum       *Enum
}

// Type is the member table of one record type.
type Type struct {
	Type    reflect.Type
	Members []*Member

	byName map[string]*Member
	byFold map[string][]*Member
}

// Member looks up a member by exact name first, then case-insensitively.
// A case-insensitive name matching more than one member is not found.
func (t *Type) Member(name string) (*Member, bool) {
	if m, ok := t.byName[name]; ok {
		return m, true
	}
	ms := t.byFold[strings.ToLower(name)]
	if len(ms) != 1 {
		return nil, false
	}
	return ms[0], true
}

func newType(rt reflect.Type, enums map[reflect.Type]*Enum) *Type {
	t := &Type{
		Type:   rt,
		byName: map[string]*Member{},
		byFold: map[string][]*Member{},
	}
	for _, f := range reflect.VisibleFields(rt) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if _, ok := t.byName[f.Name]; ok {
			continue
		}
		m := newMember(f, enums)
		t.Members = append(t.Members, m)
		t.byName[m.Name] = m
		key := strings.ToLower(m.Name)
		t.byFold[key] = append(t.byFold[key], m)
	}
	return t
}

func newMember(f reflect.StructField, enums map[reflect.Type]*Enum) *Member {
	m := &Member{
		Name:       f.Name,
		Type:       f.Type,
		Underlying: f.Type,
		Index:      f.Index,
	}
	for m.Underlying.Kind() == reflect.Ptr {
		m.Underlying = m.Underlying.Elem()
		m.Nullable = true
	}
	m.Category, m.Floating = categorize(m.Underlying, enums)
	if m.Category == CategoryEnum {
		m.Enum = enums[m.Underlying]
	}
	return m
}

func categorize(rt reflect.Type, enums map[reflect.Type]*Enum) (Category, bool) {
	if _, ok := enums[rt]; ok {
		return CategoryEnum, false
	}
	switch rt {
	case timeType:
		return CategoryTime, false
	case dateType:
		return CategoryDate, false
	case uuidType:
		return CategoryUUID, false
	case decimalType:
		return CategoryNumeric, true
	}
	switch rt.Kind() {
	case reflect.String:
		return CategoryString, false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return CategoryNumeric, false
	case reflect.Float32, reflect.Float64:
		return CategoryNumeric, true
	case reflect.Struct:
		// sql scalar wrappers such as gorm.DeletedAt are values, not records
		if rt.Implements(valuerType) || reflect.PointerTo(rt).Implements(valuerType) {
			return CategoryOther, false
		}
		return CategoryRecord, false
	}
	return CategoryOther, false
}
