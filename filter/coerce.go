package filter

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/theplant/sortfilter/schema"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// parseNumber converts raw to the literal compared against a numeric member.
// Floating members get a value rounded to 0 places when round is set.
func parseNumber(raw string, m *schema.Member, round bool) (any, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	if m.Floating && round {
		d = d.Round(0)
	}
	switch {
	case m.Underlying == decimalType:
		return d, true
	case m.Floating:
		return d.InexactFloat64(), true
	case d.IsInteger():
		return d.IntPart(), true
	default:
		return d.InexactFloat64(), true
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// parseDate returns the calendar date written in raw. A time of day or an
// offset in raw does not move the date.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// dayRange returns the first and the last second of date in loc, in UTC.
func dayRange(date time.Time, loc *time.Location) (start, end time.Time) {
	y, m, d := date.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
	end = time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Second).UTC()
	return start, end
}

var locations sync.Map // zone name -> *time.Location

func loadLocation(name string) (*time.Location, error) {
	if v, ok := locations.Load(name); ok {
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", name)
	}
	locations.Store(name, loc)
	return loc, nil
}

func parseUUID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// convert is the generic conversion for members that are not strings,
// numbers, dates, enums or UUIDs.
func convert(raw string, rt reflect.Type) (any, error) {
	if reflect.PointerTo(rt).Implements(textUnmarshalerType) {
		v := reflect.New(rt)
		if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw)); err != nil {
			return nil, errors.Wrapf(ErrInvalidValue, "%q for %s: %v", raw, rt, err)
		}
		return v.Elem().Interface(), nil
	}

	switch rt.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidValue, "%q for %s", raw, rt)
		}
		return reflect.ValueOf(b).Convert(rt).Interface(), nil
	case reflect.String:
		return reflect.ValueOf(raw).Convert(rt).Interface(), nil
	}
	return nil, errors.Wrapf(ErrInvalidValue, "unsupported type %s", rt)
}
