package mongofilter

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/datatypes"
)

var (
	tUUID    = reflect.TypeFor[uuid.UUID]()
	tDecimal = reflect.TypeFor[decimal.Decimal]()
	tDate    = reflect.TypeFor[datatypes.Date]()
)

// NewRegistry returns the default registry of the driver with codecs for
// uuid.UUID (binary subtype 4), decimal.Decimal (decimal128) and
// datatypes.Date (UTC midnight). Documents filtered on those types must be
// written through it, e.g. with options.Client().SetRegistry.
func NewRegistry() *bsoncodec.Registry {
	r := bson.NewRegistry()
	r.RegisterTypeEncoder(tUUID, bsoncodec.ValueEncoderFunc(encodeUUID))
	r.RegisterTypeDecoder(tUUID, bsoncodec.ValueDecoderFunc(decodeUUID))
	r.RegisterTypeEncoder(tDecimal, bsoncodec.ValueEncoderFunc(encodeDecimal))
	r.RegisterTypeDecoder(tDecimal, bsoncodec.ValueDecoderFunc(decodeDecimal))
	r.RegisterTypeEncoder(tDate, bsoncodec.ValueEncoderFunc(encodeDate))
	r.RegisterTypeDecoder(tDate, bsoncodec.ValueDecoderFunc(decodeDate))
	return r
}

func uuidBinary(id uuid.UUID) primitive.Binary {
	return primitive.Binary{Subtype: bsontype.BinaryUUID, Data: id[:]}
}

func decimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	return v, errors.Wrapf(err, "decimal %s", d)
}

func dateTime(d datatypes.Date) primitive.DateTime {
	y, m, day := time.Time(d).Date()
	return primitive.NewDateTimeFromTime(time.Date(y, m, day, 0, 0, 0, 0, time.UTC))
}

func encodeUUID(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tUUID {
		return bsoncodec.ValueEncoderError{Name: "encodeUUID", Types: []reflect.Type{tUUID}, Received: val}
	}
	b := uuidBinary(val.Interface().(uuid.UUID))
	return vw.WriteBinaryWithSubtype(b.Data, b.Subtype)
}

func decodeUUID(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tUUID {
		return bsoncodec.ValueDecoderError{Name: "decodeUUID", Types: []reflect.Type{tUUID}, Received: val}
	}

	var id uuid.UUID
	switch vr.Type() {
	case bsontype.Binary:
		data, _, err := vr.ReadBinary()
		if err != nil {
			return err
		}
		if id, err = uuid.FromBytes(data); err != nil {
			return errors.Wrap(err, "decode uuid")
		}
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		if id, err = uuid.Parse(s); err != nil {
			return errors.Wrap(err, "decode uuid")
		}
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
	default:
		return errors.Errorf("cannot decode %s into a uuid", vr.Type())
	}
	val.Set(reflect.ValueOf(id))
	return nil
}

func encodeDecimal(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tDecimal {
		return bsoncodec.ValueEncoderError{Name: "encodeDecimal", Types: []reflect.Type{tDecimal}, Received: val}
	}
	d, err := decimal128(val.Interface().(decimal.Decimal))
	if err != nil {
		return err
	}
	return vw.WriteDecimal128(d)
}

func decodeDecimal(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tDecimal {
		return bsoncodec.ValueDecoderError{Name: "decodeDecimal", Types: []reflect.Type{tDecimal}, Received: val}
	}

	var d decimal.Decimal
	switch vr.Type() {
	case bsontype.Decimal128:
		v, err := vr.ReadDecimal128()
		if err != nil {
			return err
		}
		if d, err = decimal.NewFromString(v.String()); err != nil {
			return errors.Wrap(err, "decode decimal")
		}
	case bsontype.Double:
		v, err := vr.ReadDouble()
		if err != nil {
			return err
		}
		d = decimal.NewFromFloat(v)
	case bsontype.Int32:
		v, err := vr.ReadInt32()
		if err != nil {
			return err
		}
		d = decimal.NewFromInt32(v)
	case bsontype.Int64:
		v, err := vr.ReadInt64()
		if err != nil {
			return err
		}
		d = decimal.NewFromInt(v)
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
	default:
		return errors.Errorf("cannot decode %s into a decimal", vr.Type())
	}
	val.Set(reflect.ValueOf(d))
	return nil
}

func encodeDate(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tDate {
		return bsoncodec.ValueEncoderError{Name: "encodeDate", Types: []reflect.Type{tDate}, Received: val}
	}
	return vw.WriteDateTime(int64(dateTime(val.Interface().(datatypes.Date))))
}

func decodeDate(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tDate {
		return bsoncodec.ValueDecoderError{Name: "decodeDate", Types: []reflect.Type{tDate}, Received: val}
	}

	var d datatypes.Date
	switch vr.Type() {
	case bsontype.DateTime:
		ms, err := vr.ReadDateTime()
		if err != nil {
			return err
		}
		d = datatypes.Date(primitive.DateTime(ms).Time().UTC())
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
	default:
		return errors.Errorf("cannot decode %s into a date", vr.Type())
	}
	val.Set(reflect.ValueOf(d))
	return nil
}
