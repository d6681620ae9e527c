package gostruct

import (
	"database/sql/driver"
	"encoding/hex"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

/*
Category of a column's native SQL type. Only the large-object categories
change marshaling behavior; the rest are informational.
*/
type SqlType int

const (
	SqlOther SqlType = iota
	SqlVarchar
	SqlInteger
	SqlBigint
	SqlDouble
	SqlBoolean
	SqlTimestamp
	SqlVarbinary
	SqlArray
	SqlBlob
	SqlMaterializedBlob
	SqlClob
	SqlMaterializedClob
	SqlNClob
	SqlMaterializedNClob
)

var sqlTypeNames = [...]string{
	SqlOther:             `other`,
	SqlVarchar:           `varchar`,
	SqlInteger:           `integer`,
	SqlBigint:            `bigint`,
	SqlDouble:            `double`,
	SqlBoolean:           `boolean`,
	SqlTimestamp:         `timestamp`,
	SqlVarbinary:         `varbinary`,
	SqlArray:             `array`,
	SqlBlob:              `blob`,
	SqlMaterializedBlob:  `materialized_blob`,
	SqlClob:              `clob`,
	SqlMaterializedClob:  `materialized_clob`,
	SqlNClob:             `nclob`,
	SqlMaterializedNClob: `materialized_nclob`,
}

func (self SqlType) String() string {
	if self >= 0 && int(self) < len(sqlTypeNames) {
		return sqlTypeNames[self]
	}
	return `SqlType(` + strconv.Itoa(int(self)) + `)`
}

func (self SqlType) IsLob() bool {
	switch self {
	case SqlBlob, SqlMaterializedBlob,
		SqlClob, SqlMaterializedClob,
		SqlNClob, SqlMaterializedNClob:
		return true
	default:
		return false
	}
}

// Binary large object handle, as bound inside native structs.
type Blob struct{ Bytes []byte }

// Character large object handle, as bound inside native structs.
type Clob struct{ Text string }

// National character large object handle, as bound inside native structs.
type NClob struct{ Text string }

// Implement `driver.Valuer`.
func (self Blob) Value() (driver.Value, error) { return self.Bytes, nil }

// Implement `driver.Valuer`.
func (self Clob) Value() (driver.Value, error) { return self.Text, nil }

// Implement `driver.Valuer`.
func (self NClob) Value() (driver.Value, error) { return self.Text, nil }

/*
Scalar conversions for one column:

	native --Wrap--> relational --ToDomain--> domain
	domain --ToRelational--> relational --BindValue/UnwrapLob--> native

`UnwrapLob` is used instead of `BindValue` for large-object SQL types and must
return a `Blob`, `Clob` or `NClob`.
*/
type Converter interface {
	Wrap(native interface{}, opts *Options) (interface{}, error)
	ToDomain(relational interface{}) (interface{}, error)
	ToRelational(domain interface{}) (interface{}, error)
	BindValue(relational interface{}, opts *Options) (interface{}, error)
	UnwrapLob(relational interface{}, sqlType SqlType, opts *Options) (interface{}, error)
}

/*
Reflection-based `Converter`. `Type` is the Go type of relational values;
native values are coerced into it by `Wrap`. When nil, native values pass
through untouched. Hooks are optional and are never called with nil: nil
converts to nil in both directions.
*/
type Conv struct {
	Type       reflect.Type
	Domain     func(interface{}) (interface{}, error)
	Relational func(interface{}) (interface{}, error)
	Bind       func(interface{}, *Options) (interface{}, error)
}

// Shortcut for a `Conv` whose relational type is the type of the given value.
func ConvOf(value interface{}) Conv {
	return Conv{Type: reflect.TypeOf(value)}
}

func (self Conv) Wrap(native interface{}, _ *Options) (interface{}, error) {
	return wrapNative(native, self.Type)
}

func (self Conv) ToDomain(value interface{}) (interface{}, error) {
	if self.Domain == nil || isNil(value) {
		return value, nil
	}
	return self.Domain(value)
}

func (self Conv) ToRelational(value interface{}) (interface{}, error) {
	if self.Relational == nil || isNil(value) {
		return value, nil
	}
	return self.Relational(value)
}

func (self Conv) BindValue(value interface{}, opts *Options) (interface{}, error) {
	if self.Bind != nil {
		return self.Bind(value, opts)
	}
	valuer, ok := value.(driver.Valuer)
	if ok {
		return valuer.Value()
	}
	return value, nil
}

func (self Conv) UnwrapLob(value interface{}, sqlType SqlType, _ *Options) (interface{}, error) {
	return unwrapLob(value, sqlType)
}

func unwrapLob(value interface{}, sqlType SqlType) (interface{}, error) {
	switch sqlType {
	case SqlBlob, SqlMaterializedBlob:
		switch value := value.(type) {
		case Blob:
			return value, nil
		case []byte:
			return Blob{Bytes: value}, nil
		case string:
			return Blob{Bytes: []byte(value)}, nil
		}

	case SqlClob, SqlMaterializedClob:
		switch value := value.(type) {
		case Clob:
			return value, nil
		case string:
			return Clob{Text: value}, nil
		case []byte:
			return Clob{Text: string(value)}, nil
		}

	case SqlNClob, SqlMaterializedNClob:
		switch value := value.(type) {
		case NClob:
			return value, nil
		case string:
			return NClob{Text: value}, nil
		case []byte:
			return NClob{Text: string(value)}, nil
		}

	default:
		return nil, errors.Errorf(`%v is not a large object type`, sqlType)
	}
	return nil, errors.Errorf(`can't unwrap %T as %v`, value, sqlType)
}

/*
Converter for discriminators. Domain values are subtype names, relational
values are the stored codes. Codes must be comparable and share one Go type.
Unknown codes fail with `ErrUnknownDiscriminator`.
*/
func DiscriminatorConv(codes map[string]interface{}) Conv {
	names := make(map[interface{}]string, len(codes))
	var rtype reflect.Type
	for name, code := range codes {
		names[code] = name
		rtype = reflect.TypeOf(code)
	}

	return Conv{
		Type: rtype,
		Domain: func(code interface{}) (interface{}, error) {
			name, ok := names[code]
			if !ok {
				return nil, ErrUnknownDiscriminator.while(`converting discriminator`).because(
					errors.Errorf(`unknown discriminator code %#v`, code))
			}
			return name, nil
		},
		Relational: func(name interface{}) (interface{}, error) {
			str, _ := name.(string)
			code, ok := codes[str]
			if !ok {
				return nil, ErrUnknownDiscriminator.while(`converting discriminator`).because(
					errors.Errorf(`unknown subtype %#v`, name))
			}
			return code, nil
		},
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	`2006-01-02 15:04:05.999999999Z07:00`,
	`2006-01-02 15:04:05.999999999Z07`,
	`2006-01-02 15:04:05.999999999`,
	`2006-01-02`,
}

/*
Coerces a driver value into the given type. Handles large-object handles,
pointers, numeric widening and narrowing, named string types, and the text
representations returned by drivers for values nested in composites.
*/
func wrapNative(native interface{}, rtype reflect.Type) (interface{}, error) {
	if native == nil || rtype == nil {
		return native, nil
	}

	switch value := native.(type) {
	case Blob:
		native = value.Bytes
	case Clob:
		native = value.Text
	case NClob:
		native = value.Text
	}

	rval := reflect.ValueOf(native)
	if rval.Type() == rtype {
		return native, nil
	}

	if rtype.Kind() == reflect.Ptr {
		elem, err := wrapNative(native, rtype.Elem())
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return nil, nil
		}
		ptr := reflect.New(rtype.Elem())
		ptr.Elem().Set(reflect.ValueOf(elem))
		return ptr.Interface(), nil
	}

	if rval.Kind() == reflect.Ptr {
		if rval.IsNil() {
			return nil, nil
		}
		return wrapNative(rval.Elem().Interface(), rtype)
	}

	switch value := native.(type) {
	case []byte:
		if rtype.Kind() == reflect.Slice && rtype.Elem().Kind() == reflect.Uint8 {
			return reflect.ValueOf(value).Convert(rtype).Interface(), nil
		}
		return parseText(string(value), rtype)
	case string:
		if rtype.Kind() == reflect.String {
			return reflect.ValueOf(value).Convert(rtype).Interface(), nil
		}
		return parseText(value, rtype)
	}

	if isConvertibleKind(rval.Kind(), rtype.Kind()) {
		out, err := convertKind(rval, rtype)
		if err != nil {
			return nil, err
		}
		return out.Interface(), nil
	}

	valuer, ok := native.(driver.Valuer)
	if ok {
		inner, err := valuer.Value()
		if err != nil {
			return nil, errors.Wrapf(err, `reading %T`, native)
		}
		return wrapNative(inner, rtype)
	}

	return nil, errors.Errorf(`can't convert %T to %v`, native, rtype)
}

/*
Converts between kinds accepted by `isConvertibleKind`. Numeric conversions
must preserve the value: integers must fit the target, and floats going to
integers must be whole.
*/
func convertKind(rval reflect.Value, rtype reflect.Type) (reflect.Value, error) {
	if isNumericKind(rval.Kind()) && !fitsKind(rval, rtype) {
		return reflect.Value{}, errors.Errorf(`value %v can't be represented as %v`, rval, rtype)
	}
	return rval.Convert(rtype), nil
}

func fitsKind(rval reflect.Value, rtype reflect.Type) bool {
	target := reflect.Zero(rtype)

	switch {
	case isFloatKind(rtype.Kind()):
		return !isFloatKind(rval.Kind()) || !target.OverflowFloat(rval.Float())

	case isIntKind(rtype.Kind()):
		switch {
		case isIntKind(rval.Kind()):
			return !target.OverflowInt(rval.Int())
		case isUintKind(rval.Kind()):
			return rval.Uint() <= math.MaxInt64 && !target.OverflowInt(int64(rval.Uint()))
		default:
			val := rval.Float()
			return val == math.Trunc(val) && val >= -(1<<63) && val < 1<<63 &&
				!target.OverflowInt(int64(val))
		}

	case isUintKind(rtype.Kind()):
		switch {
		case isIntKind(rval.Kind()):
			return rval.Int() >= 0 && !target.OverflowUint(uint64(rval.Int()))
		case isUintKind(rval.Kind()):
			return !target.OverflowUint(rval.Uint())
		default:
			val := rval.Float()
			return val == math.Trunc(val) && val >= 0 && val < 1<<64 &&
				!target.OverflowUint(uint64(val))
		}
	}
	return true
}

func isIntKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func isUintKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}

func isFloatKind(kind reflect.Kind) bool {
	return kind == reflect.Float32 || kind == reflect.Float64
}

func isConvertibleKind(src, dst reflect.Kind) bool {
	return (isNumericKind(src) && isNumericKind(dst)) ||
		(src == reflect.Bool && dst == reflect.Bool) ||
		(src == reflect.String && dst == reflect.String)
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func parseText(text string, rtype reflect.Type) (interface{}, error) {
	if rtype == timeRtype {
		for _, layout := range timeLayouts {
			out, err := time.Parse(layout, text)
			if err == nil {
				return out, nil
			}
		}
		return nil, errors.Errorf(`can't parse %q as time`, text)
	}

	out := reflect.New(rtype).Elem()

	switch rtype.Kind() {
	case reflect.String:
		out.SetString(text)

	case reflect.Slice:
		if rtype.Elem().Kind() != reflect.Uint8 {
			ptr := reflect.New(rtype)
			err := pq.Array(ptr.Interface()).Scan(text)
			if err != nil {
				return nil, errors.Wrapf(err, `parsing %q as %v`, text, rtype)
			}
			return ptr.Elem().Interface(), nil
		}
		bytes := []byte(text)
		if strings.HasPrefix(text, `\x`) {
			var err error
			bytes, err = hex.DecodeString(text[2:])
			if err != nil {
				return nil, errors.Wrapf(err, `decoding bytea %q`, text)
			}
		}
		out.SetBytes(bytes)

	case reflect.Bool:
		val, err := strconv.ParseBool(text)
		if err != nil {
			return nil, errors.Wrapf(err, `parsing %q as %v`, text, rtype)
		}
		out.SetBool(val)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val, err := strconv.ParseInt(text, 10, rtype.Bits())
		if err != nil {
			return nil, errors.Wrapf(err, `parsing %q as %v`, text, rtype)
		}
		out.SetInt(val)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		val, err := strconv.ParseUint(text, 10, rtype.Bits())
		if err != nil {
			return nil, errors.Wrapf(err, `parsing %q as %v`, text, rtype)
		}
		out.SetUint(val)

	case reflect.Float32, reflect.Float64:
		val, err := strconv.ParseFloat(text, rtype.Bits())
		if err != nil {
			return nil, errors.Wrapf(err, `parsing %q as %v`, text, rtype)
		}
		out.SetFloat(val)

	default:
		return nil, errors.Errorf(`can't parse %q as %v`, text, rtype)
	}

	return out.Interface(), nil
}
