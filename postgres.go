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
Dialect for Postgres composite types. Native struct values are `*Record`,
which the driver binds as a composite literal like `(1,"two words",)`.
Composite columns read through `database/sql` arrive as text and are parsed
back into positional text values; scalar converters coerce them into their Go
types.
*/
type Postgres struct{}

func (Postgres) BuildNativeStruct(mapping *Mapping, domain interface{}, opts *Options) (interface{}, error) {
	if isNil(domain) {
		return nil, nil
	}
	values, err := Build(mapping, nil, domain, opts)
	if err != nil {
		return nil, err
	}
	return &Record{TypeName: mapping.Name, Values: values}, nil
}

func (Postgres) NativeStructValues(mapping *Mapping, native interface{}, _ *Options) ([]interface{}, error) {
	switch native := native.(type) {
	case nil:
		return nil, nil
	case *Record:
		if native == nil {
			return nil, nil
		}
		return native.Values, nil
	case Record:
		return native.Values, nil
	case string:
		return parseMappingRecord(mapping, native)
	case []byte:
		return parseMappingRecord(mapping, string(native))
	default:
		return nil, errors.Errorf(`expected Postgres record, got %T`, native)
	}
}

// `()` is both a zero-field record and a one-field record holding null.
func parseMappingRecord(mapping *Mapping, text string) ([]interface{}, error) {
	values, err := parseRecord(text)
	if err != nil {
		return nil, err
	}
	if mapping != nil && mapping.ValueCount() == 0 && len(values) == 1 && values[0] == nil {
		return []interface{}{}, nil
	}
	return values, nil
}

/*
Postgres composite value. Implements `driver.Valuer` by encoding `Values` in
the composite text format, and `sql.Scanner` by decoding it. Decoded values
are strings, or nil for null fields.
*/
type Record struct {
	TypeName string
	Values   []interface{}
}

// Implement `driver.Valuer`.
func (self Record) Value() (driver.Value, error) {
	buf, err := self.appendLiteral(nil)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Implement `sql.Scanner`.
func (self *Record) Scan(src interface{}) error {
	var text string
	switch src := src.(type) {
	case nil:
		self.Values = nil
		return nil
	case string:
		text = src
	case []byte:
		text = string(src)
	default:
		return errors.Errorf(`can't scan %T into Postgres record`, src)
	}

	values, err := parseRecord(text)
	if err != nil {
		return err
	}
	self.Values = values
	return nil
}

// Record literal, like `(1,"two words",)`.
func (self Record) String() string {
	buf, err := self.appendLiteral(nil)
	if err != nil {
		return `<invalid record: ` + err.Error() + `>`
	}
	return string(buf)
}

func (self Record) appendLiteral(buf []byte) ([]byte, error) {
	buf = append(buf, '(')
	for i, value := range self.Values {
		if i > 0 {
			buf = append(buf, ',')
		}
		text, ok, err := recordFieldText(value)
		if err != nil {
			return nil, errors.Wrapf(err, `encoding field %d of record %q`, i, self.TypeName)
		}
		if ok {
			buf = appendRecordField(buf, text)
		}
	}
	return append(buf, ')'), nil
}

// Text of one record field. `ok` is false for null.
func recordFieldText(value interface{}) (text string, ok bool, err error) {
	switch value := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return value, true, nil
	case []byte:
		if value == nil {
			return "", false, nil
		}
		return `\x` + hex.EncodeToString(value), true, nil
	case bool:
		if value {
			return `t`, true, nil
		}
		return `f`, true, nil
	case int64:
		return strconv.FormatInt(value, 10), true, nil
	case float64:
		return formatFloat(value, 64), true, nil
	case float32:
		return formatFloat(float64(value), 32), true, nil
	case time.Time:
		return value.Format(`2006-01-02 15:04:05.999999999Z07:00`), true, nil
	case Blob:
		return recordFieldText(value.Bytes)
	case Clob:
		return value.Text, true, nil
	case NClob:
		return value.Text, true, nil
	case *Record:
		if value == nil {
			return "", false, nil
		}
		return recordFieldText(*value)
	case Record:
		buf, err := value.appendLiteral(nil)
		return string(buf), err == nil, err
	}

	rval := reflect.ValueOf(value)
	switch rval.Kind() {
	case reflect.Ptr:
		if rval.IsNil() {
			return "", false, nil
		}
		return recordFieldText(rval.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rval.Int(), 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rval.Uint(), 10), true, nil
	case reflect.String:
		return rval.String(), true, nil
	case reflect.Bool:
		return recordFieldText(rval.Bool())
	case reflect.Float32, reflect.Float64:
		return formatFloat(rval.Float(), rval.Type().Bits()), true, nil
	}

	if valuer, ok := value.(driver.Valuer); ok {
		inner, err := valuer.Value()
		if err != nil {
			return "", false, err
		}
		return recordFieldText(inner)
	}

	if rval.Kind() == reflect.Slice || rval.Kind() == reflect.Array {
		inner, err := pq.Array(value).Value()
		if err != nil {
			return "", false, err
		}
		return recordFieldText(inner)
	}

	return "", false, errors.Errorf(`unsupported record field type %T`, value)
}

func formatFloat(val float64, bits int) string {
	switch {
	case math.IsInf(val, 1):
		return `Infinity`
	case math.IsInf(val, -1):
		return `-Infinity`
	case math.IsNaN(val):
		return `NaN`
	}
	return strconv.FormatFloat(val, 'g', -1, bits)
}

// Appends a field, quoting when required by the composite text format.
func appendRecordField(buf []byte, text string) []byte {
	if !recordFieldNeedsQuotes(text) {
		return append(buf, text...)
	}

	buf = append(buf, '"')
	for i := 0; i < len(text); i++ {
		char := text[i]
		if char == '"' || char == '\\' {
			buf = append(buf, char)
		}
		buf = append(buf, char)
	}
	return append(buf, '"')
}

func recordFieldNeedsQuotes(text string) bool {
	if text == "" {
		return true
	}
	return strings.ContainsAny(text, "\"\\(),\t\n\v\f\r ")
}

/*
Parses a composite literal into positional values: strings for present fields,
nil for empty unquoted fields. An empty literal `()` yields one null field,
which is how Postgres prints a single-column record holding null.
*/
func parseRecord(text string) ([]interface{}, error) {
	if len(text) < 2 || text[0] != '(' || text[len(text)-1] != ')' {
		return nil, errors.Errorf(`malformed record literal %q`, text)
	}
	body := text[1 : len(text)-1]

	var out []interface{}
	var field strings.Builder
	quoted := false
	inQuotes := false

	flush := func() {
		if !quoted && field.Len() == 0 {
			out = append(out, nil)
		} else {
			out = append(out, field.String())
		}
		field.Reset()
		quoted = false
	}

	for i := 0; i < len(body); i++ {
		char := body[i]

		switch {
		case char == '\\' && i+1 < len(body):
			i++
			field.WriteByte(body[i])

		case inQuotes && char == '"':
			if i+1 < len(body) && body[i+1] == '"' {
				field.WriteByte('"')
				i++
			} else {
				inQuotes = false
			}

		case inQuotes:
			field.WriteByte(char)

		case char == '"':
			inQuotes = true
			quoted = true

		case char == ',':
			flush()

		default:
			field.WriteByte(char)
		}
	}

	if inQuotes {
		return nil, errors.Errorf(`unterminated quoted field in record literal %q`, text)
	}
	flush()
	return out, nil
}
