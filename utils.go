package gostruct

import (
	"database/sql"
	"reflect"
	"strings"
	"time"

	"github.com/mitranim/refut"
)

var timeRtype = reflect.TypeOf(time.Time{})
var sqlScannerRtype = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

func isScannableRtype(rtype reflect.Type) bool {
	return rtype != nil &&
		(rtype == timeRtype || reflect.PtrTo(rtype).Implements(sqlScannerRtype))
}

func isRtypeStructNonScannable(rtype reflect.Type) bool {
	return rtype != nil && rtype.Kind() == reflect.Struct && !isScannableRtype(rtype)
}

func isNil(value interface{}) bool {
	return refut.IsNil(value)
}

func allNil(values []interface{}) bool {
	for _, value := range values {
		if !isNil(value) {
			return false
		}
	}
	return true
}

func copyIntSlice(vals []int) []int {
	out := make([]int, len(vals), len(vals))
	copy(out, vals)
	return out
}

func sfieldColumnName(sfield reflect.StructField) string {
	return refut.TagIdent(sfield.Tag.Get("db"))
}

// Options following the column name in a `db` tag, like `db:"name,aggregate"`.
func sfieldTagOptions(sfield reflect.StructField) []string {
	tag := sfield.Tag.Get("db")
	index := strings.IndexByte(tag, ',')
	if index < 0 {
		return nil
	}
	return strings.Split(tag[index+1:], ",")
}

func hasTagOption(opts []string, opt string) bool {
	for _, val := range opts {
		if strings.TrimSpace(val) == opt {
			return true
		}
	}
	return false
}

/*
Returns the value at the given field path, or an invalid value if the path
crosses a nil pointer. Doesn't allocate.
*/
func rvalFieldByPath(rval reflect.Value, path []int) reflect.Value {
	for _, index := range path {
		for rval.Kind() == reflect.Ptr {
			if rval.IsNil() {
				return reflect.Value{}
			}
			rval = rval.Elem()
		}
		rval = rval.Field(index)
	}
	return rval
}

// Dereferences pointers, returning nil for nil pointers.
func rvalInterfaceDeref(rval reflect.Value) interface{} {
	for rval.IsValid() && rval.Kind() == reflect.Ptr {
		if rval.IsNil() {
			return nil
		}
		rval = rval.Elem()
	}
	if !rval.IsValid() {
		return nil
	}
	return rval.Interface()
}
