package gostruct

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/mitranim/refut"
)

/*
Database connection passed to `Query()`. Satisfied by `*sql.DB`, `*sql.Tx`,
may be satisfied by other types.
*/
type Queryer interface {
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

/*
Decodes rows into composite values one at a time. Used similarly to
`*sql.Rows`. Must be closed after finishing.
*/
type Scanner interface {
	Next() bool
	Err() error
	Close() error
	Scan(dest interface{}) error
}

/*
Executes an SQL query and prepares a `Scanner` that decodes each row through
`ExtractAndInstantiate`. Result columns are matched to the mapping by name:
they must be exactly `Cols(mapping)`, in any order. Aggregate-mode composites
are selected as a single column.

Example:

	scan, err := QueryScanner(ctx, conn, mapping, opts, query, args)
	panic(err)
	defer scan.Close()

	for scan.Next() {
		var result ResultType
		err := scan.Scan(&result)
		panic(err)
	}
*/
func QueryScanner(
	ctx context.Context, conn Queryer, mapping *Mapping, opts *Options, query string, args []interface{},
) (Scanner, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Err{While: `querying rows`, Cause: err}
	}
	return &scanner{Rows: rows, mapping: mapping, opts: opts}, nil
}

/*
Shortcut for decoding rows into the destination, which may be a pointer to a
single value or a pointer to a slice. Destination elements may be the domain
type, a pointer to it, or an interface it satisfies.

If the destination is a non-slice, there must be exactly one row. Less or more
will result in an error.
*/
func Query(
	ctx context.Context, conn Queryer, mapping *Mapping, opts *Options,
	dest interface{}, query string, args []interface{},
) error {
	err := validateDest(dest)
	if err != nil {
		return err
	}

	scan, err := QueryScanner(ctx, conn, mapping, opts, query, args)
	if err != nil {
		return err
	}
	defer scan.Close()

	if rtypeDerefKind(reflect.TypeOf(dest)) == reflect.Slice {
		return scanMany(dest, scan)
	}
	return scanOne(dest, scan)
}

/* Internal */

func scanMany(dest interface{}, scan Scanner) error {
	rval := reflect.ValueOf(dest)
	sliceRval := refut.RvalDerefAlloc(rval)
	truncateSliceRval(sliceRval)

	elemRtype := sliceRval.Type().Elem()

	for scan.Next() {
		ptrRval := reflect.New(elemRtype)

		err := scan.Scan(ptrRval.Interface())
		if err != nil {
			return err
		}

		sliceRval.Set(reflect.Append(sliceRval, ptrRval.Elem()))
	}

	err := scan.Err()
	if err != nil {
		return Err{While: `iterating rows`, Cause: err}
	}
	return nil
}

func scanOne(dest interface{}, scan Scanner) error {
	if !scan.Next() {
		err := scan.Err()
		if err != nil {
			return Err{While: `preparing row`, Cause: err}
		}
		return ErrNoRows.while(`preparing row`)
	}

	err := scan.Scan(dest)
	if err != nil {
		return err
	}

	if scan.Next() {
		return ErrMultipleRows.while(`verifying row count`)
	}
	return nil
}

type scanner struct {
	*sql.Rows
	mapping *Mapping
	opts    *Options

	// positions[i] is the result column holding canonical native value i.
	positions []int
}

func (self *scanner) Scan(dest interface{}) error {
	err := validateDest(dest)
	if err != nil {
		return err
	}

	if self.positions == nil {
		positions, err := prepareColumnPositions(self.Rows, self.mapping)
		if err != nil {
			return err
		}
		self.positions = positions
	}

	cols := make([]interface{}, len(self.positions))
	colPtrs := make([]interface{}, len(cols))
	for i := range cols {
		colPtrs[i] = &cols[i]
	}

	err = self.Rows.Scan(colPtrs...)
	if err != nil {
		return ErrScan.because(err)
	}

	native := make([]interface{}, len(cols))
	for i, col := range self.positions {
		native[i] = cols[col]
	}

	value, err := ExtractAndInstantiate(self.mapping, native, self.opts)
	if err != nil {
		return err
	}

	target := reflect.ValueOf(dest).Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	err = setField(target, value)
	if err != nil {
		return ErrInvalidDest.while(`decoding row`).because(err)
	}
	return nil
}

func prepareColumnPositions(rows *sql.Rows, mapping *Mapping) ([]int, error) {
	colNames, err := rows.Columns()
	if err != nil {
		return nil, Err{While: `getting columns`, Cause: err}
	}

	expected := Cols(mapping)
	if len(colNames) != len(expected) {
		return nil, mismatchErr(`matching columns`,
			`mapping %q expects %d columns %q, got %d columns %q`,
			mapping.Name, len(expected), expected, len(colNames), colNames)
	}

	positions := make([]int, len(expected))
	for i, name := range expected {
		index := stringIndex(colNames, name)
		if index < 0 {
			return nil, mismatchErr(`matching columns`,
				`column %q of mapping %q is missing from the result`, name, mapping.Name)
		}
		positions[i] = index
	}
	return positions, nil
}

func validateDest(dest interface{}) error {
	rval := reflect.ValueOf(dest)
	if rval.IsValid() && rval.Kind() == reflect.Ptr && !rval.IsNil() {
		return nil
	}
	return ErrInvalidDest.because(fmt.Errorf(`destination must be a non-nil pointer, received %#v`, dest))
}

func stringIndex(strs []string, str string) int {
	for i := range strs {
		if strs[i] == str {
			return i
		}
	}
	return -1
}

func rtypeDerefKind(rtype reflect.Type) reflect.Kind {
	if rtype == nil {
		return reflect.Invalid
	}
	return refut.RtypeDeref(rtype).Kind()
}

func truncateSliceRval(rval reflect.Value) {
	if rval.Len() > 0 {
		rval.SetLen(0)
	}
}
