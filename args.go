package gostruct

import (
	"fmt"
	"strconv"

	"github.com/lib/pq"
)

/*
Converts a composite value into named SQL arguments, one per flattened
column, in canonical order. Names come from `Cols(mapping)`, values from
`Build(mapping, nil, domain, opts)`: driver-ready, with aggregate-mode
composites as single native struct values. A nil domain value produces nil
values.
*/
func MappingSqlArgs(mapping *Mapping, domain interface{}, opts *Options) (SqlArgs, error) {
	values, err := Build(mapping, nil, domain, opts)
	if err != nil {
		return nil, err
	}

	names := Cols(mapping)
	if len(names) != len(values) {
		return nil, mismatchErr(`building SQL args for `+mapping.Name,
			`%d columns but %d values`, len(names), len(values))
	}

	args := make(SqlArgs, len(values))
	for i := range values {
		args[i] = SqlArg{Name: names[i], Value: values[i]}
	}
	return args, nil
}

/*
Sequence of named SQL arguments with utility methods for query building.
Usually obtained by calling `MappingSqlArgs()`. Names are quoted with
`pq.QuoteIdentifier`; placeholders use the Postgres style `$N`.
*/
type SqlArgs []SqlArg

// Same as `sql.NamedArg`, with additional methods. See `SqlArgs`.
type SqlArg struct {
	Name  string
	Value interface{}
}

func (self SqlArg) IsNil() bool { return isNil(self.Value) }

// Returns the argument names.
func (self SqlArgs) Names() []string {
	names := make([]string, 0, len(self))
	for _, arg := range self {
		names = append(names, arg.Name)
	}
	return names
}

// Returns the argument values.
func (self SqlArgs) Values() []interface{} {
	values := make([]interface{}, 0, len(self))
	for _, arg := range self {
		values = append(values, arg.Value)
	}
	return values
}

/*
Returns comma-separated quoted names, suitable for a `select` clause. Example:

	args := gostruct.SqlArgs{{"one", 10}, {"two.three", 20}}

	// Output:
	`"one", "two.three"`
*/
func (self SqlArgs) NamesString() string {
	var buf []byte
	for i, arg := range self {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, pq.QuoteIdentifier(arg.Name)...)
	}
	return string(buf)
}

// Returns placeholders like `$1, $2`, suitable for a `values` clause.
func (self SqlArgs) ValuesString() string {
	var buf []byte
	for i := range self {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(i+1), 10)
	}
	return string(buf)
}

/*
Returns the string of names and values suitable for an `insert` clause. Example:

	args := gostruct.SqlArgs{{"one", 10}, {"two", 20}}

	fmt.Sprintf(`insert into some_table %v`, args.NamesAndValuesString())

	// Output:
	`insert into some_table ("one", "two") values ($1, $2)`
*/
func (self SqlArgs) NamesAndValuesString() string {
	if len(self) == 0 {
		return "default values"
	}
	return fmt.Sprintf("(%v) values (%v)", self.NamesString(), self.ValuesString())
}

/*
Returns the string of assignments suitable for an `update set` clause. Example:

	args := gostruct.SqlArgs{{"one", 10}, {"two", 20}}

	// Output:
	`"one" = $1, "two" = $2`
*/
func (self SqlArgs) AssignmentsString() string {
	var buf []byte
	for i, arg := range self {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, pq.QuoteIdentifier(arg.Name)...)
		buf = append(buf, " = $"...)
		buf = strconv.AppendInt(buf, int64(i+1), 10)
	}
	return string(buf)
}
