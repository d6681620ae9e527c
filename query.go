package gostruct

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitranim/refut"
)

/*
Tool for building SQL queries around composite mappings. Text-oriented;
appends arbitrary SQL while keeping positional arguments consistent.

Encapsulates arguments and renumerates positional placeholders when appending,
so every chunk can count its parameters from `$1`. See `SqlQuery.Append()`.

Supports named parameters. See `SqlQuery.AppendNamed()`.

Selecting a mapping's columns from a query that returns composite columns is a
matter of `SqlQuery.WrapSelectCols()`, which unpacks flattened composites into
the dotted column names expected by `Query()`.

Biased towards Postgres-style positional parameters of the form `$N`.
*/
type SqlQuery struct {
	Text string
	Args []interface{}
}

/*
Appends to the query, inserting whitespace if necessary. Appends additional args
to `SqlQuery.Args`; renumerates the positional parameters like `$1`, `$2` in the
appended chunk, offsetting them by the previous length of `SqlQuery.Args`.

For example, this:

	var query SqlQuery
	query.Append(`where true`)
	query.Append(`and one = $1`, 10)
	query.Append(`and two = $1`, 20) // Note the $1.

Becomes this:

	SqlQuery{
		Text: `where true and one = $1 and two = $2`,
		Args: []interface{}{10, 20},
	}
*/
func (self *SqlQuery) Append(chunk string, args ...interface{}) {
	chunk = sqlRenumerateOrdinalParams(chunk, len(self.Args))
	if self.Text != "" && !isWhitespaceBetween(self.Text, chunk) {
		self.Text += " "
	}
	self.Text += chunk
	self.Args = append(self.Args, args...)
}

// Variant of `SqlQuery.Append` that only appends if the argument is not nil.
func (self *SqlQuery) MaybeAppend(chunk string, arg interface{}) {
	if !refut.IsNil(arg) {
		self.Append(chunk, arg)
	}
}

/*
Similar to `SqlQuery.Append()`, but uses named parameters of the form
`:identifier`, replacing them with positional placeholders and appending the
corresponding values to `SqlQuery.Args`. Postgres casts like `::text` are left
alone.

Panics with `ErrInvalidInput` on missing named parameters. Ignores unused ones.

Example:

	var query SqlQuery
	query.AppendNamed(`select :value`, map[string]interface{}{"value": 10})

Resulting state:

	SqlQuery{Text: `select $1`, Args: []interface{}{10}}
*/
func (self *SqlQuery) AppendNamed(chunk string, namedArgs map[string]interface{}) {
	if self.Text != "" && !isWhitespaceBetween(self.Text, chunk) {
		self.Text += " "
	}
	self.Text += namedParamRegexp.ReplaceAllStringFunc(chunk, func(match string) string {
		// Go regexps have no lookbehind.
		if match[:2] == "::" {
			return match
		}
		name := match[1:]

		arg, ok := namedArgs[name]
		if !ok {
			panic(ErrInvalidInput.while(`calling AppendNamed`).because(
				fmt.Errorf(`missing argument for the named parameter %q`, name)))
		}

		self.Args = append(self.Args, arg)
		return "$" + strconv.Itoa(len(self.Args))
	})
}

var namedParamRegexp = regexp.MustCompile(`:?:\w+\b`)

/*
Interpolates the other query, replacing every occurrence of the pattern.
Renumerates the other query's placeholders and appends its args.

Example:

	var outer SqlQuery
	outer.Append(`select * from shipments where code = $1 {{WHERE}}`, `A-1`)

	var inner SqlQuery
	inner.Append(`and weight > $1`, 10)

	outer.QueryReplace(`{{WHERE}}`, inner)

Resulting state of `outer`:

	SqlQuery{
		Text: `select * from shipments where code = $1 and weight > $2`,
		Args: []interface{}{`A-1`, 10},
	}
*/
func (self *SqlQuery) QueryReplace(pattern string, other SqlQuery) {
	chunk := sqlRenumerateOrdinalParams(other.Text, len(self.Args))
	self.Text = strings.ReplaceAll(self.Text, pattern, chunk)
	self.Args = append(self.Args, other.Args...)
}

// Replaces the given string pattern inside the query.
func (self *SqlQuery) StringReplace(pattern string, chunk string) {
	self.Text = strings.ReplaceAll(self.Text, pattern, chunk)
}

/*
Wraps the query to select only the specified expressions. Example:

	var query SqlQuery
	query.Append(`select * from shipments`)
	query.WrapSelect(`code, weight`)

Resulting state:

	SqlQuery{Text: `with _ as (select * from shipments) select code, weight from _`}
*/
func (self *SqlQuery) WrapSelect(columns string) {
	self.Text = fmt.Sprintf(`with _ as (%v) select %v from _`, self.Text, columns)
}

/*
Wraps the query to select the columns of the mapping, as rendered by
`SelectCols()`. The inner query must return flattened composites as Postgres
composite columns named after their slots.
*/
func (self *SqlQuery) WrapSelectCols(mapping *Mapping) {
	self.WrapSelect(SelectCols(mapping))
}

/*
Makes a copy that doesn't share any mutable state with the original. Useful when
you want to "fork" a query and modify both versions.
*/
func (self SqlQuery) Copy() SqlQuery {
	args := self.Args
	if args != nil {
		self.Args = make([]interface{}, len(args), cap(args))
		copy(self.Args, args)
	}
	return self
}

// Shorter way to call `Query()`.
func (self SqlQuery) Query(ctx context.Context, conn Queryer, mapping *Mapping, opts *Options, dest interface{}) error {
	return Query(ctx, conn, mapping, opts, dest, self.Text, self.Args)
}

/*
Database connection passed to `SqlQuery.Exec()`. Satisfied by `*sql.DB`,
`*sql.Tx`.
*/
type Execer interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}

// Shorter way to call `ExecContext`.
func (self SqlQuery) Exec(ctx context.Context, conn Execer) (sql.Result, error) {
	return conn.ExecContext(ctx, self.Text, self.Args...)
}

/*
Renders the select list for the mapping's columns. Scalars and aggregate-mode
composites select their own column. Flattened composites are unpacked from
their composite column and aliased with the dotted name from `Cols()`:

	"code", ("origin")."x" as "origin.x", ("origin")."y" as "origin.y"
*/
func SelectCols(mapping *Mapping) string {
	return string(appendSelectCols(nil, mapping, nil))
}

func appendSelectCols(buf []byte, mapping *Mapping, path []string) []byte {
	for position := 0; position < mapping.Size(); position++ {
		slot := mapping.SlotAt(position)

		nested, ok := slot.(Nested)
		if ok && !nested.Mapping.Aggregate {
			buf = appendSelectCols(buf, nested.Mapping, append(path[:len(path):len(path)], nested.Name))
			continue
		}

		if len(buf) > 0 {
			buf = append(buf, `, `...)
		}
		if len(path) == 0 {
			buf = appendDelimited(buf, `"`, slot.SlotName(), `"`)
			continue
		}

		for i, name := range path {
			if i == 0 {
				buf = appendDelimited(buf, `("`, name, `")`)
			} else {
				buf = appendDelimited(buf, `"`, name, `"`)
			}
			buf = append(buf, `.`...)
		}
		buf = appendDelimited(buf, `"`, slot.SlotName(), `"`)
		buf = append(buf, ` as "`...)
		for _, name := range path {
			buf = append(buf, name...)
			buf = append(buf, `.`...)
		}
		buf = append(buf, slot.SlotName()...)
		buf = append(buf, `"`...)
	}
	return buf
}

func appendDelimited(buf []byte, prefix, infix, suffix string) []byte {
	buf = append(buf, prefix...)
	buf = append(buf, infix...)
	buf = append(buf, suffix...)
	return buf
}

func sqlRenumerateOrdinalParams(query string, offset int) string {
	if offset == 0 {
		return query
	}
	return postgresPositionalParamRegexp.ReplaceAllStringFunc(query, func(match string) string {
		num, err := strconv.Atoi(match[1:])
		if err != nil {
			panic(err)
		}
		return "$" + strconv.Itoa(num+offset)
	})
}

var postgresPositionalParamRegexp = regexp.MustCompile(`\$\d+\b`)

func isWhitespaceBetween(left string, right string) bool {
	return endWhitespaceRegexp.MatchString(left) || startWhitespaceRegexp.MatchString(right)
}

var startWhitespaceRegexp = regexp.MustCompile(`^\s`)
var endWhitespaceRegexp = regexp.MustCompile(`\s$`)
