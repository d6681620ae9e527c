/*
Go Struct, tool for marshaling composite values between Go objects and SQL
drivers. Handles both ways of storing a composite: flattened into sibling
columns, or as a single native struct (row type) column. NOT AN ORM: it
converts values, and leaves queries, sessions and schema to you.

Key Features

• Reads flat native values into nested composites. See `Extract()` and
`ExtractAndInstantiate()`.

• Builds flat native values from nested composites, for writes. See `Build()`.

• Supports native struct columns at any nesting level, via a pluggable
`StructDialect`. See `Structs` and `Postgres`.

• Supports polymorphic composites with a discriminator column. See
`Polymorphic()`.

• Binds large objects (BLOB, CLOB, NCLOB) inside structs as native handles.

• Reconciles constructor order with canonical order. See `ReconcileOrder()`.

• Derives mappings from Go structs with `db` tags. See `Reflect()`.

Mappings

A `Mapping` describes one composite level: its attribute slots, in canonical
order (sorted by name), and an optional discriminator, which always occupies
the position after the last attribute. Each slot is either a `Scalar`, which
maps to exactly one native value, or a `Nested` composite, which maps to one
native value when its mapping is in aggregate mode and to all of its
descendant values otherwise. See `ValueCount()`.

	type Address struct {
		Street string `db:"street"`
		City   string `db:"city"`
	}

	type Person struct {
		Name    string  `db:"name"`
		Home    Address `db:"home"`
		Work    Address `db:"work,aggregate"`
	}

	mapping := gostruct.MustReflect(Person{})

	gostruct.Cols(mapping)
	// []string{"home.city", "home.street", "name", "work"}

Values

Native values are `[]interface{}` in the vocabulary of the driver. Extraction
requires exactly `mapping.ValueCount()` values and fails with
`ErrStructuralMismatch` otherwise; nothing is ever truncated or padded.
Building and then extracting reproduces the original value.

Concurrency

Every operation is a pure function of its inputs. Mappings are immutable once
built and may be shared between goroutines.
*/
package gostruct
