package gostruct

import (
	"github.com/pkg/errors"
)

/*
Conversion context passed through every extraction and build. A nil `*Options`
is valid and uses the defaults.
*/
type Options struct {
	// Constructs and deconstructs native struct values for aggregate-mode
	// mappings. Defaults to `Structs{}`.
	Dialect StructDialect
}

func (self *Options) dialect() StructDialect {
	if self == nil || self.Dialect == nil {
		return Structs{}
	}
	return self.Dialect
}

/*
Dialect operations for native struct (row type) values.

`BuildNativeStruct` converts a domain object of an aggregate-mode mapping into
one opaque driver value. `NativeStructValues` returns the flat native values
held by such a driver value, ordered like `Build` would produce them, so that
they can be passed to `Extract`. Both must accept nil, producing nil.
*/
type StructDialect interface {
	BuildNativeStruct(mapping *Mapping, domain interface{}, opts *Options) (interface{}, error)
	NativeStructValues(mapping *Mapping, native interface{}, opts *Options) ([]interface{}, error)
}

/*
Generic native struct value, shaped like the struct handles returned by drivers
with row type support: a type name and positional attributes.
*/
type Struct struct {
	TypeName   string
	Attributes []interface{}
}

/*
Dialect that represents native struct values as `*Struct`. Suitable for
drivers that accept and return struct handles as-is, and for tests.
*/
type Structs struct{}

func (Structs) BuildNativeStruct(mapping *Mapping, domain interface{}, opts *Options) (interface{}, error) {
	if isNil(domain) {
		return nil, nil
	}
	values, err := Build(mapping, nil, domain, opts)
	if err != nil {
		return nil, err
	}
	return &Struct{TypeName: mapping.Name, Attributes: values}, nil
}

func (Structs) NativeStructValues(mapping *Mapping, native interface{}, _ *Options) ([]interface{}, error) {
	switch native := native.(type) {
	case nil:
		return nil, nil
	case *Struct:
		if native == nil {
			return nil, nil
		}
		if native.TypeName != "" && mapping.Name != "" && native.TypeName != mapping.Name {
			return nil, errors.Errorf(`expected struct of type %q, got %q`, mapping.Name, native.TypeName)
		}
		return native.Attributes, nil
	case Struct:
		return Structs{}.NativeStructValues(mapping, &native, nil)
	default:
		return nil, errors.Errorf(`expected native struct for %q, got %T`, mapping.Name, native)
	}
}

/*
Converts a value stored by `Extract` for an aggregate-mode nested slot into a
domain object of the nested mapping. The native struct is deconstructed by the
dialect, then extracted and instantiated recursively. Nil stays nil.
*/
func ResolveAggregate(mapping *Mapping, native interface{}, opts *Options) (interface{}, error) {
	if isNil(native) {
		return nil, nil
	}

	values, err := opts.dialect().NativeStructValues(mapping, native, opts)
	if err != nil {
		return nil, conversionErr(`deconstructing native struct `+mapping.Name, err)
	}
	if values == nil {
		return nil, nil
	}
	return ExtractAndInstantiate(mapping, values, opts)
}
