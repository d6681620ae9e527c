package gostruct

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/mitranim/refut"
)

/*
Builds a `Mapping` for a Go struct type by reflecting on its fields. The input
may be a struct, a struct pointer, or a `reflect.Type` of either.

Rules:

	* Only exported fields with a `db` tag are mapped. The tag's identifier is
	  the slot name.

	* Fields of embedded structs are treated as part of the enclosing struct.

	* Fields whose type is a non-scannable struct, or a pointer to one, become
	  nested composites. Tag option `aggregate` binds the nested composite to a
	  native struct type instead of flattening it.

	* Other fields are scalars. Tag options `blob`, `clob` and `nclob` select a
	  large-object SQL type.

Slots are sorted by name, which is the canonical order. Use `OrderMapping` to
bridge to the field declaration order or to constructor order.

Instances are built by setting fields by reflection. Nil values leave fields
zero. Attribute values are read with pointers dereferenced; nil pointers
produce nil.
*/
func Reflect(typ interface{}) (*Mapping, error) {
	rtype, ok := typ.(reflect.Type)
	if !ok {
		rtype = reflect.TypeOf(typ)
	}
	if rtype != nil {
		rtype = refut.RtypeDeref(rtype)
	}
	if !isRtypeStructNonScannable(rtype) {
		return nil, ErrInvalidMapping.while(`reflecting mapping`).because(
			fmt.Errorf(`expected a struct type, got %v`, rtype))
	}
	return reflectMapping(rtype, map[reflect.Type]bool{})
}

// Like `Reflect` but panics on error.
func MustReflect(typ interface{}) *Mapping {
	mapping, err := Reflect(typ)
	if err != nil {
		panic(err)
	}
	return mapping
}

type reflectedSlot struct {
	slot Slot
	path []int
}

func reflectMapping(rtype reflect.Type, visiting map[reflect.Type]bool) (*Mapping, error) {
	fields, err := reflectSlots(rtype, visiting)
	if err != nil {
		return nil, err
	}

	mapping := &Mapping{Name: rtype.Name()}
	repr := &structRepr{rtype: rtype}
	for _, field := range fields {
		mapping.Slots = append(mapping.Slots, field.slot)
		repr.paths = append(repr.paths, field.path)
	}
	repr.init(mapping.Slots)
	mapping.Repr = repr
	return mapping, nil
}

// Returns the struct's slots sorted by name.
func reflectSlots(rtype reflect.Type, visiting map[reflect.Type]bool) ([]reflectedSlot, error) {
	if visiting[rtype] {
		return nil, ErrInvalidMapping.while(`reflecting mapping`).because(
			fmt.Errorf(`type %v refers to itself`, rtype))
	}
	visiting[rtype] = true
	defer delete(visiting, rtype)

	var fields []reflectedSlot
	seen := map[string]bool{}

	err := refut.TraverseStructRtype(rtype, func(sfield reflect.StructField, path []int) error {
		if !refut.IsSfieldExported(sfield) {
			return nil
		}
		name := sfieldColumnName(sfield)
		if name == "" {
			return nil
		}
		if seen[name] {
			return ErrInvalidMapping.while(`reflecting mapping`).because(
				fmt.Errorf(`redundant occurrence of column %q in %v`, name, rtype))
		}
		seen[name] = true

		slot, err := reflectSlot(sfield, name, visiting)
		if err != nil {
			return err
		}
		fields = append(fields, reflectedSlot{slot: slot, path: copyIntSlice(path)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].slot.SlotName() < fields[j].slot.SlotName()
	})
	return fields, nil
}

func reflectSlot(sfield reflect.StructField, name string, visiting map[reflect.Type]bool) (Slot, error) {
	opts := sfieldTagOptions(sfield)
	fieldRtype := refut.RtypeDeref(sfield.Type)

	if isRtypeStructNonScannable(fieldRtype) {
		sub, err := reflectMapping(fieldRtype, visiting)
		if err != nil {
			return nil, err
		}
		sub.Aggregate = hasTagOption(opts, `aggregate`)
		return Nested{Name: name, Mapping: sub}, nil
	}

	return Scalar{
		Name:    name,
		SqlType: reflectSqlType(fieldRtype, opts),
		Conv:    Conv{Type: sfield.Type},
	}, nil
}

func reflectSqlType(rtype reflect.Type, opts []string) SqlType {
	switch {
	case hasTagOption(opts, `blob`):
		return SqlBlob
	case hasTagOption(opts, `clob`):
		return SqlClob
	case hasTagOption(opts, `nclob`):
		return SqlNClob
	case rtype == timeRtype:
		return SqlTimestamp
	}

	switch rtype.Kind() {
	case reflect.String:
		return SqlVarchar
	case reflect.Bool:
		return SqlBoolean
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return SqlInteger
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return SqlBigint
	case reflect.Float32, reflect.Float64:
		return SqlDouble
	case reflect.Slice, reflect.Array:
		if rtype.Elem().Kind() == reflect.Uint8 {
			return SqlVarbinary
		}
		return SqlArray
	default:
		return SqlOther
	}
}

/*
Reflection-based `Representation` and `Instantiator` for one struct type.
`paths[i]` is the field path of logical position `i`; nil when the struct
doesn't have that attribute, which happens for subtypes of a polymorphic
mapping.
*/
type structRepr struct {
	rtype  reflect.Type
	paths  [][]int
	nested []*Mapping
}

func (self *structRepr) init(slots []Slot) {
	self.nested = make([]*Mapping, len(slots))
	for i, slot := range slots {
		nested, ok := slot.(Nested)
		if ok {
			self.nested[i] = nested.Mapping
		}
	}
}

func (self *structRepr) Instantiator() Instantiator { return self }

func (self *structRepr) InstantiatorFor(discriminator interface{}) (Instantiator, error) {
	return nil, ErrUnknownDiscriminator.while(`looking up instantiator`).because(
		fmt.Errorf(`type %v is not polymorphic, got discriminator %#v`, self.rtype, discriminator))
}

func (self *structRepr) Instantiate(values *AttributeValues, opts *Options) (interface{}, error) {
	if len(values.Values) != len(self.paths) {
		return nil, mismatchErr(`instantiating `+self.rtype.String(),
			`expected %d attribute values, got %d`, len(self.paths), len(values.Values))
	}

	out := reflect.New(self.rtype).Elem()

	for i, value := range values.Values {
		path := self.paths[i]
		if path == nil || value == nil {
			continue
		}

		field := refut.RvalFieldByPathAlloc(out, path)

		nested := self.nested[i]
		if nested != nil && !isAssignableToField(value, field.Type()) {
			var err error
			value, err = ResolveAggregate(nested, value, opts)
			if err != nil {
				return nil, err
			}
			if value == nil {
				continue
			}
		}

		err := setField(field, value)
		if err != nil {
			return nil, conversionErr(`instantiating `+self.rtype.String(), err)
		}
	}

	return out.Interface(), nil
}

func (self *structRepr) Values(domain interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(self.paths))

	rval := reflect.ValueOf(domain)
	for rval.IsValid() && rval.Kind() == reflect.Ptr {
		if rval.IsNil() {
			return out, nil
		}
		rval = rval.Elem()
	}
	if !rval.IsValid() {
		return out, nil
	}
	if rval.Type() != self.rtype {
		return nil, fmt.Errorf(`expected value of type %v, got %v`, self.rtype, rval.Type())
	}

	for i, path := range self.paths {
		if path == nil {
			continue
		}
		out[i] = rvalInterfaceDeref(rvalFieldByPath(rval, path))
	}
	return out, nil
}

func isAssignableToField(value interface{}, fieldRtype reflect.Type) bool {
	rtype := reflect.TypeOf(value)
	return rtype.AssignableTo(fieldRtype) ||
		(fieldRtype.Kind() == reflect.Ptr && rtype.AssignableTo(fieldRtype.Elem()))
}

/*
Assigns a non-nil value to a field, allocating a pointer when the field is a
pointer to the value's type.
*/
func setField(field reflect.Value, value interface{}) error {
	rval := reflect.ValueOf(value)
	rtype := rval.Type()
	fieldRtype := field.Type()

	switch {
	case rtype.AssignableTo(fieldRtype):
		field.Set(rval)

	case fieldRtype.Kind() == reflect.Ptr && rtype.AssignableTo(fieldRtype.Elem()):
		ptr := reflect.New(fieldRtype.Elem())
		ptr.Elem().Set(rval)
		field.Set(ptr)

	case rtype.Kind() == reflect.Ptr && rtype.Elem().AssignableTo(fieldRtype):
		if !rval.IsNil() {
			field.Set(rval.Elem())
		}

	case isConvertibleKind(rtype.Kind(), fieldRtype.Kind()):
		out, err := convertKind(rval, fieldRtype)
		if err != nil {
			return err
		}
		field.Set(out)

	default:
		return fmt.Errorf(`can't assign %v to field of type %v`, rtype, fieldRtype)
	}
	return nil
}
