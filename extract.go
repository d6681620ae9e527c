package gostruct

import (
	"fmt"
)

/*
Read path. Converts the flat native values of one composite level into
attribute values. `native` must hold exactly `mapping.ValueCount()` values,
ordered like the slots, discriminator last.

Per slot:

	* Scalar: one native value, wrapped by the converter and then converted to
	  its domain representation.

	* Nested, aggregate mode: one native value, stored as-is. It remains an
	  opaque struct handle until instantiation; see `ResolveAggregate`.

	* Nested, flattened: the nested level's `ValueCount()` values, extracted
	  and instantiated recursively; the domain object is stored. When all of
	  them are null, the stored value is nil.

The discriminator follows the scalar path and is stored as
`AttributeValues.Discriminator`, in domain representation.
*/
func Extract(mapping *Mapping, native []interface{}, opts *Options) (*AttributeValues, error) {
	expected := mapping.ValueCount()
	if len(native) != expected {
		return nil, mismatchErr(`extracting `+mapping.Name,
			`expected %d native values, got %d`, expected, len(native))
	}

	values := newAttributeValues(mapping.AttributeCount())
	offset := 0

	for position := 0; position < mapping.Size(); position++ {
		count, err := extractSlot(mapping.SlotAt(position), values, position, native, offset, opts)
		if err != nil {
			return nil, err
		}
		offset += count
	}

	if offset != expected {
		return nil, mismatchErr(`extracting `+mapping.Name,
			`consumed %d native values, expected %d`, offset, expected)
	}
	return values, nil
}

func extractSlot(
	slot Slot, values *AttributeValues, position int, native []interface{}, offset int, opts *Options,
) (int, error) {
	switch slot := slot.(type) {
	case Nested:
		if slot.Mapping.Aggregate {
			values.Set(position, native[offset])
			return 1, nil
		}

		count := slot.Mapping.ValueCount()
		if offset+count > len(native) {
			return 0, mismatchErr(`extracting `+slot.Name,
				`nested composite needs %d values at offset %d, only %d available`, count, offset, len(native))
		}

		// All-null columns come from a nil sub-object, discriminator included.
		if allNil(native[offset : offset+count]) {
			values.Set(position, nil)
			return count, nil
		}

		sub, err := ExtractAndInstantiate(slot.Mapping, native[offset:offset+count], opts)
		if err != nil {
			return 0, err
		}
		values.Set(position, sub)
		return count, nil

	case Scalar:
		if offset >= len(native) {
			return 0, mismatchErr(`extracting `+slot.Name,
				`no native value at offset %d`, offset)
		}

		wrapped, err := slot.Conv.Wrap(native[offset], opts)
		if err != nil {
			return 0, conversionErr(`wrapping native value of `+slot.Name, err)
		}
		domain, err := slot.Conv.ToDomain(wrapped)
		if err != nil {
			return 0, conversionErr(`converting `+slot.Name+` to domain value`, err)
		}
		values.Set(position, domain)
		return 1, nil

	default:
		panic(fmt.Errorf(`unknown slot type %T`, slot))
	}
}

/*
Builds a domain object from attribute values. Non-polymorphic mappings use the
representation's single instantiator. Polymorphic mappings look up the
instantiator by the discriminator, which `Extract` has already converted to
its domain representation.
*/
func Instantiate(mapping *Mapping, values *AttributeValues, opts *Options) (interface{}, error) {
	if mapping.Repr == nil {
		return nil, ErrInvalidMapping.while(`instantiating ` + mapping.Name).because(
			fmt.Errorf(`mapping %q has no representation`, mapping.Name))
	}

	var inst Instantiator
	if !mapping.IsPolymorphic() {
		inst = mapping.Repr.Instantiator()
		if inst == nil {
			return nil, ErrInvalidMapping.while(`instantiating ` + mapping.Name).because(
				fmt.Errorf(`mapping %q has no instantiator`, mapping.Name))
		}
	} else {
		var err error
		inst, err = mapping.Repr.InstantiatorFor(values.Discriminator)
		if err != nil {
			return nil, err
		}
	}

	if inst == nil {
		return nil, ErrUnknownDiscriminator.while(`instantiating ` + mapping.Name).because(
			fmt.Errorf(`no instantiator for discriminator %#v`, values.Discriminator))
	}
	return inst.Instantiate(values, opts)
}

// Shortcut for `Extract` followed by `Instantiate`.
func ExtractAndInstantiate(mapping *Mapping, native []interface{}, opts *Options) (interface{}, error) {
	values, err := Extract(mapping, native, opts)
	if err != nil {
		return nil, err
	}
	return Instantiate(mapping, values, opts)
}
