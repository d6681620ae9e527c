package gostruct

import (
	"fmt"
)

/*
Write path. Converts a domain object of a composite level into flat native
values ready to be bound by a driver. The result holds `mapping.ValueCount()`
values. A nil domain object produces nil values, except where converters map
nil to something else.

`orderMapping` may be nil, meaning canonical order. Otherwise position `i` of
the output draws from attribute `orderMapping[i]`. Only the top level is
reordered; nested levels always use canonical order.

Per slot:

	* Scalar: converted to its relational representation. A nil result leaves
	  the output slot nil. Large-object SQL types are unwrapped into `Blob`,
	  `Clob` or `NClob` handles regardless of the converter's default binding;
	  everything else goes through the converter's value binder.

	* Nested, aggregate mode: one native struct value built by the dialect.

	* Nested, flattened: the nested level's values, built recursively.
*/
func Build(mapping *Mapping, orderMapping []int, domain interface{}, opts *Options) ([]interface{}, error) {
	size := mapping.ValueCount()

	values, err := mappingValues(mapping, domain)
	if err != nil {
		return nil, err
	}
	if orderMapping != nil && len(orderMapping) != len(values) {
		return nil, mismatchErr(`building `+mapping.Name,
			`order mapping has %d positions, mapping has %d`, len(orderMapping), len(values))
	}

	out, _ := outputBuffer(mapping, values, orderMapping)
	var seen []bool
	if orderMapping != nil {
		seen = make([]bool, len(values))
	}
	offset := 0

	for i := range values {
		attributeIndex := i
		if orderMapping != nil {
			attributeIndex = orderMapping[i]
			if attributeIndex < 0 || attributeIndex >= len(values) {
				return nil, mismatchErr(`building `+mapping.Name,
					`order mapping refers to attribute %d out of %d`, attributeIndex, len(values))
			}
			if seen[attributeIndex] {
				return nil, mismatchErr(`building `+mapping.Name,
					`order mapping %v is not a permutation`, orderMapping)
			}
			seen[attributeIndex] = true
		}

		count, err := buildSlot(mapping.SlotAt(attributeIndex), values[attributeIndex], out, offset, opts)
		if err != nil {
			return nil, err
		}
		offset += count
	}

	if offset != size {
		return nil, mismatchErr(`building `+mapping.Name,
			`produced %d native values, expected %d`, offset, size)
	}
	return out, nil
}

/*
Decides whether `Build` can write its output into the attribute value slice it
obtained from the representation. That slice is freshly allocated per call,
so borrowing it is safe only when positions line up one to one: no
reordering, and every slot consumes exactly one native value. Otherwise a new
slice is allocated.
*/
func outputBuffer(mapping *Mapping, values []interface{}, orderMapping []int) (out []interface{}, borrowed bool) {
	size := mapping.ValueCount()
	if orderMapping != nil || len(values) != size {
		return make([]interface{}, size), false
	}
	for _, slot := range mapping.Slots {
		if ValueCount(slot) != 1 {
			return make([]interface{}, size), false
		}
	}
	return values, true
}

func mappingValues(mapping *Mapping, domain interface{}) ([]interface{}, error) {
	if isNil(domain) {
		return make([]interface{}, mapping.Size()), nil
	}
	if mapping.Repr == nil {
		return nil, ErrInvalidMapping.while(`building ` + mapping.Name).because(
			fmt.Errorf(`mapping %q has no representation`, mapping.Name))
	}

	values, err := mapping.Repr.Values(domain)
	if err != nil {
		return nil, conversionErr(`reading attribute values of `+mapping.Name, err)
	}
	if len(values) != mapping.Size() {
		return nil, mismatchErr(`building `+mapping.Name,
			`representation returned %d attribute values, expected %d`, len(values), mapping.Size())
	}
	return values, nil
}

func buildSlot(slot Slot, value interface{}, out []interface{}, offset int, opts *Options) (int, error) {
	switch slot := slot.(type) {
	case Nested:
		if slot.Mapping.Aggregate {
			if offset >= len(out) {
				return 0, mismatchErr(`building `+slot.Name, `no native slot at offset %d`, offset)
			}
			if isNil(value) {
				out[offset] = nil
				return 1, nil
			}
			native, err := opts.dialect().BuildNativeStruct(slot.Mapping, value, opts)
			if err != nil {
				return 0, conversionErr(`building native struct for `+slot.Name, err)
			}
			out[offset] = native
			return 1, nil
		}

		sub := slot.Mapping
		count := sub.ValueCount()
		if offset+count > len(out) {
			return 0, mismatchErr(`building `+slot.Name,
				`nested composite needs %d values at offset %d, only %d available`, count, offset, len(out))
		}

		subValues, err := mappingValues(sub, value)
		if err != nil {
			return 0, err
		}

		subOffset := 0
		for position := 0; position < sub.Size(); position++ {
			subCount, err := buildSlot(sub.SlotAt(position), subValues[position], out, offset+subOffset, opts)
			if err != nil {
				return 0, err
			}
			subOffset += subCount
		}

		if subOffset != count {
			return 0, mismatchErr(`building `+slot.Name,
				`nested composite produced %d values, expected %d`, subOffset, count)
		}
		return count, nil

	case Scalar:
		if offset >= len(out) {
			return 0, mismatchErr(`building `+slot.Name, `no native slot at offset %d`, offset)
		}

		relational, err := slot.Conv.ToRelational(value)
		if err != nil {
			return 0, conversionErr(`converting `+slot.Name+` to relational value`, err)
		}
		if isNil(relational) {
			out[offset] = nil
			return 1, nil
		}

		// Through structs, LOBs are always bound as native handles.
		if slot.SqlType.IsLob() {
			native, err := slot.Conv.UnwrapLob(relational, slot.SqlType, opts)
			if err != nil {
				return 0, conversionErr(`unwrapping large object `+slot.Name, err)
			}
			out[offset] = native
			return 1, nil
		}

		native, err := slot.Conv.BindValue(relational, opts)
		if err != nil {
			return 0, conversionErr(`binding `+slot.Name, err)
		}
		out[offset] = native
		return 1, nil

	default:
		panic(fmt.Errorf(`unknown slot type %T`, slot))
	}
}
