package gostruct

import (
	"fmt"
)

/*
Copies native values from instantiation order into canonical order.

`src` holds values grouped by attribute index: attribute 0's values first, then
attribute 1's, and so on, with the discriminator last. For each canonical
position `i`, the values of attribute `inverse[i]` are copied contiguously into
`dst` at the running offset. Both slices must hold `mapping.ValueCount()`
values.

Example: counts `[1, 1, 2]` and inverse `[2, 0, 1]` produce
`[src[2], src[3], src[0], src[1]]`.
*/
func ReconcileOrder(mapping *Mapping, inverse []int, src []interface{}, dst []interface{}) error {
	size := mapping.Size()
	total := mapping.ValueCount()

	if len(inverse) != size {
		return mismatchErr(`reconciling order of `+mapping.Name,
			`inverse mapping has %d positions, mapping has %d`, len(inverse), size)
	}
	if len(src) != total || len(dst) != total {
		return mismatchErr(`reconciling order of `+mapping.Name,
			`expected %d native values, got source %d and destination %d`, total, len(src), len(dst))
	}

	offsets := valueOffsets(mapping)
	seen := make([]bool, size)
	dstOffset := 0

	for i := 0; i < size; i++ {
		attributeIndex := inverse[i]
		if attributeIndex < 0 || attributeIndex >= size {
			return mismatchErr(`reconciling order of `+mapping.Name,
				`inverse mapping refers to attribute %d out of %d`, attributeIndex, size)
		}
		if seen[attributeIndex] {
			return mismatchErr(`reconciling order of `+mapping.Name,
				`inverse mapping %v is not a permutation`, inverse)
		}
		seen[attributeIndex] = true
		count := ValueCount(mapping.SlotAt(attributeIndex))
		srcOffset := offsets[attributeIndex]

		if srcOffset+count > total || dstOffset+count > total {
			return mismatchErr(`reconciling order of `+mapping.Name,
				`attribute %d with %d values doesn't fit at source offset %d, destination offset %d`,
				attributeIndex, count, srcOffset, dstOffset)
		}

		copy(dst[dstOffset:dstOffset+count], src[srcOffset:srcOffset+count])
		dstOffset += count
	}

	if dstOffset != total {
		return mismatchErr(`reconciling order of `+mapping.Name,
			`copied %d native values, expected %d`, dstOffset, total)
	}
	return nil
}

/*
Start offset of each logical position in a value array grouped by attribute
index. The discriminator, when present, starts after all ordinary attributes.
*/
func valueOffsets(mapping *Mapping) []int {
	offsets := make([]int, mapping.Size())
	offset := 0
	for position := range offsets {
		offsets[position] = offset
		offset += ValueCount(mapping.SlotAt(position))
	}
	return offsets
}

/*
Builds a forward order mapping from attribute names listed in instantiation
order, typically constructor parameter names. Position `i` of the result holds
the canonical index of `names[i]`. For polymorphic mappings the discriminator
may be listed explicitly; if omitted, it's appended at the end.
*/
func OrderMapping(mapping *Mapping, names []string) ([]int, error) {
	size := mapping.Size()
	if mapping.IsPolymorphic() && len(names) == mapping.AttributeCount() {
		names = append(names[:len(names):len(names)], mapping.Discriminator.Name)
	}
	if len(names) != size {
		return nil, ErrInvalidMapping.while(`building order mapping for ` + mapping.Name).because(
			fmt.Errorf(`expected %d names, got %d`, size, len(names)))
	}

	indexes := make(map[string]int, size)
	for position := 0; position < size; position++ {
		indexes[mapping.SlotAt(position).SlotName()] = position
	}

	order := make([]int, size)
	seen := make([]bool, size)
	for i, name := range names {
		index, ok := indexes[name]
		if !ok {
			return nil, ErrInvalidMapping.while(`building order mapping for ` + mapping.Name).because(
				fmt.Errorf(`unknown attribute %q`, name))
		}
		if seen[index] {
			return nil, ErrInvalidMapping.while(`building order mapping for ` + mapping.Name).because(
				fmt.Errorf(`attribute %q listed more than once`, name))
		}
		seen[index] = true
		order[i] = index
	}
	return order, nil
}

/*
Inverts a permutation: if `order[i] == j` then `InverseOrder(order)[j] == i`.
Panics if the input is not a permutation of `0..len(order)`.
*/
func InverseOrder(order []int) []int {
	inverse := make([]int, len(order))
	for i := range inverse {
		inverse[i] = -1
	}
	for i, index := range order {
		if index < 0 || index >= len(order) || inverse[index] != -1 {
			panic(fmt.Errorf(`%v is not a permutation`, order))
		}
		inverse[index] = i
	}
	return inverse
}
