package gostruct

import (
	"fmt"
)

/*
Describes one composite ("embeddable") level: an ordered list of attribute
slots, an optional discriminator for polymorphic composites, and whether this
level is bound to a native struct type ("aggregate mode") or flattened into
sibling columns.

`Slots` must be in canonical order, which is ascending by slot name for
mappings produced by `Reflect` and `Polymorphic`. A mapping is treated as
immutable once built and may be shared between goroutines.
*/
type Mapping struct {
	// Name of the native struct type. Used by aggregate dialects.
	Name string

	// Ordinary attributes in canonical order.
	Slots []Slot

	// Non-nil for polymorphic composites. Logically occupies the position
	// immediately after the last ordinary slot.
	Discriminator *Scalar

	// When true, a parent level stores this composite as a single native
	// struct value instead of inlining its columns.
	Aggregate bool

	// Instantiation and value access for the domain type.
	Repr Representation
}

// Number of ordinary attributes, excluding the discriminator.
func (self *Mapping) AttributeCount() int { return len(self.Slots) }

func (self *Mapping) IsPolymorphic() bool { return self.Discriminator != nil }

/*
Number of logical positions: ordinary attributes plus one for the
discriminator when polymorphic.
*/
func (self *Mapping) Size() int {
	if self.IsPolymorphic() {
		return len(self.Slots) + 1
	}
	return len(self.Slots)
}

/*
Number of native values consumed by this level and all of its descendants when
the level is flattened into sibling columns. Includes the discriminator.
Independent of `.Aggregate`: a parent attributes exactly one value to an
aggregate child, see `ValueCount`.
*/
func (self *Mapping) ValueCount() int {
	count := 0
	for _, slot := range self.Slots {
		count += ValueCount(slot)
	}
	if self.IsPolymorphic() {
		count++
	}
	return count
}

/*
Returns the slot at the given logical position. Position `AttributeCount()`
of a polymorphic mapping is the discriminator. Panics on out-of-range
positions.
*/
func (self *Mapping) SlotAt(position int) Slot {
	if position == len(self.Slots) && self.IsPolymorphic() {
		return *self.Discriminator
	}
	return self.Slots[position]
}

/*
Verifies the mapping tree: every slot is named and typed, names are unique per
level, scalars have converters, nested mappings are non-nil, and every level
that may be instantiated has a representation.
*/
func (self *Mapping) Validate() error {
	return self.validate(self.Name)
}

func (self *Mapping) validate(path string) error {
	if self == nil {
		return ErrInvalidMapping.while(`validating mapping`).because(fmt.Errorf(`nil mapping at %q`, path))
	}
	if self.Repr == nil {
		return ErrInvalidMapping.while(`validating mapping`).because(fmt.Errorf(`mapping %q has no representation`, path))
	}

	seen := make(map[string]struct{}, self.Size())
	for position := 0; position < self.Size(); position++ {
		slot := self.SlotAt(position)
		name := slot.SlotName()
		if name == "" {
			return ErrInvalidMapping.while(`validating mapping`).because(
				fmt.Errorf(`unnamed slot at position %d of %q`, position, path))
		}
		if _, ok := seen[name]; ok {
			return ErrInvalidMapping.while(`validating mapping`).because(
				fmt.Errorf(`duplicate slot %q in %q`, name, path))
		}
		seen[name] = struct{}{}

		switch slot := slot.(type) {
		case Scalar:
			if slot.Conv == nil {
				return ErrInvalidMapping.while(`validating mapping`).because(
					fmt.Errorf(`scalar %q in %q has no converter`, name, path))
			}
		case Nested:
			err := slot.Mapping.validate(path + `.` + name)
			if err != nil {
				return err
			}
		default:
			return ErrInvalidMapping.while(`validating mapping`).because(
				fmt.Errorf(`unknown slot type %T in %q`, slot, path))
		}
	}
	return nil
}

/*
One attribute of a composite. The set of implementations is closed: `Scalar`
and `Nested`.
*/
type Slot interface {
	SlotName() string
	isSlot()
}

/*
Attribute mapped to exactly one native column. Also used for discriminators.
*/
type Scalar struct {
	Name    string
	SqlType SqlType
	Conv    Converter
}

func (self Scalar) SlotName() string { return self.Name }
func (Scalar) isSlot()                {}

// Attribute mapped to a nested composite.
type Nested struct {
	Name    string
	Mapping *Mapping
}

func (self Nested) SlotName() string { return self.Name }
func (Nested) isSlot()                {}

/*
Number of native values a slot consumes in its parent: 1 for a scalar or an
aggregate-mode composite, the recursive count for a flattened composite.
*/
func ValueCount(slot Slot) int {
	switch slot := slot.(type) {
	case Scalar:
		return 1
	case Nested:
		if slot.Mapping.Aggregate {
			return 1
		}
		return slot.Mapping.ValueCount()
	default:
		panic(fmt.Errorf(`unknown slot type %T`, slot))
	}
}

/*
Returns flattened column names for the mapping, in canonical order. Columns of
flattened nested composites are qualified by their path, like
`"outer.inner"`; aggregate-mode composites contribute a single column.
*/
func Cols(mapping *Mapping) []string {
	return appendCols(nil, mapping, "")
}

func appendCols(buf []string, mapping *Mapping, prefix string) []string {
	for position := 0; position < mapping.Size(); position++ {
		slot := mapping.SlotAt(position)
		name := prefix + slot.SlotName()

		switch slot := slot.(type) {
		case Nested:
			if !slot.Mapping.Aggregate {
				buf = appendCols(buf, slot.Mapping, name+`.`)
				continue
			}
		}
		buf = append(buf, name)
	}
	return buf
}
