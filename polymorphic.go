package gostruct

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/mitranim/refut"
)

/*
One concrete type of a polymorphic composite. `Name` is the discriminator's
domain value, `Code` is what gets stored in the discriminator column, `Type`
is a value of the Go struct type (or a pointer to it, or its `reflect.Type`).
*/
type Subtype struct {
	Name string
	Code interface{}
	Type interface{}
}

/*
Builds a polymorphic `Mapping` whose attributes are the union of the subtypes'
attributes, reflected as in `Reflect`, sorted by name. Subtypes sharing an
attribute name must map it to the same Go type. The discriminator column comes
after all attributes.

Extraction converts the stored code into the subtype name, then instantiates
that subtype, setting only its own attributes. Building reads the attributes
of the value's concrete subtype and leaves the others nil.
*/
func Polymorphic(name string, column string, subtypes ...Subtype) (*Mapping, error) {
	if len(subtypes) == 0 {
		return nil, ErrInvalidMapping.while(`reflecting polymorphic mapping ` + name).because(
			fmt.Errorf(`no subtypes`))
	}

	type subtypeFields struct {
		rtype  reflect.Type
		fields []reflectedSlot
	}

	var reflected []subtypeFields
	union := map[string]Slot{}
	unionTypes := map[string]reflect.Type{}

	for _, subtype := range subtypes {
		rtype, ok := subtype.Type.(reflect.Type)
		if !ok {
			rtype = reflect.TypeOf(subtype.Type)
		}
		if rtype != nil {
			rtype = refut.RtypeDeref(rtype)
		}
		if !isRtypeStructNonScannable(rtype) {
			return nil, ErrInvalidMapping.while(`reflecting polymorphic mapping ` + name).because(
				fmt.Errorf(`subtype %q: expected a struct type, got %v`, subtype.Name, rtype))
		}

		fields, err := reflectSlots(rtype, map[reflect.Type]bool{})
		if err != nil {
			return nil, err
		}

		for _, field := range fields {
			slotName := field.slot.SlotName()
			fieldRtype := rtype.FieldByIndex(field.path).Type

			prev, ok := unionTypes[slotName]
			if ok && prev != fieldRtype {
				return nil, ErrInvalidMapping.while(`reflecting polymorphic mapping ` + name).because(
					fmt.Errorf(`attribute %q is %v in one subtype and %v in %q`, slotName, prev, fieldRtype, subtype.Name))
			}
			if !ok {
				union[slotName] = field.slot
				unionTypes[slotName] = fieldRtype
			}
		}

		reflected = append(reflected, subtypeFields{rtype: rtype, fields: fields})
	}

	if _, ok := union[column]; ok {
		return nil, ErrInvalidMapping.while(`reflecting polymorphic mapping ` + name).because(
			fmt.Errorf(`discriminator column %q collides with an attribute`, column))
	}

	names := make([]string, 0, len(union))
	for slotName := range union {
		names = append(names, slotName)
	}
	sort.Strings(names)

	positions := make(map[string]int, len(names))
	mapping := &Mapping{Name: name}
	for i, slotName := range names {
		positions[slotName] = i
		mapping.Slots = append(mapping.Slots, union[slotName])
	}

	codes := make(map[string]interface{}, len(subtypes))
	repr := &polyRepr{
		byName:  make(map[string]*structRepr, len(subtypes)),
		byRtype: make(map[reflect.Type]string, len(subtypes)),
	}

	for i, subtype := range subtypes {
		if _, ok := codes[subtype.Name]; ok {
			return nil, ErrInvalidMapping.while(`reflecting polymorphic mapping ` + name).because(
				fmt.Errorf(`redundant subtype %q`, subtype.Name))
		}
		codes[subtype.Name] = subtype.Code

		sub := &structRepr{rtype: reflected[i].rtype, paths: make([][]int, len(names))}
		for _, field := range reflected[i].fields {
			sub.paths[positions[field.slot.SlotName()]] = field.path
		}
		sub.init(mapping.Slots)

		repr.byName[subtype.Name] = sub
		repr.byRtype[sub.rtype] = subtype.Name
	}

	mapping.Discriminator = &Scalar{
		Name:    column,
		SqlType: reflectSqlType(reflect.TypeOf(subtypes[0].Code), nil),
		Conv:    DiscriminatorConv(codes),
	}
	mapping.Repr = repr
	return mapping, nil
}

// Like `Polymorphic` but panics on error.
func MustPolymorphic(name string, column string, subtypes ...Subtype) *Mapping {
	mapping, err := Polymorphic(name, column, subtypes...)
	if err != nil {
		panic(err)
	}
	return mapping
}

type polyRepr struct {
	byName  map[string]*structRepr
	byRtype map[reflect.Type]string
}

func (self *polyRepr) Instantiator() Instantiator { return nil }

func (self *polyRepr) InstantiatorFor(discriminator interface{}) (Instantiator, error) {
	name, _ := discriminator.(string)
	sub, ok := self.byName[name]
	if !ok {
		return nil, ErrUnknownDiscriminator.while(`looking up instantiator`).because(
			fmt.Errorf(`no subtype registered for discriminator %#v`, discriminator))
	}
	return sub, nil
}

func (self *polyRepr) Values(domain interface{}) ([]interface{}, error) {
	rtype := reflect.TypeOf(domain)
	if rtype != nil {
		rtype = refut.RtypeDeref(rtype)
	}
	name, ok := self.byRtype[rtype]
	if !ok {
		return nil, ErrUnknownDiscriminator.while(`reading attribute values`).because(
			fmt.Errorf(`type %v is not a registered subtype`, rtype))
	}

	values, err := self.byName[name].Values(domain)
	if err != nil {
		return nil, err
	}
	return append(values, name), nil
}
