package gostruct

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
)

type Point struct {
	X int64 `db:"x"`
	Y int64 `db:"y"`
}

type Shipment struct {
	Weight float64   `db:"weight"`
	Code   string    `db:"code"`
	Origin Point     `db:"origin"`
	Dest   *Point    `db:"dest,aggregate"`
	Label  []byte    `db:"label,blob"`
	Note   string    `db:"note,clob"`
	Sent   time.Time `db:"sent"`
	Tags   []string  `db:"tags"`
	Skip   string
}

type Circle struct {
	Color  string  `db:"color"`
	Radius float64 `db:"radius"`
}

type Square struct {
	Color string  `db:"color"`
	Side  float64 `db:"side"`
}

type Shape interface{}

func testShipment() Shipment {
	return Shipment{
		Weight: 12.5,
		Code:   "A-1",
		Origin: Point{X: 1, Y: 2},
		Dest:   &Point{X: 3, Y: 4},
		Label:  []byte("label"),
		Note:   "fragile",
		Sent:   time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		Tags:   []string{"one", "two"},
	}
}

func testShapeMapping() *Mapping {
	return MustPolymorphic(`shape`, `kind`,
		Subtype{Name: `circle`, Code: `C`, Type: Circle{}},
		Subtype{Name: `square`, Code: `S`, Type: Square{}},
	)
}

/*
Test representation: domain values are `tComposite` holding attribute values by
position. Lets tests build mappings by hand without Go struct types.
*/
type tComposite struct {
	Type   string
	Values []interface{}
}

type tRepr struct {
	types []string
}

func (self tRepr) Instantiator() Instantiator { return tInstantiator{} }

func (self tRepr) InstantiatorFor(discriminator interface{}) (Instantiator, error) {
	for _, typ := range self.types {
		if typ == discriminator {
			return tInstantiator{typ: typ}, nil
		}
	}
	return nil, ErrUnknownDiscriminator.because(fmt.Errorf(`unknown %#v`, discriminator))
}

func (self tRepr) Values(domain interface{}) ([]interface{}, error) {
	val := domain.(tComposite)
	out := make([]interface{}, len(val.Values), len(val.Values)+1)
	copy(out, val.Values)
	if len(self.types) > 0 {
		out = append(out, val.Type)
	}
	return out, nil
}

type tInstantiator struct{ typ string }

func (self tInstantiator) Instantiate(values *AttributeValues, _ *Options) (interface{}, error) {
	out := make([]interface{}, len(values.Values))
	copy(out, values.Values)
	return tComposite{Type: self.typ, Values: out}, nil
}

func tScalar(name string) Scalar {
	return Scalar{Name: name, Conv: Conv{}}
}

func tMapping(name string, slots ...Slot) *Mapping {
	return &Mapping{Name: name, Slots: slots, Repr: tRepr{}}
}

// Copy of the mapping whose nested composites are all in the given mode.
func withMode(mapping *Mapping, aggregate bool) *Mapping {
	out := *mapping
	out.Slots = make([]Slot, len(mapping.Slots))
	for i, slot := range mapping.Slots {
		nested, ok := slot.(Nested)
		if ok {
			sub := *nested.Mapping
			sub.Aggregate = aggregate
			nested.Mapping = &sub
			slot = nested
		}
		out.Slots[i] = slot
	}
	return &out
}

// Dialect that records how many native structs it built and deconstructed.
type tDialect struct {
	Structs
	built         int
	deconstructed int
}

func (self *tDialect) BuildNativeStruct(mapping *Mapping, domain interface{}, opts *Options) (interface{}, error) {
	self.built++
	return self.Structs.BuildNativeStruct(mapping, domain, opts)
}

func (self *tDialect) NativeStructValues(mapping *Mapping, native interface{}, opts *Options) ([]interface{}, error) {
	self.deconstructed++
	return self.Structs.NativeStructValues(mapping, native, opts)
}

func try(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%+v", err)
	}
}

func eq(t testing.TB, exp, act interface{}) {
	t.Helper()
	if !reflect.DeepEqual(exp, act) {
		t.Fatalf("expected:\n%v\nactual:\n%v", spew.Sdump(exp), spew.Sdump(act))
	}
}
