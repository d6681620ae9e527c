package gostruct

/*
Attribute values of one composite level, indexed by logical position, plus the
discriminator for polymorphic composites. Created by `Extract` and consumed
once by an `Instantiator`.

Values of scalar slots are in domain representation. Values of flattened
nested slots are instantiated domain objects. Values of aggregate-mode nested
slots are opaque native struct handles; see `ResolveAggregate`.
*/
type AttributeValues struct {
	Values        []interface{}
	Discriminator interface{}
}

func newAttributeValues(attributeCount int) *AttributeValues {
	return &AttributeValues{Values: make([]interface{}, attributeCount)}
}

/*
Stores a value at a logical position. Position `len(.Values)` is the
discriminator.
*/
func (self *AttributeValues) Set(position int, value interface{}) {
	if position == len(self.Values) {
		self.Discriminator = value
		return
	}
	self.Values[position] = value
}

// Inverse of `.Set`.
func (self *AttributeValues) Get(position int) interface{} {
	if position == len(self.Values) {
		return self.Discriminator
	}
	return self.Values[position]
}

/*
Builds a domain object from extracted attribute values. Implementations must
not retain `values`.
*/
type Instantiator interface {
	Instantiate(values *AttributeValues, opts *Options) (interface{}, error)
}

// Function adapter for `Instantiator`.
type InstantiatorFunc func(*AttributeValues, *Options) (interface{}, error)

func (self InstantiatorFunc) Instantiate(values *AttributeValues, opts *Options) (interface{}, error) {
	return self(values, opts)
}

/*
Connects a `Mapping` to its domain type.

`Instantiator` is used for non-polymorphic mappings. `InstantiatorFor` is used
for polymorphic mappings and receives the discriminator in domain
representation; it should return `ErrUnknownDiscriminator` when nothing is
registered for the value.

`Values` returns the attribute values of a domain object ordered by logical
position, discriminator last when polymorphic. A nil domain object produces
all-nil values. The returned slice must be freshly allocated: `Build` may
reuse it as its output buffer.
*/
type Representation interface {
	Instantiator() Instantiator
	InstantiatorFor(discriminator interface{}) (Instantiator, error)
	Values(domain interface{}) ([]interface{}, error)
}
