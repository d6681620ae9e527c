package gostruct

import (
	"errors"
	"testing"
)

func TestReconcileOrder(t *testing.T) {
	inner := tMapping(`inner`, tScalar(`x`), tScalar(`y`))
	mapping := tMapping(`outer`, tScalar(`a`), tScalar(`b`), Nested{Name: `c`, Mapping: inner})

	// Counts per attribute are [1, 1, 2].
	eq(t, []int{0, 1, 2}, valueOffsets(mapping))

	src := []interface{}{`s0`, `s1`, `s2`, `s3`}
	dst := make([]interface{}, 4)

	try(t, ReconcileOrder(mapping, []int{2, 0, 1}, src, dst))
	eq(t, []interface{}{`s2`, `s3`, `s0`, `s1`}, dst)

	try(t, ReconcileOrder(mapping, []int{0, 1, 2}, src, dst))
	eq(t, src, dst)
}

func TestReconcileOrder_polymorphic(t *testing.T) {
	mapping := testShapeMapping()

	src := []interface{}{`radius`, `color`, `side`, `kind`}
	dst := make([]interface{}, 4)

	order, err := OrderMapping(mapping, []string{`radius`, `color`, `side`})
	try(t, err)
	eq(t, []int{1, 0, 2, 3}, order)

	try(t, ReconcileOrder(mapping, InverseOrder(order), src, dst))
	eq(t, []interface{}{`color`, `radius`, `side`, `kind`}, dst)
}

func TestReconcileOrder_mismatch(t *testing.T) {
	mapping := tMapping(`thing`, tScalar(`a`), tScalar(`b`))

	test := func(inverse []int, src, dst []interface{}) {
		t.Helper()
		err := ReconcileOrder(mapping, inverse, src, dst)
		if !errors.Is(err, ErrStructuralMismatch) {
			t.Fatalf(`expected error ErrStructuralMismatch, got %+v`, err)
		}
	}

	test([]int{0}, make([]interface{}, 2), make([]interface{}, 2))
	test([]int{0, 1}, make([]interface{}, 1), make([]interface{}, 2))
	test([]int{0, 1}, make([]interface{}, 2), make([]interface{}, 3))
	test([]int{0, 2}, make([]interface{}, 2), make([]interface{}, 2))
	test([]int{-1, 0}, make([]interface{}, 2), make([]interface{}, 2))
}

func TestReconcileOrder_not_permutation(t *testing.T) {
	mapping := tMapping(`thing`, tScalar(`a`), tScalar(`b`))
	dst := make([]interface{}, 2)

	err := ReconcileOrder(mapping, []int{0, 0}, []interface{}{`A`, `B`}, dst)
	if !errors.Is(err, ErrStructuralMismatch) {
		t.Fatalf(`expected error ErrStructuralMismatch, got %+v`, err)
	}

	// Counts [1, 1, 2]: repeating a one-value attribute still fills the destination.
	inner := tMapping(`inner`, tScalar(`x`), tScalar(`y`))
	nested := tMapping(`outer`, tScalar(`a`), tScalar(`b`), Nested{Name: `c`, Mapping: inner})
	err = ReconcileOrder(nested, []int{1, 1, 2}, make([]interface{}, 4), make([]interface{}, 4))
	if !errors.Is(err, ErrStructuralMismatch) {
		t.Fatalf(`expected error ErrStructuralMismatch, got %+v`, err)
	}
}

func TestBuild_order_mapping_not_permutation(t *testing.T) {
	mapping := tMapping(`thing`, tScalar(`a`), tScalar(`b`))

	_, err := Build(mapping, []int{1, 1}, tComposite{Values: []interface{}{`A`, `B`}}, nil)
	if !errors.Is(err, ErrStructuralMismatch) {
		t.Fatalf(`expected error ErrStructuralMismatch, got %+v`, err)
	}
}

func TestBuild_order_mapping(t *testing.T) {
	mapping := tMapping(`thing`, tScalar(`a`), tScalar(`b`), tScalar(`c`))
	val := tComposite{Values: []interface{}{10, 20, 30}}

	native, err := Build(mapping, []int{2, 0, 1}, val, nil)
	try(t, err)
	eq(t, []interface{}{30, 10, 20}, native)

	_, err = Build(mapping, []int{0, 1}, val, nil)
	if !errors.Is(err, ErrStructuralMismatch) {
		t.Fatalf(`expected error ErrStructuralMismatch, got %+v`, err)
	}

	_, err = Build(mapping, []int{0, 1, 3}, val, nil)
	if !errors.Is(err, ErrStructuralMismatch) {
		t.Fatalf(`expected error ErrStructuralMismatch, got %+v`, err)
	}
}

func TestBuild_order_mapping_reconciles_to_canonical(t *testing.T) {
	mapping := tMapping(`thing`, tScalar(`a`), tScalar(`b`), tScalar(`c`), tScalar(`d`))
	val := tComposite{Values: []interface{}{`a`, `b`, `c`, `d`}}

	canonical, err := Build(mapping, nil, val, nil)
	try(t, err)

	order := []int{3, 1, 0, 2}
	ordered, err := Build(mapping, order, val, nil)
	try(t, err)
	eq(t, []interface{}{`d`, `b`, `a`, `c`}, ordered)

	reconciled := make([]interface{}, len(ordered))
	try(t, ReconcileOrder(mapping, InverseOrder(order), ordered, reconciled))
	eq(t, canonical, reconciled)
}

func TestBuild_order_mapping_polymorphic(t *testing.T) {
	mapping := testShapeMapping()

	order, err := OrderMapping(mapping, []string{`kind`, `side`, `color`, `radius`})
	try(t, err)
	eq(t, []int{3, 2, 0, 1}, order)

	native, err := Build(mapping, order, Circle{Color: "red", Radius: 2}, nil)
	try(t, err)
	eq(t, []interface{}{"C", nil, "red", 2.0}, native)
}

func TestOrderMapping_invalid(t *testing.T) {
	mapping := testShapeMapping()

	test := func(names ...string) {
		t.Helper()
		_, err := OrderMapping(mapping, names)
		if !errors.Is(err, ErrInvalidMapping) {
			t.Fatalf(`expected error ErrInvalidMapping, got %+v`, err)
		}
	}

	test()
	test(`color`, `radius`)
	test(`color`, `radius`, `volume`)
	test(`color`, `color`, `side`)
	test(`color`, `radius`, `side`, `kind`, `extra`)
}

func TestOrderMapping_does_not_mutate_input(t *testing.T) {
	mapping := testShapeMapping()
	names := make([]string, 3, 4)
	copy(names, []string{`side`, `radius`, `color`})

	_, err := OrderMapping(mapping, names)
	try(t, err)
	eq(t, []string{`side`, `radius`, `color`, ``}, names[:4])
}

func TestInverseOrder(t *testing.T) {
	eq(t, []int{1, 2, 0}, InverseOrder([]int{2, 0, 1}))
	eq(t, []int{0, 1, 2}, InverseOrder([]int{0, 1, 2}))
	eq(t, []int{}, InverseOrder([]int{}))

	order := []int{3, 0, 2, 1}
	eq(t, order, InverseOrder(InverseOrder(order)))
}

func TestInverseOrder_panics(t *testing.T) {
	test := func(order []int) {
		t.Helper()
		defer func() {
			t.Helper()
			if recover() == nil {
				t.Fatalf(`expected InverseOrder(%v) to panic`, order)
			}
		}()
		InverseOrder(order)
	}

	test([]int{0, 0})
	test([]int{1, 2})
	test([]int{-1})
}
