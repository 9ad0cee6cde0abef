package itemx

import "maps"

// Item is the common interface implemented by every struct annotated with
// //itemx:item. It lets a collection pipeline store and handle values of
// different item types uniformly.
//
// Implementations are generated by itemx-gen; writing them by hand is
// possible but the three methods must keep the contracts below.
type Item interface {
	// AsAny returns the concrete value behind the interface so callers can
	// recover its type with a type assertion (see As).
	AsAny() any

	// BoxClone returns an independent deep copy of the item. The copy shares
	// no mutable storage with the receiver and is safe to hand to another
	// goroutine.
	BoxClone() Item

	// ToValue converts the item into its structured representation. It
	// panics with a *ConversionError when the item cannot be represented.
	ToValue() Value
}

// Cloner allows types to provide deep copy logic.
//
// The Clone method must return a deep copy where modifications to the clone
// do not affect the original value. Generated items implement it for their
// own type, which is what BoxClone relies on.
type Cloner[T any] interface {
	Clone() T
}

// CloneMap returns a shallow copy of m, nil when m is nil. Generated Clone
// methods use it so they never have to spell the map type.
func CloneMap[M ~map[K]V, K comparable, V any](m M) M {
	return maps.Clone(m)
}

// As recovers the concrete type of an item.
func As[T any](it Item) (T, bool) {
	if it == nil {
		var zero T
		return zero, false
	}
	v, ok := it.AsAny().(T)
	return v, ok
}
