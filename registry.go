package itemx

import (
	"reflect"
	"sort"
	"sync"
)

// Factory rebuilds an item from its structured value.
type Factory func(Value) (Item, error)

type registryEntry struct {
	typ     reflect.Type
	factory Factory
}

var (
	registry   = make(map[string]registryEntry)
	registryMu sync.RWMutex
)

// NameOf returns the registry name of T: its package path and type name.
func NameOf[T any]() string {
	typ := reflect.TypeFor[T]()
	if typ.PkgPath() == "" {
		return typ.String()
	}
	return typ.PkgPath() + "." + typ.Name()
}

// Register records T so items of that type can be revived from a Value by
// name. Generated code calls MustRegister from an init function.
func Register[T Item]() error {
	name := NameOf[T]()
	typ := reflect.TypeFor[T]()

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[name]; ok {
		if existing.typ == typ {
			return nil
		}
		return NewDuplicateItemError(name)
	}

	registry[name] = registryEntry{
		typ: typ,
		factory: func(v Value) (Item, error) {
			out, err := FromValue[T](v)
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	}
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister[T Item]() {
	if err := Register[T](); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	entry, ok := registry[name]
	if !ok {
		return nil, false
	}
	return entry.factory, true
}

// Names lists registered item names in sorted order.
func Names() []string {
	registryMu.RLock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	registryMu.RUnlock()
	sort.Strings(names)
	return names
}

// Revive rebuilds the item registered under name from v.
func Revive(name string, v Value) (Item, error) {
	factory, ok := Lookup(name)
	if !ok {
		return nil, NewUnknownItemError(name)
	}
	return factory(v)
}

// Reset clears the registry.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]registryEntry)
}
