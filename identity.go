package replica

import (
	"reflect"
)

// identity is the reference identity of a value. Two values share an
// identity only when they are the same reference of the same type;
// structurally equal values at different addresses are unrelated.
type identity struct {
	typ reflect.Type
	ptr uintptr
	len int // slices only
	cap int // slices only
}

// identityOf returns the identity of a reference value.
// The second result is false for nil references and for values that
// carry no identity (scalars, inline structs and arrays, interfaces).
func identityOf(v reflect.Value) (identity, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{typ: v.Type(), ptr: v.Pointer(), len: v.Len(), cap: v.Cap()}, true
	default:
		return identity{}, false
	}
}

// identityMap maps source identities to the copies produced for them.
// One map serves exactly one top-level copy call.
type identityMap struct {
	entries map[identity]reflect.Value
}

func newIdentityMap() *identityMap {
	return &identityMap{entries: make(map[identity]reflect.Value)}
}

// lookup returns the copy already produced for src.
func (m *identityMap) lookup(src reflect.Value) (reflect.Value, bool) {
	id, ok := identityOf(src)
	if !ok {
		return reflect.Value{}, false
	}
	dst, ok := m.entries[id]
	return dst, ok
}

// register records dst as the copy of src. It must be called before any
// member of src is visited so cycles back to src find dst. It reports
// whether a new entry was created; sources without identity and sources
// already registered are left alone.
func (m *identityMap) register(src, dst reflect.Value) bool {
	id, ok := identityOf(src)
	if !ok {
		return false
	}
	if _, exists := m.entries[id]; exists {
		return false
	}
	m.entries[id] = dst
	return true
}

// Len returns the number of registered identities.
func (m *identityMap) Len() int {
	return len(m.entries)
}
