package replica

import (
	"reflect"
)

// Shape is the structural category of a type. It decides how values of
// the type are traversed during a copy.
type Shape int

const (
	ShapeUnknown Shape = iota

	// ShapeScalar covers strings, booleans, numbers and named types of them.
	// Scalars are immutable by convention and are never duplicated.
	ShapeScalar

	// ShapeFixedSequence covers arrays.
	ShapeFixedSequence

	// ShapeDynamicSequence covers slices.
	ShapeDynamicSequence

	// ShapeKeyedSequence covers maps.
	ShapeKeyedSequence

	// ShapeComposite covers structs.
	ShapeComposite

	// ShapePointer covers pointers to any other shape.
	ShapePointer

	// ShapeInterface covers interface slots. Their contents are classified
	// by runtime type, not by the declared type.
	ShapeInterface

	// ShapeTotal is the number of shapes defined.
	ShapeTotal = int(iota)
)

var shapeNames = [ShapeTotal]string{
	ShapeUnknown:         "unknown",
	ShapeScalar:          "scalar",
	ShapeFixedSequence:   "fixed-sequence",
	ShapeDynamicSequence: "dynamic-sequence",
	ShapeKeyedSequence:   "keyed-sequence",
	ShapeComposite:       "composite",
	ShapePointer:         "pointer",
	ShapeInterface:       "interface",
}

func (s Shape) String() string {
	if s < 0 || int(s) >= ShapeTotal {
		return shapeNames[ShapeUnknown]
	}
	return shapeNames[s]
}

// hasIdentity reports whether values of the shape are references whose
// address identifies them. Only these enter the identity map.
func (s Shape) hasIdentity() bool {
	switch s {
	case ShapePointer, ShapeDynamicSequence, ShapeKeyedSequence:
		return true
	default:
		return false
	}
}

// plan is the cached classification of a concrete type.
type plan struct {
	typ     reflect.Type
	shape   Shape
	elem    reflect.Type // element type for sequences and pointers
	key     reflect.Type // key type for keyed sequences
	members []member     // writable and read-only fields, declaration order

	// flat is true when a bit-for-bit copy of a value is already a complete
	// copy: no member or element needs traversal.
	flat bool

	// elemFlat is true when sequence elements (and map keys) or the
	// pointee are flat.
	elemFlat bool

	// custom is set when the type copies itself through a Clone method.
	custom    reflect.Method
	hasCustom bool
}

// ShapeOf reports the classified shape of a type.
func ShapeOf(t reflect.Type) (Shape, error) {
	p, err := planFor(t)
	if err != nil {
		return ShapeUnknown, err
	}
	return p.shape, nil
}

// classify builds the plan for a type. Member and element types are
// classified through planFor so nested plans land in the cache too.
// isFlat never looks through a reference, which keeps recursive types
// finite.
func classify(t reflect.Type) (*plan, error) {
	p := &plan{typ: t}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		p.shape = ShapeScalar
		p.flat = true
		return p, nil

	case reflect.Array:
		p.shape = ShapeFixedSequence
		if err := p.resolveElem(t); err != nil {
			return nil, err
		}
		p.elemFlat = isFlat(p.elem)
		p.flat = p.elemFlat || t.Len() == 0

	case reflect.Slice:
		p.shape = ShapeDynamicSequence
		if err := p.resolveElem(t); err != nil {
			return nil, err
		}
		p.elemFlat = isFlat(p.elem)

	case reflect.Map:
		p.shape = ShapeKeyedSequence
		if err := p.resolveElem(t); err != nil {
			return nil, err
		}
		p.key = t.Key()
		p.elemFlat = isFlat(p.elem) && isFlat(p.key)

	case reflect.Struct:
		p.shape = ShapeComposite
		members, err := buildMembers(t)
		if err != nil {
			return nil, err
		}
		p.members = members
		p.flat = true
		for _, m := range members {
			if !m.writable || m.policy == PolicyShare {
				continue
			}
			if m.policy == PolicySuppress || !isFlat(m.typ) {
				p.flat = false
				break
			}
		}

	case reflect.Ptr:
		p.shape = ShapePointer
		p.elem = t.Elem()
		p.elemFlat = isFlat(p.elem)

	case reflect.Interface:
		p.shape = ShapeInterface

	default:
		// chan, func and unsafe.Pointer describe no structure to copy.
		return nil, newShapeError(ErrUnsupportedShape, t)
	}

	if m, ok := cloneMethod(t); ok {
		p.custom = m
		p.hasCustom = true
		p.flat = false
	}

	return p, nil
}

// resolveElem records the element type of a sequence.
func (p *plan) resolveElem(t reflect.Type) error {
	elem := t.Elem()
	if elem == nil {
		return newShapeError(ErrMissingElementType, t)
	}
	p.elem = elem
	return nil
}

// isFlat reports whether values of t need no traversal after a shallow copy.
// Classification failures are not fatal here: the type is treated as
// needing traversal and the error surfaces if a value is ever visited.
func isFlat(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return false
	}
	p, err := planFor(t)
	if err != nil {
		return false
	}
	return p.flat
}

// cloneMethod finds a Clone method returning the receiver's own type.
func cloneMethod(t reflect.Type) (reflect.Method, bool) {
	if t.Kind() == reflect.Interface {
		return reflect.Method{}, false
	}
	m, ok := t.MethodByName("Clone")
	if !ok {
		return reflect.Method{}, false
	}
	// Method type includes the receiver as its first input.
	if m.Type.NumIn() != 1 || m.Type.NumOut() != 1 || m.Type.Out(0) != t {
		return reflect.Method{}, false
	}
	return m, true
}
