package replica

import (
	"cmp"
	"reflect"
	"slices"
)

// span is the source memory owned by one reference: the pointee of a
// pointer or the elements of a slice.
type span struct {
	start uintptr
	end   uintptr
	owner reflect.Value
	id    identity
}

// interiorRef places a pointer target inside the memory of another
// reference. path holds the element index first when the owner is a
// slice, then the field and array indices down to the target.
type interiorRef struct {
	owner reflect.Value
	path  []int
}

// within returns the address of the referenced location inside shell,
// the copy of the owner.
func (ref interiorRef) within(shell reflect.Value) reflect.Value {
	v, path := shell, ref.path
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	} else {
		v = v.Index(path[0])
		path = path[1:]
	}
	for _, i := range path {
		if v.Kind() == reflect.Struct {
			v = v.Field(i)
		} else {
			v = v.Index(i)
		}
	}
	return v.Addr()
}

// scanInterior walks the members a copy duplicates and finds pointers that
// address the inside of memory owned by another reference, such as &s[i]
// or &p.Field. It returns nil when there are none.
func scanInterior(root reflect.Value) map[identity]interiorRef {
	var spans []span
	seen := make(map[identity]bool)
	stack := []reflect.Value{root}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if isAbsent(v) {
			continue
		}

		// Classification failures surface during the copy itself.
		p, err := planFor(v.Type())
		if err != nil || p.hasCustom || p.flat {
			continue
		}

		switch p.shape {
		case ShapeFixedSequence:
			for i := v.Len() - 1; i >= 0; i-- {
				stack = append(stack, v.Index(i))
			}
			continue

		case ShapeComposite:
			for _, m := range p.members {
				if m.writable && m.policy == PolicyDuplicate {
					stack = append(stack, v.Field(m.index))
				}
			}
			continue

		case ShapeInterface:
			stack = append(stack, v.Elem())
			continue
		}

		id, ok := identityOf(v)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true

		switch p.shape {
		case ShapePointer:
			if size := p.elem.Size(); size > 0 {
				spans = append(spans, span{start: v.Pointer(), end: v.Pointer() + size, owner: v, id: id})
			}
			if !p.elemFlat {
				stack = append(stack, v.Elem())
			}

		case ShapeDynamicSequence:
			if size := p.elem.Size() * uintptr(v.Len()); size > 0 {
				spans = append(spans, span{start: v.Pointer(), end: v.Pointer() + size, owner: v, id: id})
			}
			if !p.elemFlat {
				for i := v.Len() - 1; i >= 0; i-- {
					stack = append(stack, v.Index(i))
				}
			}

		case ShapeKeyedSequence:
			if !p.elemFlat {
				iter := v.MapRange()
				for iter.Next() {
					stack = append(stack, iter.Key(), iter.Value())
				}
			}
		}
	}

	return resolveInterior(spans)
}

// resolveInterior maps every pointer span nested inside an outermost span
// to its location there. Outermost spans sort first: by start, then by
// size, then slices before pointers and containers before their members.
func resolveInterior(spans []span) map[identity]interiorRef {
	if len(spans) < 2 {
		return nil
	}
	slices.SortFunc(spans, compareSpans)

	var refs map[identity]interiorRef
	top := spans[0]
	for _, s := range spans[1:] {
		if s.end > top.end {
			top = s
			continue
		}
		if s.owner.Kind() != reflect.Ptr {
			// Overlapping slices keep separate copies.
			continue
		}
		path, ok := pathTo(top, s.start-top.start, s.owner.Type().Elem())
		if !ok {
			continue
		}
		if refs == nil {
			refs = make(map[identity]interiorRef)
		}
		refs[s.id] = interiorRef{owner: top.owner, path: path}
	}
	return refs
}

func compareSpans(a, b span) int {
	if c := cmp.Compare(a.start, b.start); c != 0 {
		return c
	}
	if c := cmp.Compare(b.end, a.end); c != 0 {
		return c
	}
	as, bs := a.owner.Kind() == reflect.Slice, b.owner.Kind() == reflect.Slice
	if as != bs {
		if as {
			return -1
		}
		return 1
	}
	at, bt := a.owner.Type().Elem(), b.owner.Type().Elem()
	if _, ok := locate(at, 0, bt); ok {
		return -1
	}
	if _, ok := locate(bt, 0, at); ok {
		return 1
	}
	return cmp.Compare(at.String(), bt.String())
}

// pathTo finds the target of type want at offset off inside the span top.
func pathTo(top span, off uintptr, want reflect.Type) ([]int, bool) {
	elem := top.owner.Type().Elem()
	if top.owner.Kind() == reflect.Ptr {
		return locate(elem, off, want)
	}
	i := off / elem.Size()
	rest, ok := locate(elem, off-i*elem.Size(), want)
	if !ok {
		return nil, false
	}
	return append([]int{int(i)}, rest...), true
}

// locate returns the field and array indices leading from a value of type
// t to a value of type want stored off bytes into it. Unexported fields
// cannot be addressed in the copy and end the search.
func locate(t reflect.Type, off uintptr, want reflect.Type) ([]int, bool) {
	var path []int
	for {
		if off == 0 && t == want {
			return path, true
		}
		switch t.Kind() {
		case reflect.Struct:
			i, ok := fieldAt(t, off)
			if !ok {
				return nil, false
			}
			f := t.Field(i)
			path = append(path, i)
			off -= f.Offset
			t = f.Type

		case reflect.Array:
			size := t.Elem().Size()
			if size == 0 || off/size >= uintptr(t.Len()) {
				return nil, false
			}
			i := off / size
			path = append(path, int(i))
			off -= i * size
			t = t.Elem()

		default:
			return nil, false
		}
	}
}

// fieldAt returns the exported field of struct t covering byte offset off.
func fieldAt(t reflect.Type, off uintptr) (int, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if off >= f.Offset && off < f.Offset+f.Type.Size() {
			return i, f.IsExported()
		}
	}
	return 0, false
}
