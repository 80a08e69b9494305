package replica

import (
	"reflect"
)

// taskOp identifies the kind of pending work unit.
type taskOp int

const (
	// opFill overwrites the members or elements of a shell with copies.
	opFill taskOp = iota

	// opBox stores a finished value into an interface slot.
	opBox

	// opStore inserts a finished key and value into a map shell.
	opStore
)

// task is one pending unit of work: a source paired with the shell that
// receives its copy. Under the recursive strategy tasks run as soon as
// they are scheduled; under the iterative strategy they wait on a stack.
type task struct {
	op   taskOp
	plan *plan
	src  reflect.Value
	dst  reflect.Value
	key  reflect.Value // opStore only
}

// run holds the state of a single top-level copy call.
type run struct {
	ids       *identityMap
	interior  map[identity]interiorRef
	iterative bool
	stack     []task
}

func newRun(strategy Strategy) *run {
	return &run{
		ids:       newIdentityMap(),
		iterative: strategy == StrategyIterative,
	}
}

// copyRoot copies src into a fresh addressable value of the same type.
func (r *run) copyRoot(src reflect.Value) (reflect.Value, error) {
	r.interior = scanInterior(src)

	dst := reflect.New(src.Type()).Elem()
	if err := r.assign(src, dst); err != nil {
		return reflect.Value{}, err
	}

	for len(r.stack) > 0 {
		next := r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]
		if err := r.perform(next); err != nil {
			return reflect.Value{}, err
		}
	}

	return dst, nil
}

// assign makes dst hold a copy of src. dst must be addressable and of
// src's type.
func (r *run) assign(src, dst reflect.Value) error {
	if isAbsent(src) {
		dst.Set(src)
		return nil
	}

	// Dispatch on the runtime type of the value, not the declared type of
	// the slot it came from.
	p, err := planFor(src.Type())
	if err != nil {
		return err
	}

	if p.hasCustom {
		return r.assignCustom(p, src, dst)
	}

	switch p.shape {
	case ShapeScalar:
		dst.Set(src)
		return nil

	case ShapeInterface:
		return r.assignInterface(src, dst)
	}

	if !p.shape.hasIdentity() {
		// Inline values have no identity: copy in place.
		dst.Set(src)
		if p.flat {
			return nil
		}
		return r.schedule(task{op: opFill, plan: p, src: src, dst: dst})
	}

	if hit, ok := r.ids.lookup(src); ok {
		dst.Set(hit)
		return nil
	}

	if p.shape == ShapePointer && r.interior != nil {
		id, _ := identityOf(src)
		if ref, ok := r.interior[id]; ok {
			return r.assignInterior(ref, src, dst)
		}
	}

	shell := p.shell(src)
	r.ids.register(src, shell)
	dst.Set(shell)

	if p.elemFlat {
		return nil
	}
	return r.schedule(task{op: opFill, plan: p, src: src, dst: shell})
}

// assignInterface copies the dynamic value of an interface slot.
func (r *run) assignInterface(src, dst reflect.Value) error {
	inner := src.Elem()
	holder := reflect.New(inner.Type()).Elem()
	return r.around(task{op: opBox, src: holder, dst: dst}, func() error {
		return r.assign(inner, holder)
	})
}

// assignInterior copies a pointer into storage owned by another reference.
// The copy points at the same location inside the owner's copy, creating
// that copy first when the pointer is reached before its owner.
func (r *run) assignInterior(ref interiorRef, src, dst reflect.Value) error {
	shell, ok := r.ids.lookup(ref.owner)
	if !ok {
		holder := reflect.New(ref.owner.Type()).Elem()
		if err := r.assign(ref.owner, holder); err != nil {
			return err
		}
		shell = holder
	}

	target := ref.within(shell)
	r.ids.register(src, target)
	dst.Set(target)
	return nil
}

// assignCustom copies a value through its own Clone method.
func (r *run) assignCustom(p *plan, src, dst reflect.Value) error {
	if hit, ok := r.ids.lookup(src); ok {
		dst.Set(hit)
		return nil
	}
	out := p.custom.Func.Call([]reflect.Value{src})[0]
	r.ids.register(src, out)
	dst.Set(out)
	return nil
}

// schedule runs a task now or pushes it, depending on strategy.
func (r *run) schedule(t task) error {
	if r.iterative {
		r.stack = append(r.stack, t)
		return nil
	}
	return r.perform(t)
}

// around runs body and then commit. On the stack the commit is pushed
// first, so every task body schedules is finished before commit pops.
func (r *run) around(commit task, body func() error) error {
	if r.iterative {
		r.stack = append(r.stack, commit)
		return body()
	}
	if err := body(); err != nil {
		return err
	}
	return r.perform(commit)
}

// perform executes a single task.
func (r *run) perform(t task) error {
	switch t.op {
	case opBox:
		t.dst.Set(t.src)
		return nil
	case opStore:
		t.dst.SetMapIndex(t.key, t.src)
		return nil
	}

	p := t.plan
	switch p.shape {
	case ShapePointer:
		return r.assign(t.src.Elem(), t.dst.Elem())

	case ShapeFixedSequence, ShapeDynamicSequence:
		for i := 0; i < t.src.Len(); i++ {
			if err := r.assign(t.src.Index(i), t.dst.Index(i)); err != nil {
				return err
			}
		}

	case ShapeKeyedSequence:
		iter := t.src.MapRange()
		for iter.Next() {
			k, v := iter.Key(), iter.Value()
			key := reflect.New(p.key).Elem()
			val := reflect.New(p.elem).Elem()
			err := r.around(task{op: opStore, dst: t.dst, key: key, src: val}, func() error {
				if err := r.assign(k, key); err != nil {
					return err
				}
				return r.assign(v, val)
			})
			if err != nil {
				return err
			}
		}

	case ShapeComposite:
		for _, m := range p.members {
			if !m.writable {
				continue
			}
			field := t.dst.Field(m.index)
			switch m.policy {
			case PolicyShare:
				// shallow copy already holds the source value
			case PolicySuppress:
				field.SetZero()
			default:
				if err := r.assign(t.src.Field(m.index), field); err != nil {
					return withField(err, m.name)
				}
			}
		}
	}

	return nil
}

// shell allocates the shallow duplicate of a reference value.
func (p *plan) shell(src reflect.Value) reflect.Value {
	switch p.shape {
	case ShapePointer:
		s := reflect.New(p.elem)
		s.Elem().Set(src.Elem())
		return s

	case ShapeDynamicSequence:
		s := reflect.MakeSlice(p.typ, src.Len(), src.Cap())
		reflect.Copy(s, src)
		return s

	case ShapeKeyedSequence:
		s := reflect.MakeMapWithSize(p.typ, src.Len())
		// Entries that need traversal are inserted by their opFill task.
		if p.elemFlat {
			iter := src.MapRange()
			for iter.Next() {
				s.SetMapIndex(iter.Key(), iter.Value())
			}
		}
		return s
	}
	return src
}

// isAbsent reports whether v holds no value to copy.
func isAbsent(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}
