// Package testing provides fixtures and graph checks for replica.
package testing

import (
	"fmt"
	"math"
	"reflect"

	"github.com/davecgh/go-spew/spew"
)

// Node is a binary graph node. Left and Right may point anywhere,
// including back at the node itself.
type Node struct {
	Value int
	Left  *Node
	Right *Node
}

// Simple exercises every member policy.
type Simple struct {
	I       int
	S       string
	Ignored string `clone:"ignore"`
	Shallow *Node  `clone:"shallow"`
}

// Tree is a rooted tree whose children point back at their parent.
type Tree struct {
	Name     string
	Parent   *Tree
	Children []*Tree
	Tags     map[string]string
	Meta     any
}

// Figure is implemented by the heterogeneous values held in Mixed.
type Figure interface {
	Area() float64
}

// Circle is a Figure stored by value.
type Circle struct {
	Radius float64
}

func (c Circle) Area() float64 { return math.Pi * c.Radius * c.Radius }

// Square is a Figure stored by pointer.
type Square struct {
	Side  float64
	Label *string
}

func (s *Square) Area() float64 { return s.Side * s.Side }

// Mixed combines every shape in one record.
type Mixed struct {
	Items   []any
	Lookup  map[string]*Node
	Grid    [2][]int
	Pair    [2]*Node
	Figures []Figure
	Self    *Mixed
}

// SelfCycle returns a node whose Left points at itself.
func SelfCycle() *Node {
	n := &Node{Value: 1}
	n.Left = n
	return n
}

// SharedPair returns an array holding the same node twice.
func SharedPair() [2]*Node {
	n := &Node{Value: 7}
	return [2]*Node{n, n}
}

// NestedLists returns [[1,2,3],[4,5]].
func NestedLists() [][]int {
	return [][]int{{1, 2, 3}, {4, 5}}
}

// Ring returns the first of n nodes linked through Right into a cycle,
// with every Left pointing at the first node.
func Ring(n int) *Node {
	head := &Node{Value: 0}
	cur := head
	for i := 1; i < n; i++ {
		next := &Node{Value: i, Left: head}
		cur.Right = next
		cur = next
	}
	cur.Right = head
	head.Left = head
	return head
}

// Chain returns a linked list of the given length through Right.
func Chain(length int) *Node {
	head := &Node{Value: 0}
	cur := head
	for i := 1; i < length; i++ {
		cur.Right = &Node{Value: i}
		cur = cur.Right
	}
	return head
}

// Forest returns a tree of the given fan-out and depth with parent links,
// tags, and every node's Meta pointing at the root.
func Forest(fanout, depth int) *Tree {
	root := &Tree{Name: "root", Tags: map[string]string{"level": "0"}}
	root.Meta = root
	grow(root, root, fanout, depth)
	return root
}

func grow(root, parent *Tree, fanout, depth int) {
	if depth == 0 {
		return
	}
	for i := 0; i < fanout; i++ {
		child := &Tree{
			Name:   fmt.Sprintf("%s.%d", parent.Name, i),
			Parent: parent,
			Tags:   map[string]string{"level": fmt.Sprint(depth)},
			Meta:   root,
		}
		parent.Children = append(parent.Children, child)
		grow(root, child, fanout, depth-1)
	}
}

// MixedGraph returns a Mixed value whose containers share nodes with
// each other and with the record itself.
func MixedGraph() *Mixed {
	shared := &Node{Value: 42}
	shared.Right = shared
	label := "sq"
	square := &Square{Side: 2, Label: &label}
	row := []int{1, 2, 3}

	m := &Mixed{
		Lookup:  map[string]*Node{"a": shared, "b": {Value: 1, Left: shared}},
		Grid:    [2][]int{row, row},
		Pair:    [2]*Node{shared, nil},
		Figures: []Figure{Circle{Radius: 1}, square, square},
	}
	m.Items = []any{shared, "text", 3, row, square, Circle{Radius: 2}, m, nil}
	m.Self = m
	return m
}

// pair is a pending comparison in Equivalent.
type pair struct {
	a, b reflect.Value
	path string
}

// ref is the address identity of a reference value.
type ref struct {
	kind reflect.Kind
	typ  reflect.Type
	ptr  uintptr
	len  int
}

func refOf(v reflect.Value) (ref, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map:
		if v.IsNil() {
			return ref{}, false
		}
		return ref{kind: v.Kind(), typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		if v.IsNil() {
			return ref{}, false
		}
		return ref{kind: v.Kind(), typ: v.Type(), ptr: v.Pointer(), len: v.Len()}, true
	}
	return ref{}, false
}

var dumper = spew.ConfigState{Indent: "  ", MaxDepth: 2, DisablePointerAddresses: true}

func mismatch(path, what string, a, b reflect.Value) error {
	return fmt.Errorf("%s: %s\nleft:  %s\nright: %s", path, what, dump(a), dump(b))
}

func dump(v reflect.Value) string {
	if !v.IsValid() || !v.CanInterface() {
		return "<unavailable>"
	}
	return dumper.Sdump(v.Interface())
}

// Equivalent reports whether two graphs have the same structure, the same
// scalar leaves, and the same aliasing pattern: a reference is shared
// between two positions of a exactly when the corresponding references
// are shared in b. Only exported struct fields are compared and map keys
// must be scalars.
func Equivalent(a, b any) error {
	fwd := make(map[ref]ref)
	bwd := make(map[ref]ref)
	stack := []pair{{a: reflect.ValueOf(a), b: reflect.ValueOf(b), path: "root"}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		av, bv := p.a, p.b

		if av.IsValid() != bv.IsValid() {
			return mismatch(p.path, "validity differs", av, bv)
		}
		if !av.IsValid() {
			continue
		}
		if av.Type() != bv.Type() {
			return mismatch(p.path, fmt.Sprintf("type %v != %v", av.Type(), bv.Type()), av, bv)
		}

		ra, okA := refOf(av)
		rb, okB := refOf(bv)
		if okA != okB {
			return mismatch(p.path, "nil differs", av, bv)
		}
		if okA {
			seenB, seenA := fwd[ra], bwd[rb]
			_, hasA := fwd[ra]
			_, hasB := bwd[rb]
			if hasA || hasB {
				if seenB != rb || seenA != ra {
					return mismatch(p.path, "aliasing differs", av, bv)
				}
				continue
			}
			fwd[ra], bwd[rb] = rb, ra
		}

		switch av.Kind() {
		case reflect.Ptr:
			stack = append(stack, pair{a: av.Elem(), b: bv.Elem(), path: "(*" + p.path + ")"})

		case reflect.Interface:
			if av.IsNil() != bv.IsNil() {
				return mismatch(p.path, "nil differs", av, bv)
			}
			stack = append(stack, pair{a: av.Elem(), b: bv.Elem(), path: p.path})

		case reflect.Slice, reflect.Array:
			if av.Len() != bv.Len() {
				return mismatch(p.path, "length differs", av, bv)
			}
			for i := 0; i < av.Len(); i++ {
				stack = append(stack, pair{a: av.Index(i), b: bv.Index(i), path: fmt.Sprintf("%s[%d]", p.path, i)})
			}

		case reflect.Map:
			if av.Len() != bv.Len() {
				return mismatch(p.path, "length differs", av, bv)
			}
			iter := av.MapRange()
			for iter.Next() {
				k := iter.Key()
				if !isScalar(k.Kind()) {
					return fmt.Errorf("%s: map key kind %v not supported", p.path, k.Kind())
				}
				other := bv.MapIndex(k)
				if !other.IsValid() {
					return mismatch(p.path, fmt.Sprintf("missing key %v", k), av, bv)
				}
				stack = append(stack, pair{a: iter.Value(), b: other, path: fmt.Sprintf("%s[%v]", p.path, k)})
			}

		case reflect.Struct:
			for i := 0; i < av.NumField(); i++ {
				sf := av.Type().Field(i)
				if !sf.IsExported() {
					continue
				}
				stack = append(stack, pair{a: av.Field(i), b: bv.Field(i), path: p.path + "." + sf.Name})
			}

		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			if av.Pointer() != bv.Pointer() {
				return mismatch(p.path, "reference differs", av, bv)
			}

		default:
			if av.Interface() != bv.Interface() {
				return mismatch(p.path, "value differs", av, bv)
			}
		}
	}

	return nil
}

// Disjoint reports an error if any pointer, slice backing array or map
// reachable from b is also reachable from a. Empty slices and pointers to
// zero-sized values carry no storage and are ignored.
func Disjoint(a, b any) error {
	owned := make(map[uintptr]string)
	walk(reflect.ValueOf(a), "root", func(v reflect.Value, path string) {
		if ptr, ok := storage(v); ok {
			owned[ptr] = path
		}
	})

	var err error
	walk(reflect.ValueOf(b), "root", func(v reflect.Value, path string) {
		if err != nil {
			return
		}
		if ptr, ok := storage(v); ok {
			if at, shared := owned[ptr]; shared {
				err = fmt.Errorf("%s shares storage with %s", path, at)
			}
		}
	})
	return err
}

// storage returns the address of the memory a reference owns.
func storage(v reflect.Value) (uintptr, bool) {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() || v.Type().Elem().Size() == 0 {
			return 0, false
		}
		return v.Pointer(), true
	case reflect.Slice:
		if v.IsNil() || v.Cap() == 0 || v.Type().Elem().Size() == 0 {
			return 0, false
		}
		return v.Pointer(), true
	case reflect.Map:
		if v.IsNil() {
			return 0, false
		}
		return v.Pointer(), true
	}
	return 0, false
}

// walk visits every value reachable from v once per reference.
func walk(v reflect.Value, path string, visit func(reflect.Value, string)) {
	seen := make(map[ref]bool)
	stack := []pair{{a: v, path: path}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cur := p.a
		if !cur.IsValid() {
			continue
		}
		if r, ok := refOf(cur); ok {
			if seen[r] {
				continue
			}
			seen[r] = true
		}
		visit(cur, p.path)

		switch cur.Kind() {
		case reflect.Ptr, reflect.Interface:
			if !cur.IsNil() {
				stack = append(stack, pair{a: cur.Elem(), path: p.path})
			}
		case reflect.Slice, reflect.Array:
			for i := 0; i < cur.Len(); i++ {
				stack = append(stack, pair{a: cur.Index(i), path: fmt.Sprintf("%s[%d]", p.path, i)})
			}
		case reflect.Map:
			iter := cur.MapRange()
			for iter.Next() {
				stack = append(stack,
					pair{a: iter.Key(), path: p.path + "{key}"},
					pair{a: iter.Value(), path: fmt.Sprintf("%s[%v]", p.path, iter.Key())},
				)
			}
		case reflect.Struct:
			for i := 0; i < cur.NumField(); i++ {
				if !cur.Type().Field(i).IsExported() {
					continue
				}
				stack = append(stack, pair{a: cur.Field(i), path: p.path + "." + cur.Type().Field(i).Name})
			}
		}
	}
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	return false
}
