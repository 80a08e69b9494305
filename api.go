// Package replica provides identity-preserving deep copies of arbitrary Go values.
//
// A copy duplicates every reachable pointer, slice, map, struct and array,
// while references that are shared inside the source graph stay shared in
// the copy and cycles are reproduced instead of followed forever.
//
// # Basic Usage
//
//	type Node struct {
//	    Value int
//	    Left  *Node
//	    Right *Node
//	}
//
//	root := &Node{Value: 1}
//	root.Left = root
//
//	dup, err := replica.Copy(ctx, root)
//	// dup != root, dup.Left == dup
//
// # Shapes
//
// Every type is classified once into a shape that decides how its values
// are traversed:
//
//   - scalar: bool, numbers, string and named types of them, returned as-is
//   - fixed sequence: arrays, copied element by element
//   - dynamic sequence: slices, copied into a new backing array
//   - keyed sequence: maps, rebuilt with copied keys and values
//   - composite: structs, copied member by member
//   - pointer: a new pointee holding a copy
//   - interface: copied by the runtime type of its contents
//
// Channels, functions and unsafe pointers have no structural description.
// A non-nil value of one of them fails the copy with ErrUnsupportedShape
// unless the member holding it is shared or ignored.
//
// # Tag Syntax
//
// Struct members declare their copy policy with the clone tag:
//
//	type Document struct {
//	    Body    *Section                       // deep copy (default)
//	    Owner   *User      `clone:"shallow"`   // shared with the source
//	    Scratch []byte     `clone:"ignore"`    // zero value in the copy
//	    Notify  func()     `clone:"shallow"`   // functions are shared, never copied
//	}
//
// Register scans a struct type with sentinel ahead of its first copy and
// reports tag errors early:
//
//	if err := replica.Register[Document](); err != nil {
//	    return err
//	}
//
// Unexported fields cannot be written through reflection. They keep the
// value of the shallow copy regardless of policy.
//
// A pointer to an element or field inside another copied value, such as
// &doc.Sections[2], points at the same element of the copied value.
//
// # Strategies
//
// Two traversal strategies produce identical copies:
//
//   - StrategyIterative (default): an explicit work stack, safe for graphs
//     of any depth
//   - StrategyRecursive: direct recursion, depth bounded by the longest
//     acyclic path in the graph
//
//	eng := replica.New(replica.WithStrategy(replica.StrategyRecursive))
//	dup, err := replica.CopyWith(ctx, eng, root)
//
// # Override Interface
//
// Types can bypass reflection by implementing Cloner. The engine calls
// Clone and uses its result as the finished copy.
package replica

// Cloner allows types to provide their own deep copy logic.
//
// The Clone method must return a copy where modifications to the clone do
// not affect the original value. The engine does not traverse the result.
//
// For simple value types with no pointers, slices, or maps, Clone can simply
// return the receiver value:
//
//	func (c Color) Clone() Color { return c }
//
// For pointer types, return a fresh pointer:
//
//	func (b *Buffer) Clone() *Buffer {
//	    data := make([]byte, len(b.data))
//	    copy(data, b.data)
//	    return &Buffer{data: data}
//	}
type Cloner[T any] interface {
	Clone() T
}
