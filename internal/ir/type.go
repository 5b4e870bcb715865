// Package ir implements the SSA intermediate representation of §4.5:
// procedures of basic blocks of instructions, a small type lattice used
// to drive value-directed specialization, and the dominance/use-def
// bookkeeping the optimizer and MIR lowering build on.
package ir

// Type is one element of the IR type lattice (§4.5):
//
//	                     any
//	i1 i8 i16 i32 i64 f32 f64   nil exc   str arr tbl fn vcl obj
//	                     none
//
// Unk means "not yet proven anything"; Any is the top of the lattice (no
// narrowing possible); None is the bottom (an unreachable/impossible
// value, e.g. the result type of a block ending in unreachable).
type Type uint8

const (
	Unk Type = iota
	Any

	I1
	I8
	I16
	I32
	I64
	F32
	F64

	Nil
	Exc

	Str
	Arr
	Tbl
	Fn
	Vcl // virtual closure, prior to devirtualization
	Obj

	None
)

var typeNames = [...]string{
	"unk", "any", "i1", "i8", "i16", "i32", "i64", "f32", "f64",
	"nil", "exc", "str", "arr", "tbl", "fn", "vcl", "obj", "none",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "type(?)"
}

// IsInteger reports whether t is one of the fixed-width integer types.
func (t Type) IsInteger() bool { return t >= I1 && t <= I64 }

// IsFloat reports whether t is f32 or f64.
func (t Type) IsFloat() bool { return t == F32 || t == F64 }

// IsNumeric reports whether t is any integer or float type.
func (t Type) IsNumeric() bool { return t.IsInteger() || t.IsFloat() }

// IsGC reports whether a value of type t is a heap reference the
// collector must trace — mirrors value.Kind.IsGC's split at the object
// kinds, but over the IR's own lattice.
func (t Type) IsGC() bool {
	switch t {
	case Str, Arr, Tbl, Fn, Vcl, Obj:
		return true
	default:
		return false
	}
}

// settle narrows "from" toward "to", returning the narrowed type and
// whether the narrowing is consistent. Any narrows to anything; a
// concrete type only narrows to itself; Unk is treated as already-Any
// for this purpose (nothing is known yet, so nothing is contradicted).
// None only narrows to itself (an impossible value stays impossible).
func settle(from, to Type) (Type, bool) {
	if from == to {
		return from, true
	}
	if from == Any || from == Unk {
		return to, true
	}
	if to == Any {
		return from, true
	}
	return from, false
}

// join computes the least upper bound of two types for phi construction:
// identical types join to themselves, Unk absorbs into the other
// operand's type, and otherwise the join is Any (no narrower common
// type is known; Any joined with anything stays Any).
func join(a, b Type) Type {
	if a == b {
		return a
	}
	if a == Unk {
		return b
	}
	if b == Unk {
		return a
	}
	return Any
}
