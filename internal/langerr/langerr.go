// Package langerr builds the language-level exception values of §7: every
// runtime failure is surfaced as a first-class Value, never a Go panic.
// Raising an exception interns a formatted message string, stores it in
// the VM's "last exception" slot (via the Sink interface, implemented by
// internal/vm), and returns the bare value.Exception marker that callers
// thread through their own (Value, error)-shaped or Value-only return
// paths to signal "an exception is in flight" (§7).
package langerr

import (
	"fmt"

	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/object"
	"github.com/li-script/lightning-sub000/internal/value"
)

// Kind classifies a runtime failure per §7's "Kinds (user-visible)".
type Kind uint8

const (
	Type Kind = iota
	Arity
	Domain
	Mutation
	Allocation
	Lifting
)

func (k Kind) String() string {
	switch k {
	case Type:
		return "type error"
	case Arity:
		return "arity error"
	case Domain:
		return "domain error"
	case Mutation:
		return "mutation error"
	case Allocation:
		return "allocation error"
	case Lifting:
		return "lifting error"
	default:
		return "error"
	}
}

// Sink receives the raised exception payload, mirroring the VM's single
// "last exception" slot (§7). internal/vm's frame state implements this.
type Sink interface {
	SetException(v value.Value)
}

// Raise formats kind and message, interns the result as a string, stores
// it in sink, and returns the value.Exception marker. If the heap cannot
// even allocate the message string, it falls back to storing the bare
// marker as the exception payload itself: allocation failure is always
// fatal to the current call chain but must never corrupt the heap (§7).
func Raise(sink Sink, h *heap.Heap, strings *object.Strings, k Kind, format string, args ...any) value.Value {
	msg := fmt.Sprintf("%s: %s", k, fmt.Sprintf(format, args...))
	str, ok := strings.Intern([]byte(msg))
	if !ok {
		sink.SetException(value.Exception)
		return value.Exception
	}
	sink.SetException(str.Value())
	return value.Exception
}

// Message recovers the text of a previously-raised exception payload, or
// "" if v does not carry an interned string (e.g. it is the bare marker
// stored after an allocation failure).
func Message(v value.Value) string {
	if v.Kind() != value.KindString {
		return ""
	}
	hdr := heap.HeaderOf(v)
	if hdr == nil {
		return ""
	}
	str, ok := hdr.Object().(*object.String)
	if !ok {
		return ""
	}
	return str.String()
}

// TypeError reports an operator or index applied to an incompatible type.
func TypeError(sink Sink, h *heap.Heap, strings *object.Strings, expected string, got value.Kind) value.Value {
	return Raise(sink, h, strings, Type, "expected %s, got %s", expected, got)
}

// ArityError reports a call with too few arguments supplied.
func ArityError(sink Sink, h *heap.Heap, strings *object.Strings, want, got int) value.Value {
	return Raise(sink, h, strings, Arity, "expected at least %d argument(s), got %d", want, got)
}

// OutOfBounds reports an array index outside [0, length).
func OutOfBounds(sink Sink, h *heap.Heap, strings *object.Strings, idx, length int) value.Value {
	return Raise(sink, h, strings, Domain, "out-of-boundaries index %d (length %d)", idx, length)
}

// FrozenWrite reports a mutation attempted on a frozen container or a
// sealed trait set.
func FrozenWrite(sink Sink, h *heap.Heap, strings *object.Strings, what string) value.Value {
	return Raise(sink, h, strings, Mutation, "cannot modify %s: frozen", what)
}

// OutOfMemory reports a page allocator failure. It never itself allocates,
// since there may be no memory left to do so.
func OutOfMemory(sink Sink) value.Value {
	sink.SetException(value.Exception)
	return value.Exception
}

// LiftingError reports a malformed bytecode prototype discovered while
// lifting to SSA (e.g. an operand referencing an out-of-range register).
func LiftingError(sink Sink, h *heap.Heap, strings *object.Strings, format string, args ...any) value.Value {
	return Raise(sink, h, strings, Lifting, format, args...)
}
