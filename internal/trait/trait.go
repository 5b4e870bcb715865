// Package trait implements the optional per-object behavior overrides of
// §3.9 and the fast/slow dispatch path of §4.3: a bitmask records which
// traits are present, absent traits take default behavior, and three
// flag-only traits (seal/freeze/hide) gate mutation instead of holding a
// value.
package trait

import "github.com/li-script/lightning-sub000/internal/value"

// Kind enumerates the value-bearing traits, in the order of §3.9.
type Kind uint8

const (
	Get Kind = iota
	SetK // the set trait; the name Set belongs to the trait table type
	Len
	Neg
	Add
	Sub
	Mul
	Div
	Mod
	Pow
	Lt
	Le
	Eq
	Call
	Str
	GC
	count // number of value-bearing traits; bitmask width
)

// String names a trait for diagnostics/reflection.
func (k Kind) String() string {
	names := [...]string{"get", "set", "len", "neg", "add", "sub", "mul", "div",
		"mod", "pow", "lt", "le", "eq", "call", "str", "gc"}
	if int(k) < len(names) {
		return names[k]
	}
	return "trait(?)"
}

// Set holds the trait table attached to a heap object (§3.9): a bitmask of
// which value-bearing traits are present, their Values, and the three
// mutation-gating flags.
type Set struct {
	mask   uint16
	values [count]value.Value

	Seal   bool // forbids further trait mutation
	Freeze bool // forbids value mutation
	Hide   bool // suppresses the trait list in reflection
}

// Has reports whether trait k has an override installed.
func (s *Set) Has(k Kind) bool { return s.mask&(1<<uint(k)) != 0 }

// Get returns the Value installed for trait k, or Nil if absent.
func (s *Set) Get(k Kind) value.Value {
	if !s.Has(k) {
		return value.Nil
	}
	return s.values[k]
}

// Error is the type of ErrSealed and ErrFrozen, which Set.SetTrait and
// Set.CheckMutable return verbatim so callers can surface them as language-level exceptions without
// allocating a new message each time.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrSealed = Error("modifying sealed traits")
	ErrFrozen = Error("modifying a frozen value")
)

// SetTrait installs or clears the override for trait k (§4.3: "setting a
// trait while seal is true fails"). Passing value.Nil clears it. Only the
// get trait may be a table; every other value-bearing trait must be a
// function or nil — callers pass isFn/isTable computed from the concrete
// value's kind since this package does not depend on internal/object.
func (s *Set) SetTrait(k Kind, v value.Value, isFn, isTable bool) error {
	if s.Seal {
		return ErrSealed
	}
	if v.IsNil() {
		s.mask &^= 1 << uint(k)
		s.values[k] = value.Nil
		return nil
	}
	if !isFn && !(isTable && k == Get) {
		return Error("only the get trait can be a table")
	}
	s.mask |= 1 << uint(k)
	s.values[k] = v
	return nil
}

// CheckMutable returns ErrFrozen if value mutation on the owning object is
// currently forbidden (§4.3: "setting a value on an object whose freeze is
// true fails").
func (s *Set) CheckMutable() error {
	if s.Freeze {
		return ErrFrozen
	}
	return nil
}

// Traverse marks every trait Value holding a GC reference, for the owning
// object's GC traversal (§4.1: "tables mark ... any attached traits").
func (s *Set) Traverse(mark func(value.Value)) {
	for i := Kind(0); i < count; i++ {
		if s.mask&(1<<uint(i)) != 0 {
			v := s.values[i]
			if v.IsGC() {
				mark(v)
			}
		}
	}
}
