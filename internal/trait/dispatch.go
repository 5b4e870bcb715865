package trait

import "github.com/li-script/lightning-sub000/internal/value"

// Invoker abstracts "call this function value with these arguments",
// implemented by internal/vm. Keeping it as an interface here (rather than
// importing internal/vm) avoids a dependency cycle: vm needs trait's
// dispatch helpers, and trait needs a way to invoke callback Values.
type Invoker interface {
	Invoke(fn value.Value, self value.Value, args []value.Value) (value.Value, error)
	// TableGet/TableSet let the `get` trait additionally be a table
	// (§4.3: "a trait may be a function (called) or, only for get, a
	// table (looked up)"), without internal/trait depending on
	// internal/object's concrete Table type.
	TableGet(tbl value.Value, key value.Value) value.Value
}

// isTableValue identifies the get trait's table form purely by Kind, so
// this package stays independent of internal/object's concrete Table type.
func isTableValue(v value.Value) bool { return v.Kind() == value.KindTable }

// DispatchGet implements the two-path lookup of §4.3 for the get trait: if
// absent, the caller's default (raw) get runs; otherwise the trait's
// function is called with (self, key), or its table is indexed directly.
func (s *Set) DispatchGet(inv Invoker, self, key value.Value) (value.Value, bool, error) {
	if !s.Has(Get) {
		return value.Nil, false, nil
	}
	fn := s.values[Get]
	if isTableValue(fn) {
		return inv.TableGet(fn, key), true, nil
	}
	v, err := inv.Invoke(fn, self, []value.Value{key})
	return v, true, err
}

// DispatchSet implements the set trait slow path; the bool result reports
// whether a trait handled the set (true) versus the caller must fall back
// to the default raw assignment (false).
func (s *Set) DispatchSet(inv Invoker, self, key, val value.Value) (bool, error) {
	if !s.Has(SetK) {
		return false, nil
	}
	_, err := inv.Invoke(s.values[SetK], self, []value.Value{key, val})
	return true, err
}

// DispatchUnary handles the single-operand value-bearing traits: neg, len,
// str, and the flag-reads' value counterparts.
func (s *Set) DispatchUnary(inv Invoker, k Kind, self value.Value) (value.Value, bool, error) {
	if !s.Has(k) {
		return value.Nil, false, nil
	}
	v, err := inv.Invoke(s.values[k], self, nil)
	return v, true, err
}

// DispatchBinary handles the two-operand value-bearing traits: the
// arithmetic set (add/sub/mul/div/mod/pow) and comparisons (lt/le/eq).
func (s *Set) DispatchBinary(inv Invoker, k Kind, self, rhs value.Value) (value.Value, bool, error) {
	if !s.Has(k) {
		return value.Nil, false, nil
	}
	v, err := inv.Invoke(s.values[k], self, []value.Value{rhs})
	return v, true, err
}

// DispatchCall handles the call trait, used when a non-function object is
// invoked (operator()).
func (s *Set) DispatchCall(inv Invoker, self value.Value, args []value.Value) (value.Value, bool, error) {
	if !s.Has(Call) {
		return value.Nil, false, nil
	}
	v, err := inv.Invoke(s.values[Call], self, args)
	return v, true, err
}

// DispatchGC invokes the gc trait (a finalizer hook) when the owning
// object is collected. Errors are ignored: the sweep phase cannot
// propagate a language-level exception.
func (s *Set) DispatchGC(inv Invoker, self value.Value) {
	if !s.Has(GC) {
		return
	}
	_, _ = inv.Invoke(s.values[GC], self, nil)
}
