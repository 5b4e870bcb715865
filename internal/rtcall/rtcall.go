// Package rtcall implements the runtime helper calls of §4.10: the small
// set of operations the bytecode interpreter and, later, MIR-lowered code
// both call into rather than inlining (array/table construction, raw field
// access, length/duplicate/join/in, numeric coercions). Each helper is
// paired with an NFuncInfo profile so internal/opt's constant-folding and
// CSE passes know which calls are safe to fold or eliminate.
package rtcall

import (
	"math"
	"strconv"

	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/langerr"
	"github.com/li-script/lightning-sub000/internal/object"
	"github.com/li-script/lightning-sub000/internal/value"
)

// NFuncInfo profiles one runtime helper for the optimizer (§4.10): Pure
// means it has no externally visible side effect beyond its result
// (allocating is not externally visible), Const means its result depends
// only on its argument values (safe to constant-fold when all arguments
// are themselves constant), and SideEffect flags a helper that can raise a
// language exception or mutate shared state the optimizer must not reorder
// past.
type NFuncInfo struct {
	Pure       bool
	Const      bool
	SideEffect bool
}

// Info names every helper's profile, keyed the same as the IR's ccall
// target name (§4.5, §4.10).
var Info = map[string]NFuncInfo{
	"array_new":      {Pure: true, Const: false, SideEffect: false},
	"table_new":      {Pure: true, Const: false, SideEffect: false},
	"field_get_raw":  {Pure: true, Const: false, SideEffect: false},
	"field_set_raw":  {Pure: false, Const: false, SideEffect: true},
	"builtin_len":    {Pure: true, Const: false, SideEffect: false},
	"builtin_dup":    {Pure: true, Const: false, SideEffect: false},
	"builtin_join":   {Pure: true, Const: false, SideEffect: false},
	"builtin_in":     {Pure: true, Const: false, SideEffect: false},
	"tonumber":       {Pure: true, Const: true, SideEffect: false},
	"toint":          {Pure: true, Const: true, SideEffect: false},
	"tostring":       {Pure: true, Const: false, SideEffect: false},
	"class_is_base":  {Pure: true, Const: false, SideEffect: false},
	"vararg_count":   {Pure: true, Const: false, SideEffect: false},
	"vararg_get":     {Pure: true, Const: false, SideEffect: false},
	"vararg_check":   {Pure: false, Const: false, SideEffect: true},
	"trait_get":      {Pure: true, Const: false, SideEffect: false},
	"trait_set":      {Pure: false, Const: false, SideEffect: true},
	"iter_key":       {Pure: true, Const: false, SideEffect: false},
	"iter_val":       {Pure: true, Const: false, SideEffect: false},
	"f64_mod":        {Pure: true, Const: true, SideEffect: false},
	"f64_pow":        {Pure: true, Const: true, SideEffect: false},
}

// Sink is the subset of langerr.Sink these helpers need to raise a
// language exception.
type Sink = langerr.Sink

// ArrayNew allocates a fresh array reserved for size elements (ANEW).
func ArrayNew(sink Sink, h *heap.Heap, strings *object.Strings, size int) value.Value {
	a, ok := object.NewArray(h, size)
	if !ok {
		return langerr.OutOfMemory(sink)
	}
	return a.Value()
}

// TableNew allocates a fresh table reserved for size entries (TNEW).
func TableNew(sink Sink, h *heap.Heap, strings *object.Strings, size int) value.Value {
	t, ok := object.NewTable(h, size)
	if !ok {
		return langerr.OutOfMemory(sink)
	}
	return t.Value()
}

// Fmod implements AMOD on two numbers, backing the f64_mod helper that
// opt.PrepareForMIR lowers every mod binop to.
func Fmod(x, y float64) float64 { return math.Mod(x, y) }

// Pow implements APOW on two numbers, backing the f64_pow helper the
// same way Fmod backs f64_mod.
func Pow(x, y float64) float64 { return math.Pow(x, y) }

// FieldGetRaw reads container[key] without consulting traits (TGETR):
// arrays require a numeric key in range, tables accept any key and miss to
// Nil, and any other container kind is a type error.
func FieldGetRaw(sink Sink, h *heap.Heap, strings *object.Strings, container, key value.Value) value.Value {
	switch container.Kind() {
	case value.KindArray:
		arr := asArray(container)
		if !key.IsNumber() {
			return langerr.TypeError(sink, h, strings, "number index", key.Kind())
		}
		idx := int(key.AsNumber())
		v := arr.Get(idx)
		if v.IsNil() && (idx < 0 || idx >= arr.Len()) {
			return langerr.OutOfBounds(sink, h, strings, idx, arr.Len())
		}
		return v
	case value.KindTable:
		return asTable(container).Get(key)
	default:
		return langerr.TypeError(sink, h, strings, "array or table", container.Kind())
	}
}

// FieldSetRaw writes container[key] = val without consulting traits
// (TSETR). assumeChecked skips the array bounds check: it is only ever set
// true by MIR lowered from a field_set that opt.TypeSplitCFG already
// guarded with a test_type+length check on the success edge (§9/§12 open
// question resolution); every other caller (SSET/TSET handlers called
// directly, and rtcall invoked from native functions) leaves it false.
func FieldSetRaw(sink Sink, h *heap.Heap, strings *object.Strings, container, key, val value.Value, assumeChecked bool) value.Value {
	switch container.Kind() {
	case value.KindArray:
		arr := asArray(container)
		if !key.IsNumber() {
			return langerr.TypeError(sink, h, strings, "number index", key.Kind())
		}
		idx := int(key.AsNumber())
		if assumeChecked {
			arr.Set(idx, val)
			return value.Nil
		}
		if !arr.Set(idx, val) {
			return langerr.OutOfBounds(sink, h, strings, idx, arr.Len())
		}
		return value.Nil
	case value.KindTable:
		asTable(container).Set(key, val)
		return value.Nil
	default:
		return langerr.TypeError(sink, h, strings, "array or table", container.Kind())
	}
}

// BuiltinLen implements the `len` helper (§4.10): strings report byte
// length, arrays their element count, tables their active-entry count.
func BuiltinLen(sink Sink, h *heap.Heap, strings *object.Strings, v value.Value) value.Value {
	switch v.Kind() {
	case value.KindString:
		return value.Int(int64(asString(v).Len()))
	case value.KindArray:
		return value.Int(int64(asArray(v).Len()))
	case value.KindTable:
		return value.Int(int64(asTable(v).Len()))
	default:
		return langerr.TypeError(sink, h, strings, "string, array, or table", v.Kind())
	}
}

// BuiltinDup implements the `dup` helper: arrays and functions duplicate
// per their own shallow-copy semantics (§3.5, §3.7); other kinds are
// already value-semantics or immutable and duplicate to themselves.
func BuiltinDup(sink Sink, h *heap.Heap, strings *object.Strings, v value.Value) value.Value {
	switch v.Kind() {
	case value.KindArray:
		dup, ok := asArray(v).Duplicate(h)
		if !ok {
			return langerr.OutOfMemory(sink)
		}
		return dup.Value()
	case value.KindFunction:
		dup, ok := asFunction(v).Duplicate(h)
		if !ok {
			return langerr.OutOfMemory(sink)
		}
		return dup.Value()
	case value.KindObject:
		dup, ok := asObject(v).Duplicate(h)
		if !ok {
			return langerr.OutOfMemory(sink)
		}
		return dup.Value()
	default:
		return v
	}
}

// BuiltinJoin implements CCAT's concat helper: converts every operand to
// its string form and interns the concatenation as a single string.
func BuiltinJoin(sink Sink, h *heap.Heap, strings *object.Strings, vs []value.Value) value.Value {
	total := 0
	parts := make([][]byte, len(vs))
	for i, v := range vs {
		s := ToDisplayString(v)
		parts[i] = []byte(s)
		total += len(parts[i])
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	str, ok := strings.Intern(buf)
	if !ok {
		return langerr.OutOfMemory(sink)
	}
	return str.Value()
}

// BuiltinIn implements the membership test used by `in` expressions: table
// key presence, array element presence (linear scan), or substring
// presence for strings.
func BuiltinIn(sink Sink, h *heap.Heap, strings *object.Strings, needle, haystack value.Value) value.Value {
	switch haystack.Kind() {
	case value.KindTable:
		return value.Bool(!asTable(haystack).Get(needle).IsNil())
	case value.KindArray:
		arr := asArray(haystack)
		for i := 0; i < arr.Len(); i++ {
			if arr.Get(i).Equals(needle) {
				return value.Bool(true)
			}
		}
		return value.Bool(false)
	case value.KindString:
		if !needle.IsGC() || needle.Kind() != value.KindString {
			return value.Bool(false)
		}
		hay := asString(haystack).String()
		sub := asString(needle).String()
		return value.Bool(containsSubstring(hay, sub))
	default:
		return langerr.TypeError(sink, h, strings, "table, array, or string", haystack.Kind())
	}
}

func containsSubstring(hay, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if len(sub) > len(hay) {
		return false
	}
	for i := 0; i+len(sub) <= len(hay); i++ {
		if hay[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// ToNumber implements TONUM: numbers pass through, strings parse, and
// everything else is a domain error.
func ToNumber(sink Sink, h *heap.Heap, strings *object.Strings, v value.Value) value.Value {
	if v.IsNumber() {
		return v
	}
	if v.Kind() == value.KindString {
		if f, err := strconv.ParseFloat(asString(v).String(), 64); err == nil {
			return value.Number(f)
		}
	}
	return langerr.Raise(sink, h, strings, langerr.Domain, "cannot convert %s to number", v.Kind())
}

// ToInt implements TOINT: truncates a number toward zero, parses a string.
func ToInt(sink Sink, h *heap.Heap, strings *object.Strings, v value.Value) value.Value {
	n := ToNumber(sink, h, strings, v)
	if !n.IsNumber() {
		return n
	}
	return value.Number(math.Trunc(n.AsNumber()))
}

// ToDisplayString renders v the way TOSTR and BuiltinJoin both need,
// without allocating through the interner (the caller interns the final
// result once).
func ToDisplayString(v value.Value) string {
	switch v.Kind() {
	case value.KindNil:
		return "nil"
	case value.KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.KindNumber:
		return formatNumber(v.AsNumber())
	case value.KindString:
		return asString(v).String()
	case value.KindArray:
		return "[array]"
	case value.KindTable:
		return "[table]"
	case value.KindFunction:
		return "[function]"
	case value.KindClass:
		return "[class]"
	case value.KindObject:
		return "[object]"
	default:
		return "[exception]"
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func asArray(v value.Value) *object.Array       { return heap.HeaderOf(v).Object().(*object.Array) }
func asTable(v value.Value) *object.Table       { return heap.HeaderOf(v).Object().(*object.Table) }
func asString(v value.Value) *object.String     { return heap.HeaderOf(v).Object().(*object.String) }
func asFunction(v value.Value) *object.Function { return heap.HeaderOf(v).Object().(*object.Function) }
func asObject(v value.Value) *object.Object     { return heap.HeaderOf(v).Object().(*object.Object) }
