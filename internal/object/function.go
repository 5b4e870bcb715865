package object

import (
	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/value"
)

// NType names a native argument/return type constraint used by a
// NativeOverload for IR-visible type information (§3.7: "an overload list
// carrying argument-type and return-type metadata used by the IR").
type NType uint8

const (
	TAny NType = iota
	TNil
	TBool
	TNumber
	TString
	TArray
	TTable
	TFunction
	TClass
	TObject
)

// NativeFunc is a host-provided callback.
type NativeFunc func(self value.Value, args []value.Value) (value.Value, error)

// NativeOverload describes one calling convention a native function
// accepts, for the IR's native-call type inference.
type NativeOverload struct {
	Args []NType
	Ret  NType
}

// Function is either native (a host callback plus overload metadata) or
// virtual (a prototype plus closed-over upvalue slots). Duplicating a
// virtual function copies only its upvalue vector (§3.7); the prototype is
// shared.
type Function struct {
	hdr *heap.Header

	native    NativeFunc
	overloads []NativeOverload

	proto    *bytecode.Prototype
	upvalues []value.Value
}

// NewNative wraps a host callback as a callable function Value.
func NewNative(h *heap.Heap, fn NativeFunc, overloads []NativeOverload) (*Function, bool) {
	hdr, ok := h.Alloc(value.KindFunction, false, 0)
	if !ok {
		return nil, false
	}
	f := &Function{hdr: hdr, native: fn, overloads: overloads}
	hdr.Bind(f)
	return f, true
}

// NewClosure creates a virtual function over proto with proto.NumUpvalues slots,
// all initially Nil; callers fill them in via SetUpvalue before the
// closure escapes (mirroring FDUP's "A.UVAL[0]=C, A.UVAL[1]=C+1..").
func NewClosure(h *heap.Heap, proto *bytecode.Prototype) (*Function, bool) {
	hdr, ok := h.Alloc(value.KindFunction, true, 0)
	if !ok {
		return nil, false
	}
	f := &Function{hdr: hdr, proto: proto, upvalues: make([]value.Value, proto.NumUpvalues)}
	hdr.Bind(f)
	return f, true
}

func (f *Function) Value() value.Value { return f.hdr.Value() }
func (f *Function) IsNative() bool     { return f.native != nil }
func (f *Function) Prototype() *bytecode.Prototype { return f.proto }
func (f *Function) Overloads() []NativeOverload     { return f.overloads }

func (f *Function) Upvalue(i int) value.Value {
	if i < 0 || i >= len(f.upvalues) {
		return value.Nil
	}
	return f.upvalues[i]
}

func (f *Function) SetUpvalue(i int, v value.Value) {
	if i >= 0 && i < len(f.upvalues) {
		f.upvalues[i] = v
	}
}

// CallNative invokes the native callback directly; the bytecode VM handles
// virtual functions itself by pushing a new frame.
func (f *Function) CallNative(self value.Value, args []value.Value) (value.Value, error) {
	return f.native(self, args)
}

// Traverse marks the closure's upvalues and its prototype's constant pool
// (§4.1: "functions mark their prototype and upvalues; prototypes mark
// their constant pool and source-chunk"). Prototypes are plain Go values
// here (not separately heap-allocated) and SourceChunk is a Go string, so
// only the prototype's GC-kind constants need marking.
func (f *Function) Traverse(mark func(value.Value)) {
	for _, v := range f.upvalues {
		if v.IsGC() {
			mark(v)
		}
	}
	if f.proto != nil {
		for _, c := range f.proto.Constants {
			if c.IsGC() {
				mark(c)
			}
		}
	}
}

// Duplicate creates a new closure sharing this function's prototype but
// with its own fresh upvalue vector (copied from this instance), per
// §3.7's "duplicating the function duplicates only the upvalue vector".
func (f *Function) Duplicate(h *heap.Heap) (*Function, bool) {
	if f.IsNative() {
		return NewNative(h, f.native, f.overloads)
	}
	dup, ok := NewClosure(h, f.proto)
	if !ok {
		return nil, false
	}
	copy(dup.upvalues, f.upvalues)
	return dup, true
}
