// Package vm implements the register-window bytecode interpreter of
// §4.4, §6.1-6.2: a single growable register stack shared by every call
// frame, FRAME_SIZE-slot bookkeeping beneath each frame's locals,
// exception-handler install/fetch, and vararg support. It is the Invoker
// internal/trait dispatches through and the langerr.Sink that raised
// exceptions are written into.
package vm

import (
	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/object"
	"github.com/li-script/lightning-sub000/internal/trait"
	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

// frame is one activation record. Its window is vm.regs[regsFloor : top]:
// numArgs arguments and FrameSize bookkeeping slots sit just below base
// (register 0), and the locals start at base. regsFloor is the length
// of vm.regs before the frame was pushed, which it is truncated back to
// on return.
type frame struct {
	proto   *bytecode.Prototype
	closure *object.Function
	base    int // index of register 0
	pc      int
	ehPC    int32 // current exception handler target, -1 if none
	numArgs int

	regsFloor   int // len(vm.regs) to restore on pop
	callSiteReg bytecode.Reg
	hasCallSite bool // false for the frame a Run/Invoke call is stopped at

	iterCursors map[int]int // keyed by the ITER instruction's pc
}

// VM owns the register stack, the call-frame stack, the object
// subsystems every opcode ultimately touches, and the single last-raised
// exception slot of §7.
type VM struct {
	Heap    *heap.Heap
	Strings *object.Strings
	Globals *object.Table // the module-scope table, a GC root
	Scope   *object.Table // optional REPL scope table, a GC root if set
	cfg     vmconfig.Config

	regs   []value.Value
	frames []*frame

	lastException value.Value

	// popResult/popErr stash the value a RET or unhandled-exception
	// unwind leaves once the frame stack drains back to a loop call's
	// stopDepth, for loop to hand back to its own caller.
	popResult value.Value
	popErr    error
}

// New creates a VM over an already-constructed heap and string set,
// installing itself as the heap's root source (§4.1: "roots include the
// evaluation stack, the module table, the REPL scope table if present,
// the last-exception slot").
func New(h *heap.Heap, strings *object.Strings, cfg vmconfig.Config) *VM {
	globals, _ := object.NewTable(h, 0)
	vm := &VM{Heap: h, Strings: strings, Globals: globals, cfg: cfg, lastException: value.Nil}
	h.SetRoots(vm)
	return vm
}

// WalkRoots implements heap.Roots: every live register across every
// frame, the globals/scope tables, and the last-exception slot.
func (vm *VM) WalkRoots(visit func(value.Value)) {
	for _, v := range vm.regs {
		if v.IsGC() {
			visit(v)
		}
	}
	if vm.Globals != nil {
		visit(vm.Globals.Value())
	}
	if vm.Scope != nil {
		visit(vm.Scope.Value())
	}
	if vm.lastException.IsGC() {
		visit(vm.lastException)
	}
}

// SetException implements langerr.Sink: every raise, whether from an
// opcode handler or a runtime helper, writes here (§7).
func (vm *VM) SetException(v value.Value) { vm.lastException = v }

// LastException returns the payload of the most recently raised
// exception (GETEX's read path without consuming a register).
func (vm *VM) LastException() value.Value { return vm.lastException }

func (vm *VM) reg(f *frame, r bytecode.Reg) value.Value {
	return vm.regs[f.base+int(r)]
}

func (vm *VM) setReg(f *frame, r bytecode.Reg, v value.Value) {
	vm.regs[f.base+int(r)] = v
}

// growRegs appends n Nil-initialized registers and returns the index of
// the first one.
func (vm *VM) growRegs(n int) int {
	start := len(vm.regs)
	for i := 0; i < n; i++ {
		vm.regs = append(vm.regs, value.Nil)
	}
	return start
}

// Invoke implements trait.Invoker: called by the fast/slow trait dispatch
// helpers to run a trait's function value.
func (vm *VM) Invoke(fn value.Value, self value.Value, args []value.Value) (value.Value, error) {
	return vm.callSynchronous(fn, self, args)
}

// TableGet implements trait.Invoker's table-form get trait.
func (vm *VM) TableGet(tbl value.Value, key value.Value) value.Value {
	hdr := heap.HeaderOf(tbl)
	t, _ := hdr.Object().(*object.Table)
	if t == nil {
		return value.Nil
	}
	return t.Get(key)
}

func traitsOf(v value.Value) *trait.Set {
	if !v.IsGC() {
		return nil
	}
	hdr := heap.HeaderOf(v)
	if hdr == nil {
		return nil
	}
	switch o := hdr.Object().(type) {
	case *object.Array:
		return &o.Traits
	case *object.Table:
		return &o.Traits
	case *object.Class:
		return &o.Traits
	case *object.Object:
		return &o.Cl.Traits
	default:
		return nil
	}
}
