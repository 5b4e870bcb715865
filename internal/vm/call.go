package vm

import (
	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/langerr"
	"github.com/li-script/lightning-sub000/internal/object"
	"github.com/li-script/lightning-sub000/internal/value"
)

// Run executes proto as a fresh top-level call with no arguments and no
// caller, returning its RET value, or value.Exception (with LastException
// set) if it raised unhandled.
func (vm *VM) Run(proto *bytecode.Prototype) (value.Value, error) {
	closure, ok := object.NewClosure(vm.Heap, proto)
	if !ok {
		return langerr.OutOfMemory(vm), nil
	}
	return vm.callSynchronous(closure.Value(), value.Nil, nil)
}

// callSynchronous pushes a frame for fn(self, args...), runs the
// interpreter loop until that frame (and anything it calls) has returned,
// and yields the result directly to the Go caller. It is how Run, native
// trait dispatch (Invoke), and CALL's native-function fast path all
// invoke a function value.
func (vm *VM) callSynchronous(fn value.Value, self value.Value, args []value.Value) (value.Value, error) {
	if fn.Kind() != value.KindFunction {
		return langerr.TypeError(vm, vm.Heap, vm.Strings, "function", fn.Kind()), nil
	}
	hdr := heap.HeaderOf(fn)
	fnObj, _ := hdr.Object().(*object.Function)
	if fnObj == nil {
		return langerr.TypeError(vm, vm.Heap, vm.Strings, "function", fn.Kind()), nil
	}
	if fnObj.IsNative() {
		v, err := fnObj.CallNative(self, args)
		if err != nil {
			return value.Nil, err
		}
		return v, nil
	}

	stopDepth := len(vm.frames)
	vm.pushFrame(fnObj, self, args, bytecode.FrameRet, false)
	return vm.loop(stopDepth)
}

// pushFrame lays out a new activation record's registers (§4.4's
// FrameRet/FrameCaller/FrameSelf/FrameTarget/FrameArg0 layout) and makes
// it the current frame. hasCallSite/callSiteReg tell the loop where to
// write the eventual return value when this frame was entered via the
// CALL opcode rather than a synchronous Go-level invocation.
func (vm *VM) pushFrame(fn *object.Function, self value.Value, args []value.Value, callSiteReg bytecode.Reg, hasCallSite bool) {
	proto := fn.Prototype()
	numArgs := len(args)

	floor := len(vm.regs)
	bookkeeping := bytecode.FrameSize + numArgs
	base := vm.growRegs(bookkeeping) + bookkeeping

	vm.regs[base+int(bytecode.FrameRet)] = value.Nil
	vm.regs[base+int(bytecode.FrameCaller)] = value.Nil
	vm.regs[base+int(bytecode.FrameSelf)] = self
	vm.regs[base+int(bytecode.FrameTarget)] = fn.Value()
	for i := 0; i < numArgs; i++ {
		vm.regs[base+int(bytecode.FrameArg0)-i] = args[i]
	}

	vm.growRegs(proto.NumLocals)
	for i := 0; i < proto.NumLocals; i++ {
		vm.regs[base+i] = value.Nil
	}

	f := &frame{
		proto:       proto,
		closure:     fn,
		base:        base,
		ehPC:        -1,
		numArgs:     numArgs,
		regsFloor:   floor,
		callSiteReg: callSiteReg,
		hasCallSite: hasCallSite,
	}
	vm.frames = append(vm.frames, f)
}

func (vm *VM) current() *frame { return vm.frames[len(vm.frames)-1] }

func (vm *VM) popFrame() *frame {
	f := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.regs = vm.regs[:f.regsFloor]
	return f
}

func (vm *VM) arg(f *frame, i int) value.Value {
	if i < 0 || i >= f.numArgs {
		return value.Nil
	}
	return vm.regs[f.base+int(bytecode.FrameArg0)-i]
}
