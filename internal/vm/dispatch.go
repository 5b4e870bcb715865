package vm

import (
	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/langerr"
	"github.com/li-script/lightning-sub000/internal/rtcall"
	"github.com/li-script/lightning-sub000/internal/rtlog"
	"github.com/li-script/lightning-sub000/internal/trait"
	"github.com/li-script/lightning-sub000/internal/value"
)

// loop dispatches instructions until the frame stack unwinds back down to
// stopDepth, i.e. the frame pushed just before this call returns (normally
// or via an unhandled exception). It mirrors §6.2's "the interpreter is a
// simple fetch-decode-execute loop over a flat register window."
func (vm *VM) loop(stopDepth int) (value.Value, error) {
	log := rtlog.For("vm")
	for {
		// Every instruction boundary is a GC suspension point (§4.1,
		// §5): the debt accounting in Heap.ShouldTick keeps an actual
		// collection rare, so checking here rather than only on
		// allocating opcodes costs nothing in practice.
		if vm.Heap.ShouldTick() {
			vm.Heap.Collect()
		}
		f := vm.current()
		if f.pc >= len(f.proto.Code) {
			// Falling off the end of a prototype with no explicit RET
			// returns nil, matching a function whose body never reaches
			// an explicit return statement.
			vm.finishReturn(value.Nil)
			if len(vm.frames) <= stopDepth {
				return vm.popResult, vm.popErr
			}
			continue
		}
		insn := f.proto.Code[f.pc]
		log.Debug().Str("op", insn.Op.String()).Int("pc", f.pc).Msg("dispatch")
		f.pc++

		exc, goErr, done := vm.exec(f, insn)
		if goErr != nil {
			return value.Nil, goErr
		}
		if exc {
			if !vm.handleException() {
				return value.Exception, nil
			}
		}
		if done && len(vm.frames) <= stopDepth {
			return vm.popResult, vm.popErr
		}
	}
}

// finishReturn pops the current frame, writing ret either into the
// caller's call-site register (CALL-entered frames) or into vm.popResult
// (Run/Invoke-entered frames, for loop to hand back directly).
func (vm *VM) finishReturn(ret value.Value) {
	popped := vm.popFrame()
	if popped.hasCallSite && len(vm.frames) > 0 {
		vm.setReg(vm.current(), popped.callSiteReg, ret)
	}
	vm.popResult = ret
	vm.popErr = nil
}

// handleException looks for an installed handler in the current frame,
// jumping to it if present; otherwise it unwinds frames (propagating like
// an exceptional return) until one is found or the stack is exhausted. It
// returns false when no handler anywhere catches the exception, meaning
// the VM should report value.Exception up to its own caller.
func (vm *VM) handleException() bool {
	for {
		f := vm.current()
		if f.ehPC >= 0 {
			f.pc = int(f.ehPC)
			return true
		}
		popped := vm.popFrame()
		if len(vm.frames) == 0 {
			vm.popResult = value.Exception
			vm.popErr = nil
			return false
		}
		if popped.hasCallSite {
			vm.setReg(vm.current(), popped.callSiteReg, value.Exception)
		} else {
			vm.popResult = value.Exception
			vm.popErr = nil
			return false
		}
	}
}

// exec runs one instruction. exc reports "result is value.Exception,
// check for a handler"; done reports "the current frame just returned
// (via RET or falling through CALL to a now-popped frame), re-check
// stopDepth."
func (vm *VM) exec(f *frame, insn bytecode.Insn) (exc bool, goErr error, done bool) {
	switch insn.Op {
	case bytecode.NOP, bytecode.UD:
		return false, nil, false

	case bytecode.MOV:
		vm.setReg(f, insn.A, vm.reg(f, insn.B))
		return false, nil, false

	case bytecode.LNOT:
		vm.setReg(f, insn.A, value.Bool(!vm.reg(f, insn.B).CoerceBool()))
		return false, nil, false

	case bytecode.ANEG:
		return vm.execUnaryArith(f, insn, trait.Neg)

	case bytecode.AADD, bytecode.ASUB, bytecode.AMUL, bytecode.ADIV, bytecode.AMOD, bytecode.APOW:
		return vm.execBinaryArith(f, insn)

	case bytecode.LAND:
		l := vm.reg(f, insn.B)
		if !l.CoerceBool() {
			vm.setReg(f, insn.A, l)
		} else {
			vm.setReg(f, insn.A, vm.reg(f, insn.C))
		}
		return false, nil, false

	case bytecode.LOR:
		l := vm.reg(f, insn.B)
		if l.CoerceBool() {
			vm.setReg(f, insn.A, l)
		} else {
			vm.setReg(f, insn.A, vm.reg(f, insn.C))
		}
		return false, nil, false

	case bytecode.NCS:
		b := vm.reg(f, insn.B)
		if b.IsNil() {
			vm.setReg(f, insn.A, vm.reg(f, insn.C))
		} else {
			vm.setReg(f, insn.A, b)
		}
		return false, nil, false

	case bytecode.CTY:
		vm.setReg(f, insn.A, value.Bool(uint8(vm.reg(f, insn.B).Kind()) == uint8(insn.C)))
		return false, nil, false

	case bytecode.CTYX:
		return vm.execClassIsBase(f, insn)

	case bytecode.CEQ:
		vm.setReg(f, insn.A, value.Bool(vm.reg(f, insn.B).Equals(vm.reg(f, insn.C))))
		return false, nil, false
	case bytecode.CNE:
		vm.setReg(f, insn.A, value.Bool(!vm.reg(f, insn.B).Equals(vm.reg(f, insn.C))))
		return false, nil, false
	case bytecode.CLT, bytecode.CGE, bytecode.CGT, bytecode.CLE:
		return vm.execCompare(f, insn)

	case bytecode.CCAT:
		return vm.execConcat(f, insn)

	case bytecode.SETEH:
		f.ehPC = insn.A
		return false, nil, false
	case bytecode.SETEX:
		vm.SetException(vm.reg(f, insn.A))
		return false, nil, false
	case bytecode.GETEX:
		vm.setReg(f, insn.A, vm.LastException())
		return false, nil, false

	case bytecode.KIMM:
		vm.setReg(f, insn.A, value.FromBits(insn.XMM()))
		return false, nil, false

	case bytecode.UGET:
		vm.setReg(f, insn.A, f.closure.Upvalue(int(insn.B)))
		return false, nil, false
	case bytecode.USET:
		f.closure.SetUpvalue(int(insn.A), vm.reg(f, insn.B))
		return false, nil, false

	case bytecode.STRIV:
		vm.setReg(f, insn.A, value.Nil)
		return false, nil, false

	case bytecode.SGET:
		return vm.execFieldGet(f, insn)
	case bytecode.SSET:
		return vm.execFieldSet(f, insn)

	case bytecode.VACNT:
		extra := f.numArgs - f.proto.NumArguments
		if extra < 0 {
			extra = 0
		}
		vm.setReg(f, insn.A, value.Int(int64(extra)))
		return false, nil, false
	case bytecode.VACHK:
		if f.numArgs < int(insn.A) {
			langerr.ArityError(vm, vm.Heap, vm.Strings, int(insn.A), f.numArgs)
			return true, nil, false
		}
		return false, nil, false
	case bytecode.VAGET:
		idx := int(vm.reg(f, insn.B).AsNumber())
		vm.setReg(f, insn.A, vm.arg(f, f.proto.NumArguments+idx))
		return false, nil, false

	case bytecode.ANEW:
		v := rtcall.ArrayNew(vm, vm.Heap, vm.Strings, int(insn.B))
		vm.setReg(f, insn.A, v)
		return v.IsException(), nil, false
	case bytecode.TNEW:
		v := rtcall.TableNew(vm, vm.Heap, vm.Strings, int(insn.B))
		vm.setReg(f, insn.A, v)
		return v.IsException(), nil, false

	case bytecode.TGET:
		return vm.execIndexGet(f, insn, false)
	case bytecode.TSET:
		return vm.execIndexSet(f, insn, false)
	case bytecode.TGETR:
		return vm.execIndexGet(f, insn, true)
	case bytecode.TSETR:
		return vm.execIndexSet(f, insn, true)

	case bytecode.FDUP:
		return vm.execClosureDup(f, insn)

	case bytecode.PUSHR, bytecode.PUSHI:
		// Reserved for a future explicit varargs-building convention;
		// this VM revision passes call arguments directly via CALL's
		// contiguous register window instead.
		return false, nil, false

	case bytecode.TONUM:
		v := rtcall.ToNumber(vm, vm.Heap, vm.Strings, vm.reg(f, insn.B))
		vm.setReg(f, insn.A, v)
		return v.IsException(), nil, false
	case bytecode.TOINT:
		v := rtcall.ToInt(vm, vm.Heap, vm.Strings, vm.reg(f, insn.B))
		vm.setReg(f, insn.A, v)
		return v.IsException(), nil, false
	case bytecode.TOSTR:
		s := rtcall.ToDisplayString(vm.reg(f, insn.B))
		str, ok := vm.Strings.Intern([]byte(s))
		if !ok {
			v := langerr.OutOfMemory(vm)
			vm.setReg(f, insn.A, v)
			return true, nil, false
		}
		vm.setReg(f, insn.A, str.Value())
		return false, nil, false
	case bytecode.TOBOOL:
		vm.setReg(f, insn.A, value.Bool(vm.reg(f, insn.B).CoerceBool()))
		return false, nil, false

	case bytecode.TRGET:
		return vm.execTraitRead(f, insn)
	case bytecode.TRSET:
		return vm.execTraitWrite(f, insn)

	case bytecode.CALL:
		return vm.execCall(f, insn)

	case bytecode.RET:
		ret := vm.reg(f, insn.A)
		vm.finishReturn(ret)
		return false, nil, true

	case bytecode.JMP:
		f.pc += int(insn.A) - 1
		return false, nil, false
	case bytecode.JS:
		if vm.reg(f, insn.B).CoerceBool() {
			f.pc += int(insn.A) - 1
		}
		return false, nil, false
	case bytecode.JNS:
		if !vm.reg(f, insn.B).CoerceBool() {
			f.pc += int(insn.A) - 1
		}
		return false, nil, false

	case bytecode.ITER:
		return vm.execIter(f, insn)

	default:
		langerr.Raise(vm, vm.Heap, vm.Strings, langerr.Lifting, "unimplemented opcode %s", insn.Op)
		return true, nil, false
	}
}
