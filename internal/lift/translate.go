package lift

import (
	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/value"
)

// translateBlock lowers every bytecode instruction owned by blk into IR,
// then makes sure blk ends in a terminator: control-flow opcodes (jmp,
// js, jns, iter, ret) emit their own terminator as they translate; any
// other ending synthesizes a fallthrough jmp or, at the very end of the
// prototype's code, an implicit `return nil` (§6.2's fall-off-the-end
// semantics).
func (b *builder) translateBlock(blk *ir.BasicBlock) error {
	start, end := int(blk.BCStart), int(blk.BCEnd)
	for pc := start; pc < end; pc++ {
		if err := b.translateInsn(blk, pc, b.proto.Code[pc]); err != nil {
			return err
		}
	}
	if blk.Terminator() == nil {
		b.synthesizeTerminator(blk)
	}
	return nil
}

func (b *builder) synthesizeTerminator(blk *ir.BasicBlock) {
	if len(blk.Succs) == 1 {
		jmp := b.proc.NewInstruction(ir.OpJmp)
		jmp.Targets = []*ir.BasicBlock{blk.Succs[0]}
		blk.Append(jmp)
		return
	}
	ret := b.proc.NewInstruction(ir.OpRet)
	ret.AddOperand(&ir.ConstNil)
	blk.Append(ret)
}

func (b *builder) translateInsn(blk *ir.BasicBlock, pc int, insn bytecode.Insn) error {
	switch insn.Op {
	case bytecode.UD, bytecode.NOP, bytecode.PUSHR, bytecode.PUSHI:
		// PUSHR/PUSHI are reserved no-ops in this VM revision (§4.4); UD/NOP
		// carry no semantics worth lifting.
		return nil

	case bytecode.MOV:
		ins := b.proc.NewInstruction(ir.OpMove)
		ins.AddOperand(b.readVariable(blk, insn.B))
		ins.Update()
		blk.Append(ins)
		b.writeVariable(blk, insn.A, ins)

	case bytecode.LNOT, bytecode.ANEG:
		b.unop(blk, insn)

	case bytecode.AADD, bytecode.ASUB, bytecode.AMUL, bytecode.ADIV, bytecode.AMOD, bytecode.APOW:
		b.binop(blk, insn)

	case bytecode.LAND:
		b.boolOp(blk, insn, ir.OpBoolAnd)
	case bytecode.LOR:
		b.boolOp(blk, insn, ir.OpBoolOr)

	case bytecode.NCS:
		isNil := b.proc.NewInstruction(ir.OpTestType)
		isNil.AddOperand(b.readVariable(blk, insn.B))
		isNil.Update()
		blk.Append(isNil)

		sel := b.proc.NewInstruction(ir.OpSelect)
		sel.AddOperand(isNil)
		sel.AddOperand(b.readVariable(blk, insn.C))
		sel.AddOperand(b.readVariable(blk, insn.B))
		sel.Update()
		blk.Append(sel)
		b.writeVariable(blk, insn.A, sel)

	case bytecode.CTY:
		ins := b.proc.NewInstruction(ir.OpTestType)
		ins.AddOperand(b.readVariable(blk, insn.B))
		ins.VMOp = uint8(insn.C)
		ins.Update()
		blk.Append(ins)
		b.writeVariable(blk, insn.A, ins)

	case bytecode.CTYX:
		ins := b.ccall(blk, "class_is_base", b.readVariable(blk, insn.B), b.readVariable(blk, insn.C))
		b.writeVariable(blk, insn.A, ins)

	case bytecode.CEQ, bytecode.CNE, bytecode.CLT, bytecode.CGE, bytecode.CGT, bytecode.CLE:
		b.compare(blk, insn)

	case bytecode.CCAT:
		b.emitGCTick(blk)
		span := int(insn.B)
		operands := make([]ir.Value, 0, span+1)
		for i := 0; i <= span; i++ {
			operands = append(operands, b.readVariable(blk, insn.A+int32(i)))
		}
		ins := b.ccall(blk, "builtin_join", operands...)
		b.writeVariable(blk, insn.A, ins)

	case bytecode.SETEH:
		ins := b.proc.NewInstruction(ir.OpSetHandler)
		ins.Targets = []*ir.BasicBlock{b.cfg.ehTarget[pc]}
		blk.Append(ins)

	case bytecode.SETEX:
		ins := b.proc.NewInstruction(ir.OpSetException)
		ins.AddOperand(b.readVariable(blk, insn.A))
		blk.Append(ins)

	case bytecode.GETEX:
		ins := b.proc.NewInstruction(ir.OpGetException)
		blk.Append(ins)
		b.writeVariable(blk, insn.A, ins)

	case bytecode.KIMM:
		b.writeVariable(blk, insn.A, kimmConstant(value.FromBits(insn.XMM())))

	case bytecode.UGET:
		ins := b.proc.NewInstruction(ir.OpUvalGet)
		ins.Local = insn.B
		blk.Append(ins)
		b.writeVariable(blk, insn.A, ins)

	case bytecode.USET:
		ins := b.proc.NewInstruction(ir.OpUvalSet)
		ins.Local = insn.A
		ins.AddOperand(b.readVariable(blk, insn.B))
		blk.Append(ins)

	case bytecode.STRIV:
		b.writeVariable(blk, insn.A, &ir.ConstNil)

	case bytecode.SGET:
		ins := b.fieldGet(blk, insn.C, insn.B, false)
		b.writeVariable(blk, insn.A, ins)
	case bytecode.SSET:
		b.fieldSet(blk, insn.C, insn.A, insn.B, false)

	case bytecode.VACNT:
		ins := b.ccall(blk, "vararg_count")
		b.writeVariable(blk, insn.A, ins)
	case bytecode.VACHK:
		b.ccall(blk, "vararg_check", &ir.Constant{Type: ir.I32, I: int64(insn.A)})
	case bytecode.VAGET:
		ins := b.ccall(blk, "vararg_get", b.readVariable(blk, insn.B))
		b.writeVariable(blk, insn.A, ins)

	case bytecode.ANEW:
		b.emitGCTick(blk)
		ins := b.proc.NewInstruction(ir.OpArrayNew)
		ins.AddOperand(&ir.Constant{Type: ir.I32, I: int64(insn.B)})
		blk.Append(ins)
		b.writeVariable(blk, insn.A, ins)
	case bytecode.TNEW:
		b.emitGCTick(blk)
		ins := b.proc.NewInstruction(ir.OpTableNew)
		ins.AddOperand(&ir.Constant{Type: ir.I32, I: int64(insn.B)})
		blk.Append(ins)
		b.writeVariable(blk, insn.A, ins)

	case bytecode.TGET:
		ins := b.fieldGet(blk, insn.C, insn.B, false)
		b.writeVariable(blk, insn.A, ins)
	case bytecode.TSET:
		b.fieldSet(blk, insn.C, insn.A, insn.B, false)
	case bytecode.TGETR:
		ins := b.fieldGet(blk, insn.C, insn.B, true)
		b.writeVariable(blk, insn.A, ins)
	case bytecode.TSETR:
		b.fieldSet(blk, insn.C, insn.A, insn.B, true)

	case bytecode.FDUP:
		b.emitGCTick(blk)
		ins := b.ccall(blk, "builtin_dup", &ir.Constant{Type: ir.I32, I: int64(insn.B)})
		b.writeVariable(blk, insn.A, ins)

	case bytecode.TONUM:
		ins := b.ccall(blk, "tonumber", b.readVariable(blk, insn.B))
		b.writeVariable(blk, insn.A, ins)
	case bytecode.TOINT:
		ins := b.ccall(blk, "toint", b.readVariable(blk, insn.B))
		b.writeVariable(blk, insn.A, ins)
	case bytecode.TOSTR:
		ins := b.ccall(blk, "tostring", b.readVariable(blk, insn.B))
		b.writeVariable(blk, insn.A, ins)
	case bytecode.TOBOOL:
		ins := b.proc.NewInstruction(ir.OpCoerceBool)
		ins.AddOperand(b.readVariable(blk, insn.B))
		ins.Update()
		blk.Append(ins)
		b.writeVariable(blk, insn.A, ins)

	case bytecode.TRGET:
		ins := b.ccall(blk, "trait_get", b.readVariable(blk, insn.C), b.readVariable(blk, insn.B))
		b.writeVariable(blk, insn.A, ins)
	case bytecode.TRSET:
		b.ccall(blk, "trait_set", b.readVariable(blk, insn.C), b.readVariable(blk, insn.A), b.readVariable(blk, insn.B))

	case bytecode.CALL:
		ins := b.proc.NewInstruction(ir.OpVCall)
		ins.AddOperand(b.readVariable(blk, insn.A))
		n := int(insn.B)
		for i := 0; i < n; i++ {
			ins.AddOperand(b.readVariable(blk, insn.A+1+int32(i)))
		}
		ins.Update()
		blk.Append(ins)
		b.writeVariable(blk, insn.A, ins)

	case bytecode.RET:
		ret := b.proc.NewInstruction(ir.OpRet)
		ret.AddOperand(b.readVariable(blk, insn.A))
		blk.Append(ret)

	case bytecode.JMP:
		jmp := b.proc.NewInstruction(ir.OpJmp)
		jmp.Targets = []*ir.BasicBlock{blk.Succs[0]}
		blk.Append(jmp)

	case bytecode.JS, bytecode.JNS:
		jcc := b.proc.NewInstruction(ir.OpJcc)
		jcc.AddOperand(b.readVariable(blk, insn.B))
		jcc.Targets = []*ir.BasicBlock{blk.Succs[0], blk.Succs[1]}
		blk.Append(jcc)

	case bytecode.ITER:
		b.translateIter(blk, insn)

	default:
		return errUnknownOpcode(pc, insn.Op.String())
	}
	return nil
}

func (b *builder) translateIter(blk *ir.BasicBlock, insn bytecode.Insn) {
	itv := b.proc.NewInstruction(ir.OpIterNext)
	itv.AddOperand(b.readVariable(blk, insn.C))
	itv.Targets = []*ir.BasicBlock{blk.Succs[0], blk.Succs[1]}
	blk.Append(itv)

	cont := blk.Succs[0]
	key := b.proc.NewInstruction(ir.OpCCall)
	key.Callee = "iter_key"
	key.AddOperand(itv)
	key.Update()
	insertAfterPhis(cont, key)

	val := b.proc.NewInstruction(ir.OpCCall)
	val.Callee = "iter_val"
	val.AddOperand(itv)
	val.Update()
	insertAfterPhis(cont, val)

	b.writeVariable(cont, insn.B, key)
	b.writeVariable(cont, insn.B+1, val)
}

// insertAfterPhis appends ins right after block's leading phi run,
// keeping the "phis come first" invariant even if a phi for this block
// is inserted after ins is placed.
func insertAfterPhis(block *ir.BasicBlock, ins *ir.Instruction) {
	phis := block.Phis()
	if len(phis) == 0 {
		if first := block.First(); first != nil {
			block.InsertBefore(first, ins)
		} else {
			block.Append(ins)
		}
		return
	}
	last := phis[len(phis)-1]
	if last.Next == nil {
		block.Append(ins)
		return
	}
	block.InsertBefore(last.Next, ins)
}

func (b *builder) unop(blk *ir.BasicBlock, insn bytecode.Insn) {
	ins := b.proc.NewInstruction(ir.OpUnop)
	ins.VMOp = uint8(insn.Op)
	ins.AddOperand(b.readVariable(blk, insn.B))
	ins.Update()
	blk.Append(ins)
	b.writeVariable(blk, insn.A, ins)
}

func (b *builder) binop(blk *ir.BasicBlock, insn bytecode.Insn) {
	ins := b.proc.NewInstruction(ir.OpBinop)
	ins.VMOp = uint8(insn.Op)
	ins.AddOperand(b.readVariable(blk, insn.B))
	ins.AddOperand(b.readVariable(blk, insn.C))
	ins.Update()
	blk.Append(ins)
	b.writeVariable(blk, insn.A, ins)
}

func (b *builder) compare(blk *ir.BasicBlock, insn bytecode.Insn) {
	ins := b.proc.NewInstruction(ir.OpCompare)
	ins.VMOp = uint8(insn.Op)
	ins.AddOperand(b.readVariable(blk, insn.B))
	ins.AddOperand(b.readVariable(blk, insn.C))
	ins.Update()
	blk.Append(ins)
	b.writeVariable(blk, insn.A, ins)
}

func (b *builder) boolOp(blk *ir.BasicBlock, insn bytecode.Insn, op ir.Op) {
	ins := b.proc.NewInstruction(op)
	ins.AddOperand(b.readVariable(blk, insn.B))
	ins.AddOperand(b.readVariable(blk, insn.C))
	ins.Update()
	blk.Append(ins)
	b.writeVariable(blk, insn.A, ins)
}

// fieldGet/fieldSet model SGET/TGET/TGETR/SSET/TSET/TSETR uniformly as the
// polymorphic field_get/field_set IR op (§4.5), tagging raw-ness with a
// leading boolean constant operand that internal/opt's prepare_for_mir
// consults to choose between rtcall.FieldGetRaw/FieldSetRaw and a
// trait-dispatching path.
func (b *builder) fieldGet(blk *ir.BasicBlock, container, key int32, raw bool) *ir.Instruction {
	ins := b.proc.NewInstruction(ir.OpFieldGet)
	ins.AddOperand(&ir.Constant{Type: ir.I1, Bool: raw})
	ins.AddOperand(b.readVariable(blk, container))
	ins.AddOperand(b.readVariable(blk, key))
	ins.Update()
	blk.Append(ins)
	return ins
}

func (b *builder) fieldSet(blk *ir.BasicBlock, container, key, val int32, raw bool) {
	ins := b.proc.NewInstruction(ir.OpFieldSet)
	ins.AddOperand(&ir.Constant{Type: ir.I1, Bool: raw})
	ins.AddOperand(b.readVariable(blk, container))
	ins.AddOperand(b.readVariable(blk, key))
	ins.AddOperand(b.readVariable(blk, val))
	ins.Update()
	blk.Append(ins)
}

func (b *builder) ccall(blk *ir.BasicBlock, callee string, args ...ir.Value) *ir.Instruction {
	ins := b.proc.NewInstruction(ir.OpCCall)
	ins.Callee = callee
	for _, a := range args {
		ins.AddOperand(a)
	}
	ins.Update()
	blk.Append(ins)
	return ins
}

func (b *builder) emitGCTick(blk *ir.BasicBlock) {
	tick := b.proc.NewInstruction(ir.OpGCTick)
	blk.Append(tick)
}

func kimmConstant(v value.Value) *ir.Constant {
	switch v.Kind() {
	case value.KindNumber:
		return &ir.Constant{Type: ir.F64, F: v.AsNumber()}
	case value.KindBool:
		return &ir.Constant{Type: ir.I1, Bool: v.AsBool()}
	case value.KindNil:
		return &ir.Constant{Type: ir.Nil}
	default:
		return &ir.Constant{Type: ir.Any, GC: v}
	}
}
