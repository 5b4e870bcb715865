package mir

import (
	"math"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/value"
)

// Lower walks an ir.Procedure already processed by opt.Optimize through
// PrepareForMIR/FinalizeForMIR (blocks in reverse-postorder, phi operands
// materialized as per-predecessor moves, array_new/table_new/mod/pow
// already rewritten to ccalls) and produces the MProcedure §4.8
// describes: one MInsn or small fixed sequence of MInsns per ir
// instruction, in the same order.
//
// Per spec, loads/stores always move the NaN-boxed 64-bit word as-is
// (any/i64 share a representation): only binop/compare narrowed to a
// float result class reinterpret that same word as an FP register for
// the duration of the arithmetic, via movf/movi. erase_type undoes that
// reinterpretation for a float, stamps the bool tag on an i1, and moves
// every other type as-is (integer types are not converted to a boxed
// number); assume_cast is its mirror on the way in.
func Lower(proc *ir.Procedure) *MProcedure {
	l := &lowerer{
		mp:      NewMProcedure(proc),
		blocks:  make(map[*ir.BasicBlock]*MBlock, len(proc.Blocks)),
		regs:    make(map[*ir.Instruction]MReg, 64),
		aliased: make(map[*ir.Instruction]bool),
	}
	for _, blk := range proc.Blocks {
		l.blocks[blk] = l.mp.NewBlock()
	}
	for _, blk := range proc.Blocks {
		mblk := l.blocks[blk]
		for _, p := range blk.Preds {
			mblk.Preds = append(mblk.Preds, l.blocks[p])
		}
		for _, s := range blk.Succs {
			mblk.Succs = append(mblk.Succs, l.blocks[s])
		}
	}
	l.aliasPhis(proc)
	for _, blk := range proc.Blocks {
		l.lowerBlock(blk, l.blocks[blk])
	}
	return l.mp
}

type lowerer struct {
	mp      *MProcedure
	blocks  map[*ir.BasicBlock]*MBlock
	regs    map[*ir.Instruction]MReg
	aliased map[*ir.Instruction]bool
}

// aliasPhis pre-assigns every phi a register and aliases each
// predecessor's materialized move/erase_type onto that same register,
// so the phi itself lowers to nothing: its value is already sitting in
// the right place by the time control reaches the successor block. This
// is what §4.8 calls "assumed pre-coalesced" — a real interference-graph
// coloring pass (internal/regalloc) is what makes the alias legal by
// keeping the two SSA values out of each other's live ranges; this pass
// only records the intent.
func (l *lowerer) aliasPhis(proc *ir.Procedure) {
	for _, blk := range proc.Blocks {
		for _, phi := range blk.Phis() {
			reg := l.freshFor(phi.Result)
			l.regs[phi] = reg
			for _, u := range phi.Operands {
				if src, ok := u.Value.(*ir.Instruction); ok {
					l.regs[src] = reg
					l.aliased[src] = true
				}
			}
		}
	}
}

func (l *lowerer) freshFor(t ir.Type) MReg {
	if t.IsFloat() {
		return l.mp.NextFP()
	}
	return l.mp.NextGP()
}

// regFor returns ins's assigned register, minting one on first use.
func (l *lowerer) regFor(ins *ir.Instruction) MReg {
	if r, ok := l.regs[ins]; ok {
		return r
	}
	r := l.freshFor(ins.Result)
	l.regs[ins] = r
	return r
}

// operand turns an ir.Value (an Instruction's SSA result or a Constant)
// into a machine operand, interning non-trivial constants into the
// procedure's constant pool.
func (l *lowerer) operand(v ir.Value) MOp {
	switch vv := v.(type) {
	case *ir.Instruction:
		return Reg(l.regFor(vv))
	case *ir.Constant:
		return l.constOperand(vv)
	default:
		return MOp{}
	}
}

func (l *lowerer) constOperand(c *ir.Constant) MOp {
	switch c.Type {
	case ir.I1:
		if c.Bool {
			return Imm(1)
		}
		return Imm(0)
	case ir.I8, ir.I16, ir.I32, ir.I64:
		return Imm(c.I)
	case ir.F32, ir.F64:
		return Mem(l.mp.AddConst(boxFloat(c.F)))
	case ir.Nil:
		return Mem(l.mp.AddConst(value.Nil))
	case ir.Exc:
		return Mem(l.mp.AddConst(value.Exception))
	default:
		if c.GC != value.Nil {
			return Mem(l.mp.AddConst(c.GC))
		}
		return Imm(0)
	}
}

// boxFloat reinterprets f's IEEE-754 bits as a value.Value, which is
// valid because the value model's NaN-boxed number representation *is*
// the literal float64 bit pattern (§3.1) — there is no conversion step,
// only a type-punned read.
func boxFloat(f float64) value.Value {
	return value.FromBits(math.Float64bits(f))
}

func (l *lowerer) lowerBlock(blk *ir.BasicBlock, mblk *MBlock) {
	for _, ins := range blk.Instructions() {
		if ins.Op == ir.OpPhi {
			continue
		}
		l.lowerInsn(mblk, ins)
	}
}

func (l *lowerer) arg(ins *ir.Instruction, i int) ir.Value {
	if i < len(ins.Operands) {
		return ins.Operands[i].Value
	}
	return nil
}

func (l *lowerer) lowerInsn(b *MBlock, ins *ir.Instruction) {
	switch ins.Op {
	case ir.OpLoadLocal:
		out := l.regFor(ins)
		b.Append(VirtualInsn(VLoadI64, out, Mem(localSlot(ins.Local))))

	case ir.OpStoreLocal:
		src := l.operand(l.arg(ins, 0))
		b.Append(VirtualInsn(VStoreI64, NullReg, Mem(localSlot(ins.Local)), src))

	case ir.OpUvalGet:
		out := l.regFor(ins)
		b.Append(VirtualInsn(VLoadI64, out, Mem(upvalSlot(ins.Local))))

	case ir.OpUvalSet:
		src := l.operand(l.arg(ins, 0))
		b.Append(VirtualInsn(VStoreI64, NullReg, Mem(upvalSlot(ins.Local)), src))

	case ir.OpUnop:
		l.lowerUnop(b, ins)

	case ir.OpBinop:
		l.lowerBinop(b, ins)

	case ir.OpBoolAnd, ir.OpBoolOr, ir.OpBoolXor:
		l.lowerBoolOp(b, ins)

	case ir.OpCompare:
		l.lowerCompare(b, ins)

	case ir.OpTestType:
		l.lowerTestType(b, ins)

	case ir.OpSelect:
		l.lowerSelect(b, ins)

	case ir.OpMove:
		out := l.regFor(ins)
		src := l.operand(l.arg(ins, 0))
		if ins.Result.IsFloat() {
			b.Append(VirtualInsn(VMovF, out, src))
		} else {
			b.Append(VirtualInsn(VMovI, out, src))
		}

	case ir.OpEraseType:
		l.lowerEraseType(b, ins)

	case ir.OpAssumeCast:
		l.lowerAssumeCast(b, ins)

	case ir.OpCoerceBool:
		out := l.regFor(ins)
		b.Append(PhysicalInsn("to_bool", out, l.operand(l.arg(ins, 0))))

	case ir.OpGCTick:
		b.Append(PhysicalInsn("gc_tick", NullReg))

	case ir.OpSetException:
		src := l.operand(l.arg(ins, 0))
		b.Append(VirtualInsn(VStoreI64, NullReg, Mem(vmSlot(offsetLastException)), src))

	case ir.OpGetException:
		out := l.regFor(ins)
		b.Append(VirtualInsn(VLoadI64, out, Mem(vmSlot(offsetLastException))))

	case ir.OpSetHandler:
		b.Append(&MInsn{Phys: "set_handler", Targets: ins.Targets})

	case ir.OpCCall:
		l.lowerCall(b, ins, ins.Callee)

	case ir.OpVCall:
		l.lowerCall(b, ins, "")

	case ir.OpIterNext:
		ins1 := &MInsn{Phys: "iter_next", Targets: mapTargets(l, ins.Targets)}
		ins1.Args[0] = l.operand(l.arg(ins, 0))
		b.Append(ins1)

	case ir.OpJmp:
		b.Append(&MInsn{IsVirtual: true, VOp: VJmp, Targets: mapTargets(l, ins.Targets)})

	case ir.OpJcc:
		cond := l.operand(l.arg(ins, 0))
		jins := VirtualInsn(VJS, NullReg, cond)
		jins.Targets = mapTargets(l, ins.Targets)
		b.Append(jins)

	case ir.OpRet:
		l.lowerRet(b, ins)

	case ir.OpUnreachable:
		b.Append(&MInsn{IsVirtual: true, VOp: VUnreachable})

	default:
		// No MIR shape is defined for this opcode; a lowering bug, not a
		// recoverable input, so fail loudly rather than emit garbage.
		panic("mir: no lowering for " + ins.Op.String())
	}
}

// Fixed VM-struct-relative offsets this package addresses directly
// rather than through a dedicated rtcall, since they're plain word
// fields rather than anything requiring heap bookkeeping.
const (
	offsetReturnSlot    int32 = 0
	offsetLastException int32 = 8
)

func localSlot(idx int32) MMem { return MMem{Base: Reserved(VRegArgs), Disp: idx * 8} }
func upvalSlot(idx int32) MMem { return MMem{Base: Reserved(VRegArgs), Disp: -8 - idx*8} }
func vmSlot(off int32) MMem    { return MMem{Base: Reserved(VRegVM), Disp: off} }

func mapTargets(l *lowerer, targets []*ir.BasicBlock) []*MBlock {
	out := make([]*MBlock, len(targets))
	for i, t := range targets {
		out[i] = l.blocks[t]
	}
	return out
}

func (l *lowerer) lowerUnop(b *MBlock, ins *ir.Instruction) {
	out := l.regFor(ins)
	a := l.arg(ins, 0)
	switch bytecode.Op(ins.VMOp) {
	case bytecode.ANEG:
		if ins.Result.IsFloat() {
			fa := l.toFP(b, a)
			b.Append(PhysicalInsn("negsd", out, Reg(fa)))
		} else {
			b.Append(PhysicalInsn("neg", out, l.operand(a)))
		}
	case bytecode.LNOT:
		b.Append(PhysicalInsn("not", out, l.operand(a)))
	default:
		b.Append(PhysicalInsn(bytecode.Op(ins.VMOp).String(), out, l.operand(a)))
	}
}

// toFP ensures v is available in an FP register, reinterpreting its raw
// bits in place with movf if it currently lives in a GP/boxed register.
func (l *lowerer) toFP(b *MBlock, v ir.Value) MReg {
	src := l.operand(v)
	fp := l.mp.NextFP()
	b.Append(VirtualInsn(VMovF, fp, src))
	return fp
}

var binopMnemonic = map[bytecode.Op]string{
	bytecode.AADD: "addsd",
	bytecode.ASUB: "subsd",
	bytecode.AMUL: "mulsd",
	bytecode.ADIV: "divsd",
}

// lowerBinop handles the arithmetic opcodes (add/sub/mul/div) directly;
// mod/pow are rewritten to ccalls by opt.PrepareForMIR before this pass
// ever runs and so never reach this switch.
func (l *lowerer) lowerBinop(b *MBlock, ins *ir.Instruction) {
	mnem, ok := binopMnemonic[bytecode.Op(ins.VMOp)]
	if !ok {
		panic("mir: unlowered binop " + bytecode.Op(ins.VMOp).String())
	}
	lhs := l.toFP(b, l.arg(ins, 0))
	rhs := l.toFP(b, l.arg(ins, 1))
	out := l.regFor(ins)
	b.Append(PhysicalInsn(mnem, out, Reg(lhs), Reg(rhs)))
}

func (l *lowerer) lowerBoolOp(b *MBlock, ins *ir.Instruction) {
	var mnem string
	switch ins.Op {
	case ir.OpBoolAnd:
		mnem = "and"
	case ir.OpBoolOr:
		mnem = "or"
	default:
		mnem = "xor"
	}
	out := l.regFor(ins)
	b.Append(PhysicalInsn(mnem, out, l.operand(l.arg(ins, 0)), l.operand(l.arg(ins, 1))))
}

// condCode packs a comparison's bytecode op into setcc's immediate
// argument; internal/regalloc and any eventual backend interpret the
// value, this package only carries it.
func condCode(op bytecode.Op) int64 {
	switch op {
	case bytecode.CEQ:
		return 0
	case bytecode.CNE:
		return 1
	case bytecode.CLT:
		return 2
	case bytecode.CGE:
		return 3
	case bytecode.CGT:
		return 4
	case bytecode.CLE:
		return 5
	default:
		return -1
	}
}

func (l *lowerer) lowerCompare(b *MBlock, ins *ir.Instruction) {
	lhs := l.toFP(b, l.arg(ins, 0))
	rhs := l.toFP(b, l.arg(ins, 1))
	b.Append(PhysicalInsn("ucomisd", NullReg, Reg(lhs), Reg(rhs)))
	out := l.regFor(ins)
	b.Append(VirtualInsn(VSetCC, out, Imm(condCode(bytecode.Op(ins.VMOp)))))
}

func (l *lowerer) lowerTestType(b *MBlock, ins *ir.Instruction) {
	want := value.Kind(ins.VMOp)
	tag := l.mp.NextGP()
	b.Append(PhysicalInsn("exttag", tag, l.operand(l.arg(ins, 0))))
	b.Append(PhysicalInsn("cmp", NullReg, Reg(tag), Imm(int64(want))))
	out := l.regFor(ins)
	b.Append(VirtualInsn(VSetCC, out, Imm(0)))
}

func (l *lowerer) lowerSelect(b *MBlock, ins *ir.Instruction) {
	cond := l.operand(l.arg(ins, 0))
	whenTrue := l.operand(l.arg(ins, 1))
	whenFalse := l.operand(l.arg(ins, 2))
	out := l.regFor(ins)
	b.Append(&MInsn{Phys: "select", Out: out, Args: [maxArgs]MOp{cond, whenTrue, whenFalse}})
}

// lowerEraseType re-boxes a specialized value back to the generic NaN-
// boxed representation: a float operand's bits are already a valid box
// (movi just reinterprets the FP register as a GP one) and an i1 gets its
// bool tag stamped in by box_bool. Every other type is moved as-is: the
// GC kinds are already boxed, and the integer types are not converted to
// a boxed number.
func (l *lowerer) lowerEraseType(b *MBlock, ins *ir.Instruction) {
	src := l.arg(ins, 0)
	out := l.regFor(ins)
	srcType := valueTypeOf(src)
	switch {
	case srcType.IsFloat():
		b.Append(VirtualInsn(VMovI, out, l.operand(src)))
	case srcType == ir.I1:
		b.Append(PhysicalInsn("box_bool", out, l.operand(src)))
	default:
		b.Append(VirtualInsn(VMovI, out, l.operand(src)))
	}
}

// lowerAssumeCast is erase_type's mirror: it unboxes a value already
// proven (by a dominating test_type) to be a given type. For a float
// target the boxed bits are reinterpreted in an FP register (movf);
// every other target is already in the right representation.
func (l *lowerer) lowerAssumeCast(b *MBlock, ins *ir.Instruction) {
	src := l.arg(ins, 0)
	out := l.regFor(ins)
	if ins.Result.IsFloat() {
		b.Append(VirtualInsn(VMovF, out, l.operand(src)))
		return
	}
	b.Append(VirtualInsn(VMovI, out, l.operand(src)))
}

// valueTypeOf reports the IR type of an operand without requiring the
// caller to type-switch at every call site.
func valueTypeOf(v ir.Value) ir.Type {
	switch vv := v.(type) {
	case *ir.Instruction:
		return vv.Result
	case *ir.Constant:
		return vv.Type
	default:
		return ir.Any
	}
}

// callArgBase is the VM-relative scratch offset where a call's operands
// are spilled before the virtual call itself, mirroring the "spill args
// onto the VM evaluation stack" step of §4.8's ccall/vcall bullet; a
// real backend would reuse the interpreter's own value stack rather than
// a fixed window, but that addressing scheme is out of scope here.
const callArgBase int32 = 16

func callArgSlot(i int) MMem { return vmSlot(callArgBase + int32(i)*8) }

// lowerCall spills every operand to a sequential scratch slot (ccall's
// native-helper args and vcall's [callee, args...] alike) and emits a
// single virtual call carrying only the argument count, so arity isn't
// bounded by MInsn's fixed Args array the way a direct-encoded
// instruction's operands are.
func (l *lowerer) lowerCall(b *MBlock, ins *ir.Instruction, callee string) {
	for i, u := range ins.Operands {
		b.Append(VirtualInsn(VStoreI64, NullReg, Mem(callArgSlot(i)), l.operand(u.Value)))
	}
	var out MReg
	if ins.Result != ir.None {
		out = l.regFor(ins)
	}
	call := VirtualInsn(VCall, out, Imm(int64(len(ins.Operands))))
	call.Callee = callee
	b.Append(call)
}

// lowerRet re-boxes the return value (if any) and writes it to the
// reserved return slot ahead of the actual return; an empty ret (a
// procedure returning no value) just emits the virtual ret.
func (l *lowerer) lowerRet(b *MBlock, ins *ir.Instruction) {
	if len(ins.Operands) == 0 {
		b.Append(&MInsn{IsVirtual: true, VOp: VRet})
		return
	}
	v := ins.Operands[0].Value
	var boxed MOp
	if valueTypeOf(v).IsFloat() {
		fp := l.toFP(b, v)
		gp := l.mp.NextGP()
		b.Append(VirtualInsn(VMovI, gp, Reg(fp)))
		boxed = Reg(gp)
	} else {
		boxed = l.operand(v)
	}
	b.Append(VirtualInsn(VStoreI64, NullReg, Mem(vmSlot(offsetReturnSlot)), boxed))
	b.Append(&MInsn{IsVirtual: true, VOp: VRet})
}
