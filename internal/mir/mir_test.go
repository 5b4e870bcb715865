package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
)

func newTestProc() *ir.Procedure {
	return ir.NewProcedure(&bytecode.Prototype{NumLocals: 4})
}

// TestLowerLoadStoreLocalRoundTrips exercises the simplest translation
// table entry: a boxed local read straight back into another local write
// into i64 loads/stores against the frame base.
func TestLowerLoadStoreLocalRoundTrips(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	load := p.NewInstruction(ir.OpLoadLocal)
	load.Local = 1
	b.Append(load)

	store := p.NewInstruction(ir.OpStoreLocal)
	store.Local = 2
	store.AddOperand(load)
	b.Append(store)

	ret := p.NewInstruction(ir.OpRet)
	b.Append(ret)

	p.Topological = true
	mp := Lower(p)
	require.Len(t, mp.Blocks, 1)
	insns := mp.Blocks[0].Instructions
	require.Len(t, insns, 3) // loadi64, storei64, ret

	ld := insns[0]
	assert.True(t, ld.IsVirtual)
	assert.Equal(t, VLoadI64, ld.VOp)
	assert.Equal(t, OpMem, ld.Args[0].Kind)
	assert.Equal(t, int32(8), ld.Args[0].Mem.Disp)

	st := insns[1]
	assert.Equal(t, VStoreI64, st.VOp)
	assert.Equal(t, int32(16), st.Args[0].Mem.Disp)
	assert.Equal(t, ld.Out, st.Args[1].Reg)
}

// TestLowerBinopUsesFloatPhysicalMnemonic exercises the f64 binop
// bullet: both operands reinterpret through movf, the add itself is a
// physical mnemonic, and the result lives in an FP register.
func TestLowerBinopUsesFloatPhysicalMnemonic(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	load0 := p.NewInstruction(ir.OpLoadLocal)
	load0.Local = 0
	b.Append(load0)
	load1 := p.NewInstruction(ir.OpLoadLocal)
	load1.Local = 1
	b.Append(load1)

	add := p.NewInstruction(ir.OpBinop)
	add.VMOp = uint8(bytecode.AADD)
	add.AddOperand(load0)
	add.AddOperand(load1)
	add.Update()
	b.Append(add)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(add)
	b.Append(ret)

	p.Topological = true
	mp := Lower(p)
	insns := mp.Blocks[0].Instructions

	var addIns *MInsn
	for _, ins := range insns {
		if !ins.IsVirtual && ins.Phys == "addsd" {
			addIns = ins
		}
	}
	require.NotNil(t, addIns, "expected a physical addsd instruction")
	assert.True(t, addIns.Out.IsFP())
}

// TestLowerCompareEmitsCompareAndSetCC exercises the compare bullet: a
// physical ucomisd followed by a virtual setcc carrying the condition.
func TestLowerCompareEmitsCompareAndSetCC(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	load0 := p.NewInstruction(ir.OpLoadLocal)
	load0.Local = 0
	b.Append(load0)
	load1 := p.NewInstruction(ir.OpLoadLocal)
	load1.Local = 1
	b.Append(load1)

	cmp := p.NewInstruction(ir.OpCompare)
	cmp.VMOp = uint8(bytecode.CLT)
	cmp.AddOperand(load0)
	cmp.AddOperand(load1)
	cmp.Update()
	b.Append(cmp)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(cmp)
	b.Append(ret)

	p.Topological = true
	mp := Lower(p)
	insns := mp.Blocks[0].Instructions

	var sawCompare, sawSetCC bool
	for _, ins := range insns {
		if !ins.IsVirtual && ins.Phys == "ucomisd" {
			sawCompare = true
		}
		if ins.IsVirtual && ins.VOp == VSetCC {
			sawSetCC = true
			assert.Equal(t, int64(2), ins.Args[0].Imm) // CLT's condCode
		}
	}
	assert.True(t, sawCompare)
	assert.True(t, sawSetCC)
}

// TestLowerPhiAliasesPredecessorMoves exercises the "phi assumed
// pre-coalesced" rule: once opt.FinalizeForMIR has materialized each
// predecessor's value into a move, the phi and both moves must resolve
// to the very same MReg, so the phi itself lowers to nothing.
func TestLowerPhiAliasesPredecessorMoves(t *testing.T) {
	p := newTestProc()
	entry := p.Entry()
	left := p.NewBlock()
	right := p.NewBlock()
	join := p.NewBlock()

	cond := p.NewInstruction(ir.OpLoadLocal)
	cond.Local = 0
	entry.Append(cond)
	jcc := p.NewInstruction(ir.OpJcc)
	jcc.AddOperand(cond)
	jcc.Targets = []*ir.BasicBlock{left, right}
	entry.Append(jcc)
	entry.Succs = []*ir.BasicBlock{left, right}
	left.Preds = []*ir.BasicBlock{entry}
	right.Preds = []*ir.BasicBlock{entry}

	lv := p.NewInstruction(ir.OpLoadLocal)
	lv.Local = 1
	left.Append(lv)
	ljmp := p.NewInstruction(ir.OpJmp)
	ljmp.Targets = []*ir.BasicBlock{join}
	left.Append(ljmp)
	left.Succs = []*ir.BasicBlock{join}

	rv := p.NewInstruction(ir.OpLoadLocal)
	rv.Local = 2
	right.Append(rv)
	rjmp := p.NewInstruction(ir.OpJmp)
	rjmp.Targets = []*ir.BasicBlock{join}
	right.Append(rjmp)
	right.Succs = []*ir.BasicBlock{join}

	join.Preds = []*ir.BasicBlock{left, right}
	phi := p.NewInstruction(ir.OpPhi)
	phi.AddOperand(lv)
	phi.AddOperand(rv)
	phi.Update()
	join.Append(phi)
	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(phi)
	join.Append(ret)

	// Simulate opt.FinalizeForMIR's materialization: each predecessor
	// gets an explicit move feeding the phi's operand slot.
	moveLeft := p.NewInstruction(ir.OpMove)
	moveLeft.AddOperand(lv)
	moveLeft.Update()
	left.InsertBefore(ljmp, moveLeft)
	phi.Operands[0].Value = moveLeft

	moveRight := p.NewInstruction(ir.OpMove)
	moveRight.AddOperand(rv)
	moveRight.Update()
	right.InsertBefore(rjmp, moveRight)
	phi.Operands[1].Value = moveRight

	p.Topological = true
	mp := Lower(p)

	var moveLeftOut, moveRightOut MReg
	for blkIdx, blk := range p.Blocks {
		if blk == left {
			for i, ins := range blk.Instructions() {
				if ins == moveLeft {
					moveLeftOut = mp.Blocks[blkIdx].Instructions[i].Out
				}
			}
		}
		if blk == right {
			for i, ins := range blk.Instructions() {
				if ins == moveRight {
					moveRightOut = mp.Blocks[blkIdx].Instructions[i].Out
				}
			}
		}
	}
	assert.Equal(t, moveLeftOut, moveRightOut, "both predecessor moves must alias the phi's register")
}

// TestLowerRetBoxesFloatResult exercises the ret bullet: a specialized
// f64 value is re-boxed to a generic word before it's written to the
// return slot.
func TestLowerRetBoxesFloatResult(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	load0 := p.NewInstruction(ir.OpLoadLocal)
	load0.Local = 0
	b.Append(load0)
	load1 := p.NewInstruction(ir.OpLoadLocal)
	load1.Local = 1
	b.Append(load1)

	add := p.NewInstruction(ir.OpBinop)
	add.VMOp = uint8(bytecode.AADD)
	add.AddOperand(load0)
	add.AddOperand(load1)
	add.Update()
	b.Append(add)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(add)
	b.Append(ret)

	p.Topological = true
	mp := Lower(p)
	insns := mp.Blocks[0].Instructions
	last := insns[len(insns)-1]
	assert.Equal(t, VRet, last.VOp)

	store := insns[len(insns)-2]
	assert.Equal(t, VStoreI64, store.VOp)
	assert.Equal(t, offsetReturnSlot, store.Args[0].Mem.Disp)
}

// TestLowerCCallSpillsArgsAndEmitsVirtualCall exercises the ccall
// bullet: operands are spilled to sequential scratch slots ahead of a
// single virtual call carrying only the callee name and arg count.
func TestLowerCCallSpillsArgsAndEmitsVirtualCall(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	a := p.NewInstruction(ir.OpLoadLocal)
	a.Local = 0
	b.Append(a)
	k := p.NewInstruction(ir.OpLoadLocal)
	k.Local = 1
	b.Append(k)

	call := p.NewInstruction(ir.OpCCall)
	call.Callee = "field_get_raw"
	call.AddOperand(a)
	call.AddOperand(k)
	call.Update()
	b.Append(call)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(call)
	b.Append(ret)

	p.Topological = true
	mp := Lower(p)
	insns := mp.Blocks[0].Instructions

	var sawCall bool
	for _, ins := range insns {
		if ins.IsVirtual && ins.VOp == VCall {
			sawCall = true
			assert.Equal(t, "field_get_raw", ins.Callee)
			assert.Equal(t, int64(2), ins.Args[0].Imm)
		}
	}
	assert.True(t, sawCall)
}

// TestMProcedureStringRendersBlocksAndHotAnnotation exercises the
// `cmd/ltool compile` dump format: one "-- Block $n" banner per block,
// a "[HOT k]"/"[COLD k]" suffix only when Hot is nonzero, and one
// indented instruction line per MInsn.
func TestMProcedureStringRendersBlocksAndHotAnnotation(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	load := p.NewInstruction(ir.OpLoadLocal)
	load.Local = 0
	b.Append(load)
	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(load)
	b.Append(ret)

	p.Topological = true
	mp := Lower(p)
	mp.Blocks[0].Hot = 3

	out := mp.String()
	assert.Contains(t, out, "-- Block $0 [HOT 3]")
	assert.Contains(t, out, VRet.String())

	mp.Blocks[0].Hot = -2
	assert.Contains(t, mp.String(), "-- Block $0 [COLD 2]")
}
