package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/bytecode"
)

func TestTypeJoin(t *testing.T) {
	assert.Equal(t, F64, join(Unk, F64))
	assert.Equal(t, F64, join(F64, Unk))
	assert.Equal(t, I64, join(I64, I64))
	assert.Equal(t, Any, join(I64, Str))
}

func TestTypeSettle(t *testing.T) {
	got, ok := settle(Any, I64)
	require.True(t, ok)
	assert.Equal(t, I64, got)

	got, ok = settle(I64, I64)
	require.True(t, ok)
	assert.Equal(t, I64, got)

	_, ok = settle(I64, Str)
	assert.False(t, ok)
}

func newTestProc() *Procedure {
	return NewProcedure(&bytecode.Prototype{NumLocals: 2})
}

// TestBasicBlockAppendAndTerminator exercises the sentinel-terminated
// instruction list: First/Last/Terminator over a block built by Append.
func TestBasicBlockAppendAndTerminator(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	load := p.NewInstruction(OpLoadLocal)
	load.Local = 0
	b.Append(load)

	ret := p.NewInstruction(OpRet)
	ret.AddOperand(load)
	b.Append(ret)

	require.Equal(t, load, b.First())
	require.Equal(t, ret, b.Last())
	require.Equal(t, ret, b.Terminator())
	assert.Len(t, b.Instructions(), 2)
}

// TestSplitAt exercises moving a tail of instructions into a new block
// linked by a synthesized jmp.
func TestSplitAt(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	a := p.NewInstruction(OpLoadLocal)
	a.Local = 0
	b.Append(a)

	mid := p.NewInstruction(OpLoadLocal)
	mid.Local = 1
	b.Append(mid)

	ret := p.NewInstruction(OpRet)
	ret.AddOperand(mid)
	b.Append(ret)

	tail := b.SplitAt(a)

	assert.Equal(t, a, b.First())  // a stays in b
	assert.Equal(t, a, b.Last().Prev) // immediately before the synthesized jmp
	term := b.Terminator()
	require.Equal(t, OpJmp, term.Op)
	require.Equal(t, []*BasicBlock{tail}, term.Targets)

	assert.Equal(t, mid, tail.First())
	assert.Equal(t, ret, tail.Last())
	assert.Equal(t, []*BasicBlock{b}, tail.Preds)
}

// TestPhiArityAndUpdate exercises phi's join-typed result and the
// exported Update entry point lifter code would call after wiring
// operands.
func TestPhiArityAndUpdate(t *testing.T) {
	p := newTestProc()
	entry := p.Entry()
	left := p.NewBlock()
	right := p.NewBlock()
	merge := p.NewBlock()

	entry.Succs = []*BasicBlock{left, right}
	left.Preds = []*BasicBlock{entry}
	right.Preds = []*BasicBlock{entry}
	merge.Preds = []*BasicBlock{left, right}

	c1 := &Constant{Type: F64, F: 1}
	c2 := &Constant{Type: F64, F: 2}

	phi := p.NewInstruction(OpPhi)
	phi.AddOperand(c1)
	phi.AddOperand(c2)
	phi.Update()
	merge.Append(phi)

	assert.Equal(t, F64, phi.Result)
	assert.True(t, phi.IsPure)
	assert.Len(t, phi.Operands, len(merge.Preds))
}

// TestVerifyCatchesUnterminatedBlock exercises Procedure.Verify's
// block-terminator invariant.
func TestVerifyCatchesUnterminatedBlock(t *testing.T) {
	p := newTestProc()
	b := p.Entry()
	load := p.NewInstruction(OpLoadLocal)
	b.Append(load)

	err := p.Verify()
	require.Error(t, err)
}

// TestVerifyCatchesDanglingJumpTarget exercises the live-block check on
// a jmp whose target was never registered with the procedure.
func TestVerifyCatchesDanglingJumpTarget(t *testing.T) {
	p := newTestProc()
	b := p.Entry()
	orphan := &BasicBlock{ID: 999}
	jmp := p.NewInstruction(OpJmp)
	jmp.Targets = []*BasicBlock{orphan}
	b.Append(jmp)

	err := p.Verify()
	require.Error(t, err)
}

// TestVerifyAcceptsWellFormedProcedure is the control case: a single
// block ending in ret passes Verify.
func TestVerifyAcceptsWellFormedProcedure(t *testing.T) {
	p := newTestProc()
	b := p.Entry()
	k := &Constant{Type: Nil}
	ret := p.NewInstruction(OpRet)
	ret.AddOperand(k)
	b.Append(ret)

	require.NoError(t, p.Verify())
}

// TestRemoveUnreachableDropsDeadBlocks exercises §4.6's post-lift
// cleanup of blocks no longer reachable from the entry.
func TestRemoveUnreachableDropsDeadBlocks(t *testing.T) {
	p := newTestProc()
	entry := p.Entry()
	dead := p.NewBlock()
	_ = dead // never linked as a successor of anything reachable

	ret := p.NewInstruction(OpRet)
	ret.AddOperand(&Constant{Type: Nil})
	entry.Append(ret)

	require.Len(t, p.Blocks, 2)
	p.RemoveUnreachable()
	assert.Len(t, p.Blocks, 1)
}

// TestAllocOpFlagsGCAllocatingOpcodes exercises the predicate the lifter
// will use to decide where to insert gc_tick.
func TestAllocOpFlagsGCAllocatingOpcodes(t *testing.T) {
	assert.True(t, AllocOp(bytecode.ANEW))
	assert.True(t, AllocOp(bytecode.TNEW))
	assert.True(t, AllocOp(bytecode.FDUP))
	assert.True(t, AllocOp(bytecode.CCAT))
	assert.False(t, AllocOp(bytecode.AADD))
}
