package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

func newTestProc() *ir.Procedure {
	return ir.NewProcedure(&bytecode.Prototype{NumLocals: 4})
}

// TestFoldConstantEvaluatesArithmeticEagerly exercises pass 3 against
// the same arithmetic internal/vm's interpreter loop performs.
func TestFoldConstantEvaluatesArithmeticEagerly(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	add := p.NewInstruction(ir.OpBinop)
	add.VMOp = uint8(bytecode.AADD)
	add.AddOperand(&ir.Constant{Type: ir.F64, F: 2})
	add.AddOperand(&ir.Constant{Type: ir.F64, F: 3})
	add.Update()
	b.Append(add)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(add)
	b.Append(ret)

	require.True(t, FoldConstant(p, false))
	c, ok := ret.Operands[0].Value.(*ir.Constant)
	require.True(t, ok)
	assert.Equal(t, float64(5), c.F)
}

// TestFoldConstantFastMathFoldsSelfCompare exercises the §12 FastMath
// decision: eq/ne of a value against itself only folds when the flag is
// set, since without it the value could be NaN at runtime.
func TestFoldConstantFastMathFoldsSelfCompare(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	load := p.NewInstruction(ir.OpLoadLocal)
	load.Local = 0
	b.Append(load)

	eq := p.NewInstruction(ir.OpCompare)
	eq.VMOp = uint8(bytecode.CEQ)
	eq.AddOperand(load)
	eq.AddOperand(load)
	eq.Update()
	b.Append(eq)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(eq)
	b.Append(ret)

	assert.False(t, FoldConstant(p, false), "must not fold without FastMath: load could be NaN")

	require.True(t, FoldConstant(p, true))
	c, ok := ret.Operands[0].Value.(*ir.Constant)
	require.True(t, ok)
	assert.True(t, c.Bool)
}

// TestDCERemovesUnusedPureInstruction exercises pass 5's fixpoint: a
// dead add feeding nothing is erased, and erasing it then makes its own
// operand (a now-unused local load) dead in turn.
func TestDCERemovesUnusedPureInstruction(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	load := p.NewInstruction(ir.OpLoadLocal)
	load.Local = 0
	b.Append(load)

	dead := p.NewInstruction(ir.OpBinop)
	dead.VMOp = uint8(bytecode.AADD)
	dead.AddOperand(load)
	dead.AddOperand(&ir.Constant{Type: ir.F64, F: 1})
	dead.Update()
	b.Append(dead)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(&ir.Constant{Type: ir.Nil})
	b.Append(ret)

	require.True(t, DCE(p))
	assert.Len(t, b.Instructions(), 1)
	assert.Equal(t, ret, b.First())
}

// TestSimplifyCFGCollapsesConstantJcc exercises 6(b): a jcc whose
// condition folded to a constant true drops its false edge. 6(c) then
// inlines the jmp-only taken block, so entry jumps straight to merge,
// and merge's phi loses the operand of the now-unreachable notTaken.
func TestSimplifyCFGCollapsesConstantJcc(t *testing.T) {
	p := newTestProc()
	entry := p.Entry()
	taken := p.NewBlock()
	notTaken := p.NewBlock()
	merge := p.NewBlock()

	jcc := p.NewInstruction(ir.OpJcc)
	jcc.AddOperand(&ir.Constant{Type: ir.I1, Bool: true})
	jcc.Targets = []*ir.BasicBlock{taken, notTaken}
	jcc.Update()
	entry.Append(jcc)
	entry.Succs = []*ir.BasicBlock{taken, notTaken}

	jmpTaken := p.NewInstruction(ir.OpJmp)
	jmpTaken.Targets = []*ir.BasicBlock{merge}
	taken.Append(jmpTaken)
	taken.Preds = []*ir.BasicBlock{entry}
	taken.Succs = []*ir.BasicBlock{merge}

	jmpNotTaken := p.NewInstruction(ir.OpJmp)
	jmpNotTaken.Targets = []*ir.BasicBlock{merge}
	notTaken.Append(jmpNotTaken)
	notTaken.Preds = []*ir.BasicBlock{entry}
	notTaken.Succs = []*ir.BasicBlock{merge}

	merge.Preds = []*ir.BasicBlock{taken, notTaken}
	phi := p.NewInstruction(ir.OpPhi)
	phi.AddOperand(&ir.Constant{Type: ir.F64, F: 1})
	phi.AddOperand(&ir.Constant{Type: ir.F64, F: 2})
	phi.Update()
	merge.Append(phi)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(phi)
	merge.Append(ret)

	require.True(t, SimplifyCFG(p))

	term := entry.Terminator()
	require.Equal(t, ir.OpJmp, term.Op)
	require.Equal(t, []*ir.BasicBlock{merge}, term.Targets)
	assert.Len(t, merge.Preds, 1)
	assert.Len(t, phi.Operands, 1)
}

// TestTypeSplitCFGGuardsArrayFieldSet exercises the §12 decision: a
// field_set whose container type is unresolved splits into a guarded
// fast path whose specialized field_set is marked Checked, leaving the
// original, fully-checked instruction untouched on the slow path.
func TestTypeSplitCFGGuardsArrayFieldSet(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	container := p.NewInstruction(ir.OpLoadLocal)
	container.Local = 0
	b.Append(container)

	set := p.NewInstruction(ir.OpFieldSet)
	set.AddOperand(&ir.Constant{Type: ir.I1, Bool: true})
	set.AddOperand(container)
	set.AddOperand(&ir.Constant{Type: ir.F64, F: 0})
	set.AddOperand(&ir.Constant{Type: ir.F64, F: 9})
	set.Update()
	b.Append(set)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(&ir.Constant{Type: ir.Nil})
	b.Append(ret)

	require.True(t, TypeSplitCFG(p))
	require.NoError(t, p.Verify())

	assert.True(t, set.IsVolatile)

	var sawChecked bool
	for _, blk := range p.Blocks {
		for _, ins := range blk.Instructions() {
			if ins.Op == ir.OpFieldSet && ins.Checked {
				sawChecked = true
			}
		}
	}
	assert.True(t, sawChecked, "expected a Checked field_set on the fast path")

	// TypeSplitCFG must not keep re-splitting the same (now-volatile)
	// slow-path field_set on later fixpoint iterations.
	assert.False(t, TypeSplitCFG(p))
}

// TestOptimizeFullPipelineProducesVerifiableProcedure exercises the
// whole driver end to end on a single block that adds two constants and
// returns the sum, checking that every pass runs without corrupting the
// CFG and that the add folds to a literal.
func TestOptimizeFullPipelineProducesVerifiableProcedure(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	add := p.NewInstruction(ir.OpBinop)
	add.VMOp = uint8(bytecode.AADD)
	add.AddOperand(&ir.Constant{Type: ir.F64, F: 1})
	add.AddOperand(&ir.Constant{Type: ir.F64, F: 2})
	add.Update()
	b.Append(add)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(add)
	b.Append(ret)

	require.NoError(t, Optimize(p, vmconfig.Default()))
	require.NoError(t, p.Verify())
	assert.True(t, p.Topological)

	c, ok := ret.Operands[0].Value.(*ir.Constant)
	require.True(t, ok, "constant folding should have reduced the add to a literal")
	assert.Equal(t, float64(3), c.F)
}

// TestPrepareForMIRLowersArrayNewToCCall exercises the closing lowering
// step independent of the fixpoint passes.
func TestPrepareForMIRLowersArrayNewToCCall(t *testing.T) {
	p := newTestProc()
	b := p.Entry()

	anew := p.NewInstruction(ir.OpArrayNew)
	anew.AddOperand(&ir.Constant{Type: ir.F64, F: 4})
	anew.Update()
	b.Append(anew)

	ret := p.NewInstruction(ir.OpRet)
	ret.AddOperand(anew)
	b.Append(ret)

	require.True(t, PrepareForMIR(p))
	call, ok := ret.Operands[0].Value.(*ir.Instruction)
	require.True(t, ok)
	assert.Equal(t, ir.OpCCall, call.Op)
	assert.Equal(t, "array_new", call.Callee)
}
