package lift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/value"
)

func kimm(reg int32, v value.Value) bytecode.Insn {
	return bytecode.NewXMM(bytecode.KIMM, reg, v.Bits())
}

// TestLiftStraightLineArithmetic exercises the no-branch path: constants
// fold straight into operand slots with no IR instruction of their own.
func TestLiftStraightLineArithmetic(t *testing.T) {
	proto := &bytecode.Prototype{
		NumLocals: 3,
		Code: []bytecode.Insn{
			kimm(0, value.Number(1)),
			kimm(1, value.Number(2)),
			bytecode.New(bytecode.AADD, 2, 0, 1),
			bytecode.New(bytecode.RET, 2, 0, 0),
		},
	}

	proc, err := Lift(proto)
	require.NoError(t, err)
	require.Len(t, proc.Blocks, 1)

	ret := proc.Entry().Terminator()
	require.Equal(t, ir.OpRet, ret.Op)
	require.Len(t, ret.Operands, 1)
	add, ok := ret.Operands[0].Value.(*ir.Instruction)
	require.True(t, ok)
	assert.Equal(t, ir.OpBinop, add.Op)
	assert.Equal(t, uint8(bytecode.AADD), add.VMOp)
}

// TestLiftConditionalBranch exercises JNS's two-target jcc lowering.
func TestLiftConditionalBranch(t *testing.T) {
	proto := &bytecode.Prototype{
		NumLocals: 2,
		Code: []bytecode.Insn{
			kimm(0, value.Bool(true)),     // 0
			bytecode.New(bytecode.JNS, 3, 0, 0), // 1: jump to 4 if !r0
			kimm(1, value.Number(1)),      // 2
			bytecode.New(bytecode.RET, 1, 0, 0), // 3
			kimm(1, value.Number(2)),      // 4
			bytecode.New(bytecode.RET, 1, 0, 0), // 5
		},
	}

	proc, err := Lift(proto)
	require.NoError(t, err)
	require.Len(t, proc.Blocks, 3)

	jcc := proc.Entry().Terminator()
	require.Equal(t, ir.OpJcc, jcc.Op)
	require.Len(t, jcc.Targets, 2)
}

// TestLiftLoopProducesInductionPhiAndEliminatesInvariant exercises the
// sealing/back-edge machinery: a loop header reads a loop-invariant local
// (trivially reduced away) and a genuine induction variable (kept as a
// two-operand phi).
func TestLiftLoopProducesInductionPhiAndEliminatesInvariant(t *testing.T) {
	const (
		n   = int32(0)
		sum = int32(1)
		i   = int32(2)
		cnd = int32(3)
		one = int32(4)
	)
	proto := &bytecode.Prototype{
		NumLocals: 5,
		Code: []bytecode.Insn{
			kimm(n, value.Number(3)),                  // 0
			kimm(sum, value.Number(0)),                 // 1
			kimm(i, value.Number(0)),                   // 2
			bytecode.New(bytecode.CLT, cnd, i, n),      // 3: header
			bytecode.New(bytecode.JNS, 5, cnd, 0),      // 4: exit if !cond -> 9
			bytecode.New(bytecode.AADD, sum, sum, i),   // 5
			kimm(one, value.Number(1)),                 // 6
			bytecode.New(bytecode.AADD, i, i, one),     // 7
			bytecode.New(bytecode.JMP, -5, 0, 0),       // 8: back to 3
			bytecode.New(bytecode.RET, sum, 0, 0),      // 9
		},
	}

	proc, err := Lift(proto)
	require.NoError(t, err)
	require.Len(t, proc.Blocks, 4) // preheader, header, body, exit (dead tail removed)

	var header *ir.BasicBlock
	for _, b := range proc.Blocks {
		if len(b.Preds) == 2 {
			header = b
		}
	}
	require.NotNil(t, header, "loop header should have two predecessors")

	phis := header.Phis()
	require.Len(t, phis, 2, "sum and i are genuine phis; the invariant n collapses away")
	for _, phi := range phis {
		assert.Len(t, phi.Operands, 2)
	}

	require.NoError(t, proc.Verify())
}

// TestLiftImplicitReturnNil exercises falling off the end of a prototype
// with no RET, per §6.2's "implicit nil return."
func TestLiftImplicitReturnNil(t *testing.T) {
	proto := &bytecode.Prototype{
		NumLocals: 1,
		Code: []bytecode.Insn{
			kimm(0, value.Number(1)),
		},
	}
	proc, err := Lift(proto)
	require.NoError(t, err)
	ret := proc.Entry().Terminator()
	require.Equal(t, ir.OpRet, ret.Op)
	c, ok := ret.Operands[0].Value.(*ir.Constant)
	require.True(t, ok)
	assert.Equal(t, ir.Nil, c.Type)
}

// TestLiftArrayNewEmitsGCTickBeforeAllocation exercises §4.6's rule that
// GC-allocating opcodes are preceded by an explicit gc_tick.
func TestLiftArrayNewEmitsGCTickBeforeAllocation(t *testing.T) {
	proto := &bytecode.Prototype{
		NumLocals: 1,
		Code: []bytecode.Insn{
			bytecode.New(bytecode.ANEW, 0, 4, 0),
			bytecode.New(bytecode.RET, 0, 0, 0),
		},
	}
	proc, err := Lift(proto)
	require.NoError(t, err)
	insns := proc.Entry().Instructions()
	require.True(t, len(insns) >= 2)
	assert.Equal(t, ir.OpGCTick, insns[0].Op)
	assert.Equal(t, ir.OpArrayNew, insns[1].Op)
}
