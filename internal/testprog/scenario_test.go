package testprog

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/langerr"
	"github.com/li-script/lightning-sub000/internal/lift"
	"github.com/li-script/lightning-sub000/internal/object"
	"github.com/li-script/lightning-sub000/internal/opt"
	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vm"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

// loadASM reads the "asm" file out of the named testdata archive.
func loadASM(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	ar := txtar.Parse(data)
	for _, f := range ar.Files {
		if f.Name == "asm" {
			return string(f.Data)
		}
	}
	t.Fatalf("%s: no \"asm\" file in archive", name)
	return ""
}

type testVM struct {
	*vm.VM
	strings *object.Strings
}

func newTestVM(t *testing.T) testVM {
	t.Helper()
	cfg := vmconfig.Default()
	h := heap.New(cfg, heap.NewArenaAllocator())
	strings := object.NewStrings(h, cfg)
	return testVM{VM: vm.New(h, strings, cfg), strings: strings}
}

// TestArithmeticSpecializationNumber exercises §8 scenario 1's numeric
// path: `a=3; return a+1` directly adds without ever consulting a trait.
func TestArithmeticSpecializationNumber(t *testing.T) {
	tv := newTestVM(t)
	proto, err := New(tv.strings).Assemble(loadASM(t, "arithmetic_number.txtar"))
	require.NoError(t, err)

	result, err := tv.Run(proto)
	require.NoError(t, err)
	require.True(t, result.IsNumber())
	assert.Equal(t, 4.0, result.AsNumber())
}

// TestArithmeticSpecializationString exercises §8 scenario 1's
// non-numeric path: with no add trait registered on strings, AADD falls
// through to a type-error exception mentioning "expected number".
func TestArithmeticSpecializationString(t *testing.T) {
	tv := newTestVM(t)
	proto, err := New(tv.strings).Assemble(loadASM(t, "arithmetic_string.txtar"))
	require.NoError(t, err)

	result, err := tv.Run(proto)
	require.NoError(t, err)
	require.True(t, result.IsException())
	assert.Contains(t, langerr.Message(tv.LastException()), "expected number")
}

// TestArrayOutOfBounds exercises §8 scenario 3: setting past an array's
// length through the checked (non-raw) path raises a bounds exception.
func TestArrayOutOfBounds(t *testing.T) {
	tv := newTestVM(t)
	proto, err := New(tv.strings).Assemble(loadASM(t, "array_oob.txtar"))
	require.NoError(t, err)

	result, err := tv.Run(proto)
	require.NoError(t, err)
	require.True(t, result.IsException())
	assert.Contains(t, langerr.Message(tv.LastException()), "out-of-boundaries")
}

// TestTableInsertionRehash exercises §8 scenario 2: 64 string-keyed
// inserts into an initially empty table.
func TestTableInsertionRehash(t *testing.T) {
	tv := newTestVM(t)
	proto, err := New(tv.strings).Assemble(loadASM(t, "table_rehash.txtar"))
	require.NoError(t, err)

	result, err := tv.Run(proto)
	require.NoError(t, err)
	require.True(t, result.Kind() == value.KindTable)

	tbl := heap.HeaderOf(result).Object().(*object.Table)
	require.Equal(t, 64, tbl.Len())
	assert.GreaterOrEqual(t, tbl.RawCapacity(), 128)
	assert.Equal(t, 0, tbl.RawCapacity()&(tbl.RawCapacity()-1), "capacity must be a power of two")

	for i := 0; i < 64; i++ {
		key, ok := tv.strings.Intern([]byte("k" + strconv.Itoa(i)))
		require.True(t, ok)
		got := tbl.Get(key.Value())
		require.True(t, got.IsNumber(), "missing key k%d", i)
		assert.Equal(t, float64(i), got.AsNumber())
	}
}

// TestSSARoundTrip exercises §8 scenario 5: lifting the summing loop
// yields a two-predecessor header with exactly the induction and
// accumulator phis, each with two operands, and no more than four
// blocks once DCE and CFG cleanup have run.
func TestSSARoundTrip(t *testing.T) {
	tv := newTestVM(t)
	proto, err := New(tv.strings).Assemble(loadASM(t, "sum_loop.txtar"))
	require.NoError(t, err)

	proc, err := lift.Lift(proto)
	require.NoError(t, err)

	var header *ir.BasicBlock
	for _, b := range proc.Blocks {
		if len(b.Preds) == 2 {
			header = b
		}
	}
	require.NotNil(t, header, "loop header should have two predecessors")
	phis := header.Phis()
	require.Len(t, phis, 2, "s and i are both genuine induction/accumulator phis")
	for _, phi := range phis {
		assert.Len(t, phi.Operands, 2)
	}

	opt.DCE(proc)
	opt.SimplifyCFG(proc)
	assert.LessOrEqual(t, len(proc.Blocks), 4)
}

// TestTypeSplitNumericLoopAlreadyResolved exercises §8 scenario 6 on the
// summing loop: every operand already has a concrete numeric type by the
// time type_split_cfg runs (lift's numeric constants and AADD's
// always-f64 result, per numericResult's default), so the pass finds
// nothing to split and every binop is left typed f64 with no residual
// unk operand.
func TestTypeSplitNumericLoopAlreadyResolved(t *testing.T) {
	tv := newTestVM(t)
	proto, err := New(tv.strings).Assemble(loadASM(t, "sum_loop.txtar"))
	require.NoError(t, err)

	proc, err := lift.Lift(proto)
	require.NoError(t, err)
	require.NoError(t, opt.Optimize(proc, vmconfig.Default()))

	sawBinop := false
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			if ins.Op == ir.OpBinop {
				sawBinop = true
				assert.Equal(t, ir.F64, ins.Result)
			}
			assert.NotEqual(t, ir.Unk, ins.Result)
		}
	}
	assert.True(t, sawBinop)
}

// TestTypeSplitGuardsUnresolvedArgument exercises the other half of §8
// scenario 6: a one-argument callee whose add operand is genuinely
// unresolved at lift time (a load_local off a negative frame slot), so
// type_split_cfg inserts a real test_type guard with a specialized f64
// fast path, rather than finding nothing to do.
func TestTypeSplitGuardsUnresolvedArgument(t *testing.T) {
	tv := newTestVM(t)
	proto, err := New(tv.strings).Assemble(loadASM(t, "arg_add.txtar"))
	require.NoError(t, err)

	proc, err := lift.Lift(proto)
	require.NoError(t, err)

	changed := opt.TypeSplitCFG(proc)
	require.True(t, changed, "the argument's type is unresolved, so a guard must be inserted")

	var sawTestType, sawAssumeCast bool
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			switch ins.Op {
			case ir.OpTestType:
				sawTestType = true
			case ir.OpAssumeCast:
				sawAssumeCast = true
			}
		}
	}
	assert.True(t, sawTestType, "the split must guard the add with a type test")
	assert.True(t, sawAssumeCast, "the fast path must assume-cast its operand to f64")
}
