package opt

import (
	"math"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/value"
)

// FoldConstant implements §4.7 pass 3: select with a constant condition
// reduces to its taken branch; compare/binop whose both operands are
// constants evaluate eagerly via the same arithmetic internal/vm's
// interpreter loop would perform; test_type against an operand whose
// declared IR type settles the question folds to a bool literal.
//
// fastMath threads the §12 NaN-comparison decision (vmconfig.Config.
// FastMath): when set, compare(eq/ne) additionally folds when both
// operands are the identical SSA value, assuming neither side is NaN
// rather than conservatively leaving the comparison for runtime.
func FoldConstant(proc *ir.Procedure, fastMath bool) bool {
	changed := false
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			var folded ir.Value
			switch ins.Op {
			case ir.OpSelect:
				folded = foldSelect(ins)
			case ir.OpBinop:
				folded = foldBinop(ins)
			case ir.OpCompare:
				folded = foldCompare(ins)
				if folded == nil && fastMath {
					folded = foldCompareFastMath(ins)
				}
			case ir.OpTestType:
				folded = foldTestType(ins)
			}
			if folded == nil {
				continue
			}
			replaceAllUses(proc, ins, folded)
			blk.Remove(ins)
			changed = true
		}
	}
	return changed
}

// foldCompareFastMath folds eq/ne of two operands known to be the same
// SSA value. Without FastMath this is unsound (NaN == NaN is false), so
// it is only reached when the caller has already confirmed the flag.
func foldCompareFastMath(ins *ir.Instruction) ir.Value {
	if len(ins.Operands) != 2 {
		return nil
	}
	if !sameValue(ins.Operands[0].Value, ins.Operands[1].Value) {
		return nil
	}
	switch bytecode.Op(ins.VMOp) {
	case bytecode.CEQ:
		return &ir.Constant{Type: ir.I1, Bool: true}
	case bytecode.CNE:
		return &ir.Constant{Type: ir.I1, Bool: false}
	default:
		return nil
	}
}

func valueType(v ir.Value) ir.Type {
	switch t := v.(type) {
	case *ir.Instruction:
		return t.Result
	case *ir.Constant:
		return t.Type
	default:
		return ir.Unk
	}
}

func asConstant(v ir.Value) (*ir.Constant, bool) {
	c, ok := v.(*ir.Constant)
	return c, ok
}

func foldSelect(ins *ir.Instruction) ir.Value {
	if len(ins.Operands) != 3 {
		return nil
	}
	cond, ok := asConstant(ins.Operands[0].Value)
	if !ok || cond.Type != ir.I1 {
		return nil
	}
	if cond.Bool {
		return ins.Operands[1].Value
	}
	return ins.Operands[2].Value
}

func foldBinop(ins *ir.Instruction) ir.Value {
	if len(ins.Operands) != 2 {
		return nil
	}
	lhs, ok1 := asConstant(ins.Operands[0].Value)
	rhs, ok2 := asConstant(ins.Operands[1].Value)
	if !ok1 || !ok2 || !lhs.Type.IsNumeric() || !rhs.Type.IsNumeric() {
		return nil
	}
	x, y := lhs.F, rhs.F
	var r float64
	switch bytecode.Op(ins.VMOp) {
	case bytecode.AADD:
		r = x + y
	case bytecode.ASUB:
		r = x - y
	case bytecode.AMUL:
		r = x * y
	case bytecode.ADIV:
		r = x / y
	case bytecode.AMOD:
		r = math.Mod(x, y)
	case bytecode.APOW:
		r = math.Pow(x, y)
	default:
		return nil
	}
	return &ir.Constant{Type: ir.F64, F: r}
}

func foldCompare(ins *ir.Instruction) ir.Value {
	if len(ins.Operands) != 2 {
		return nil
	}
	lhs, ok1 := asConstant(ins.Operands[0].Value)
	rhs, ok2 := asConstant(ins.Operands[1].Value)
	if !ok1 || !ok2 || !lhs.Type.IsNumeric() || !rhs.Type.IsNumeric() {
		return nil
	}
	x, y := lhs.F, rhs.F
	var r bool
	switch bytecode.Op(ins.VMOp) {
	case bytecode.CLT:
		r = x < y
	case bytecode.CGE:
		r = x >= y
	case bytecode.CGT:
		r = x > y
	case bytecode.CLE:
		r = x <= y
	case bytecode.CEQ:
		r = x == y
	case bytecode.CNE:
		r = x != y
	default:
		return nil
	}
	return &ir.Constant{Type: ir.I1, Bool: r}
}

// foldTestType folds a test_type whose operand's declared IR type (set
// by a dominating assume_cast, or simply constant) already decides
// membership one way or the other; VMOp carries the expected value.Kind
// tag the way internal/lift's CTY translation stores it.
func foldTestType(ins *ir.Instruction) ir.Value {
	if len(ins.Operands) != 1 {
		return nil
	}
	t := valueType(ins.Operands[0].Value)
	matches, known := typeMatchesKind(t, value.Kind(ins.VMOp))
	if !known {
		return nil
	}
	return &ir.Constant{Type: ir.I1, Bool: matches}
}

func typeMatchesKind(t ir.Type, k value.Kind) (matches, known bool) {
	switch {
	case t.IsNumeric():
		return k == value.KindNumber, true
	case t == ir.I1:
		return k == value.KindBool, true
	case t == ir.Nil:
		return k == value.KindNil, true
	case t == ir.Str:
		return k == value.KindString, true
	case t == ir.Arr:
		return k == value.KindArray, true
	case t == ir.Tbl:
		return k == value.KindTable, true
	case t == ir.Fn, t == ir.Vcl:
		return k == value.KindFunction, true
	case t == ir.Obj:
		return k == value.KindObject, true
	default:
		return false, false
	}
}
