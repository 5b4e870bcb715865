package opt

import (
	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/value"
)

// TypeSplitCFG implements §4.7 pass 7: for every polymorphic binop,
// compare, field_get, or field_set whose relevant operand hasn't been
// proven a concrete type, a test_type guard is inserted and the block is
// split into a fast (specialized) path and a slow (original, generic)
// path that rejoin afterward. A value-producing op gets a phi at the
// join; field_set produces nothing, so its two paths just rejoin
// directly.
//
// Only one split is applied per call per block (the block's instruction
// list is invalidated by the split), relying on internal/opt's fixpoint
// driver to call this again until no candidate remains.
func TypeSplitCFG(proc *ir.Procedure) bool {
	changed := false
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			if trySplit(proc, blk, ins) {
				changed = true
				break
			}
		}
	}
	return changed
}

func trySplit(proc *ir.Procedure, blk *ir.BasicBlock, target *ir.Instruction) bool {
	if target.IsVolatile {
		return false // the slow side of an earlier split, or a field_set guard's compare; never split
	}
	switch target.Op {
	case ir.OpBinop, ir.OpCompare:
		return trySplitNumeric(proc, blk, target)
	case ir.OpFieldGet:
		return trySplitFieldGet(proc, blk, target)
	case ir.OpFieldSet:
		return trySplitFieldSet(proc, blk, target)
	default:
		return false
	}
}

func isUnresolved(v ir.Value) bool {
	t := valueType(v)
	return t == ir.Unk || t == ir.Any
}

// splitScaffold splits blk in two around target (target moves into the
// returned tail along with everything that followed it), then splits
// tail again so target ends up alone, immediately followed by a jmp to
// rest (everything that used to follow target, including blk's real
// original terminator). The caller still owes blk a terminator (a jcc
// replacing the plain jmp this leaves behind) and owes fast a body plus
// a closing jmp to rest.
func splitScaffold(proc *ir.Procedure, blk *ir.BasicBlock, target *ir.Instruction) (fast, tail, rest *ir.BasicBlock) {
	tail = blk.SplitAt(target.Prev)
	rest = tail.SplitAt(target)
	if last := blk.Last(); last != nil && last.Op == ir.OpJmp {
		blk.Remove(last)
	}
	fast = proc.NewBlock()
	return fast, tail, rest
}

func wireGuard(proc *ir.Procedure, blk *ir.BasicBlock, cond ir.Value, fast, tail *ir.BasicBlock) {
	jcc := proc.NewInstruction(ir.OpJcc)
	jcc.AddOperand(cond)
	jcc.Targets = []*ir.BasicBlock{fast, tail}
	jcc.Update()
	blk.Append(jcc)
	blk.Succs = []*ir.BasicBlock{fast, tail}
	fast.Preds = []*ir.BasicBlock{blk}
}

func closeFast(proc *ir.Procedure, fast, rest *ir.BasicBlock) {
	jmp := proc.NewInstruction(ir.OpJmp)
	jmp.Targets = []*ir.BasicBlock{rest}
	fast.Append(jmp)
	fast.Succs = []*ir.BasicBlock{rest}
	rest.Preds = append(rest.Preds, fast)
}

// joinResult merges the slow and fast paths' results with a phi at
// rest's head, for any split whose target actually produces a value.
// rest.Preds must already be [tail, fast] (splitScaffold + closeFast's
// order) when this runs.
func joinResult(proc *ir.Procedure, rest *ir.BasicBlock, slowVal, fastVal *ir.Instruction) {
	if slowVal.Result == ir.None {
		return
	}
	phi := proc.NewInstruction(ir.OpPhi)
	phi.AddOperand(slowVal)
	phi.AddOperand(fastVal)
	phi.Update()
	prependToBlock(rest, phi)
	replaceAllUsesExcept(proc, slowVal, phi, phi)
}

func prependToBlock(blk *ir.BasicBlock, ins *ir.Instruction) {
	if first := blk.First(); first != nil {
		blk.InsertBefore(first, ins)
		return
	}
	blk.Append(ins)
}

func replaceAllUsesExcept(proc *ir.Procedure, old, new ir.Value, except *ir.Instruction) {
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			if ins == except {
				continue
			}
			for i := range ins.Operands {
				if ins.Operands[i].Value == old {
					ins.Operands[i].Value = new
				}
			}
		}
	}
}

func newTestType(proc *ir.Procedure, blk *ir.BasicBlock, v ir.Value, k value.Kind) *ir.Instruction {
	ins := proc.NewInstruction(ir.OpTestType)
	ins.VMOp = uint8(k)
	ins.AddOperand(v)
	ins.Update()
	blk.Append(ins)
	return ins
}

func newBoolAnd(proc *ir.Procedure, blk *ir.BasicBlock, a, b ir.Value) *ir.Instruction {
	ins := proc.NewInstruction(ir.OpBoolAnd)
	ins.AddOperand(a)
	ins.AddOperand(b)
	ins.Update()
	blk.Append(ins)
	return ins
}

func newCompare(proc *ir.Procedure, blk *ir.BasicBlock, a, b ir.Value, op bytecode.Op) *ir.Instruction {
	ins := proc.NewInstruction(ir.OpCompare)
	ins.VMOp = uint8(op)
	ins.AddOperand(a)
	ins.AddOperand(b)
	ins.Update()
	blk.Append(ins)
	return ins
}

func newAssumeCast(proc *ir.Procedure, blk *ir.BasicBlock, v ir.Value, t ir.Type) *ir.Instruction {
	ins := proc.NewInstruction(ir.OpAssumeCast)
	ins.AddOperand(v)
	ins.AddOperand(&ir.Constant{Type: ir.Any, IRType: t})
	ins.Update()
	blk.Append(ins)
	return ins
}

func trySplitNumeric(proc *ir.Procedure, blk *ir.BasicBlock, target *ir.Instruction) bool {
	if len(target.Operands) != 2 {
		return false
	}
	op0, op1 := target.Operands[0].Value, target.Operands[1].Value
	if !isUnresolved(op0) && !isUnresolved(op1) {
		return false
	}

	fast, tail, rest := splitScaffold(proc, blk, target)

	t0 := newTestType(proc, blk, op0, value.KindNumber)
	t1 := newTestType(proc, blk, op1, value.KindNumber)
	cond := newBoolAnd(proc, blk, t0, t1)

	c0 := newAssumeCast(proc, fast, op0, ir.F64)
	c1 := newAssumeCast(proc, fast, op1, ir.F64)
	specialized := proc.NewInstruction(target.Op)
	specialized.VMOp = target.VMOp
	specialized.AddOperand(c0)
	specialized.AddOperand(c1)
	specialized.Update()
	fast.Append(specialized)
	closeFast(proc, fast, rest)

	wireGuard(proc, blk, cond, fast, tail)
	target.IsVolatile = true
	joinResult(proc, rest, target, specialized)
	return true
}

func trySplitFieldGet(proc *ir.Procedure, blk *ir.BasicBlock, target *ir.Instruction) bool {
	if len(target.Operands) != 3 {
		return false
	}
	rawFlag := target.Operands[0].Value
	container := target.Operands[1].Value
	key := target.Operands[2].Value
	if !isUnresolved(container) {
		return false
	}

	fast, tail, rest := splitScaffold(proc, blk, target)

	cond := newTestType(proc, blk, container, value.KindArray)

	c0 := newAssumeCast(proc, fast, container, ir.Arr)
	specialized := proc.NewInstruction(ir.OpFieldGet)
	specialized.AddOperand(rawFlag)
	specialized.AddOperand(c0)
	specialized.AddOperand(key)
	specialized.Update()
	fast.Append(specialized)
	closeFast(proc, fast, rest)

	wireGuard(proc, blk, cond, fast, tail)
	target.IsVolatile = true
	joinResult(proc, rest, target, specialized)
	return true
}

// trySplitFieldSet implements the §12 open-question decision: the
// fast path's write is provably both array-typed and in range, so its
// specialized field_set is marked Checked for mir to lower straight to
// rtcall.FieldSetRaw's assumeChecked=true path. The slow path keeps the
// original, fully-checked generic field_set untouched.
func trySplitFieldSet(proc *ir.Procedure, blk *ir.BasicBlock, target *ir.Instruction) bool {
	if len(target.Operands) != 4 {
		return false
	}
	rawFlag := target.Operands[0].Value
	container := target.Operands[1].Value
	key := target.Operands[2].Value
	val := target.Operands[3].Value
	if !isUnresolved(container) {
		return false
	}

	fast, tail, rest := splitScaffold(proc, blk, target)

	isArr := newTestType(proc, blk, container, value.KindArray)
	length := proc.NewInstruction(ir.OpCCall)
	length.Callee = "builtin_len"
	length.AddOperand(container)
	length.Update()
	blk.Append(length)
	geZero := newCompare(proc, blk, key, &ir.Constant{Type: ir.F64, F: 0}, bytecode.CGE)
	ltLen := newCompare(proc, blk, key, length, bytecode.CLT)
	geZero.IsVolatile = true // the guard's own compares are never split
	ltLen.IsVolatile = true
	inRange := newBoolAnd(proc, blk, geZero, ltLen)
	cond := newBoolAnd(proc, blk, isArr, inRange)

	c0 := newAssumeCast(proc, fast, container, ir.Arr)
	specialized := proc.NewInstruction(ir.OpFieldSet)
	specialized.AddOperand(rawFlag)
	specialized.AddOperand(c0)
	specialized.AddOperand(key)
	specialized.AddOperand(val)
	specialized.Checked = true
	specialized.Update()
	fast.Append(specialized)
	closeFast(proc, fast, rest)

	wireGuard(proc, blk, cond, fast, tail)
	target.IsVolatile = true
	return true
}
