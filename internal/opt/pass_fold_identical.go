package opt

import "github.com/li-script/lightning-sub000/internal/ir"

// FoldIdentical implements §4.7 pass 4, a GVN-lite: for each non-volatile
// instruction, walk backwards over its own block's instructions (and, if
// the walk runs off the top, one level into a sole predecessor) looking
// for an earlier instruction with the same opcode and operand sequence.
// If one is found with no side-effecting instruction between them, every
// use of the later instruction is replaced with the earlier one.
func FoldIdentical(proc *ir.Procedure) bool {
	changed := false
	for _, blk := range proc.Blocks {
		insns := blk.Instructions()
		for i, ins := range insns {
			if ins.IsVolatile || ins.Op == ir.OpPhi {
				continue
			}
			match := matchInBlock(ins, insns[:i])
			if match == nil {
				match = matchInPredecessor(ins, blk)
			}
			if match == nil {
				continue
			}
			replaceAllUses(proc, ins, match)
			blk.Remove(ins)
			changed = true
		}
	}
	return changed
}

func matchInBlock(ins *ir.Instruction, before []*ir.Instruction) *ir.Instruction {
	for i := len(before) - 1; i >= 0; i-- {
		cand := before[i]
		if sameOperation(ins, cand) {
			return cand
		}
		if cand.HasSideEffect {
			return nil
		}
	}
	return nil
}

func matchInPredecessor(ins *ir.Instruction, blk *ir.BasicBlock) *ir.Instruction {
	if len(blk.Preds) != 1 {
		return nil
	}
	return matchInBlock(ins, blk.Preds[0].Instructions())
}

func sameOperation(a, b *ir.Instruction) bool {
	if a.Op != b.Op || a.VMOp != b.VMOp || a.Callee != b.Callee || a.Local != b.Local {
		return false
	}
	if len(a.Operands) != len(b.Operands) {
		return false
	}
	for i := range a.Operands {
		if !sameValue(a.Operands[i].Value, b.Operands[i].Value) {
			return false
		}
	}
	return true
}

func sameValue(x, y ir.Value) bool {
	if x == y {
		return true
	}
	cx, okx := x.(*ir.Constant)
	cy, oky := y.(*ir.Constant)
	if !okx || !oky || cx.Type != cy.Type {
		return false
	}
	switch {
	case cx.Type == ir.I1:
		return cx.Bool == cy.Bool
	case cx.Type == ir.Nil:
		return true
	case cx.Type.IsNumeric():
		return cx.F == cy.F
	default:
		return cx.GC == cy.GC && cx.Native == cy.Native
	}
}
