package opt

import "github.com/li-script/lightning-sub000/internal/ir"

// SimplifyCFG implements §4.7 pass 6's three sub-steps: collapsing a jcc
// whose two edges go to the same block into a jmp, evaluating a jcc with
// a constant condition by deleting its dead edge, and inlining a
// jmp-only block into each of its predecessors' terminators.
func SimplifyCFG(proc *ir.Procedure) bool {
	changed := false
	for _, blk := range proc.Blocks {
		if simplifyIdenticalJcc(blk) {
			changed = true
		}
	}
	for _, blk := range proc.Blocks {
		if simplifyConstJcc(blk) {
			changed = true
		}
	}
	if inlineJumpOnlyBlocks(proc) {
		changed = true
	}
	if changed {
		proc.RemoveUnreachable()
	}
	return changed
}

// simplifyIdenticalJcc handles 6(a). A jcc can end up with both targets
// equal when a JS/JNS's taken and fallthrough addresses happen to
// coincide; the duplicate predecessor entry (and its matching phi
// operand) on the shared target collapses along with it.
func simplifyIdenticalJcc(blk *ir.BasicBlock) bool {
	term := blk.Terminator()
	if term == nil || term.Op != ir.OpJcc || len(term.Targets) != 2 {
		return false
	}
	if term.Targets[0] != term.Targets[1] {
		return false
	}
	target := term.Targets[0]
	removeOneDuplicatePred(target, blk)
	term.Op = ir.OpJmp
	term.Targets = []*ir.BasicBlock{target}
	term.Operands = nil
	term.Update()
	return true
}

func removeOneDuplicatePred(target, blk *ir.BasicBlock) {
	seen := false
	for i, p := range target.Preds {
		if p != blk {
			continue
		}
		if !seen {
			seen = true
			continue
		}
		target.Preds = append(target.Preds[:i], target.Preds[i+1:]...)
		for _, phi := range target.Phis() {
			phi.Operands = append(phi.Operands[:i], phi.Operands[i+1:]...)
		}
		return
	}
}

// simplifyConstJcc handles 6(b): a jcc whose condition folded to a
// constant (by fold_constant, or by type_split_cfg's guard) has a known
// outcome; the dead edge's predecessor entry and matching phi operand on
// that target are deleted along with it.
func simplifyConstJcc(blk *ir.BasicBlock) bool {
	term := blk.Terminator()
	if term == nil || term.Op != ir.OpJcc || len(term.Operands) != 1 {
		return false
	}
	cond, ok := term.Operands[0].Value.(*ir.Constant)
	if !ok || cond.Type != ir.I1 {
		return false
	}
	liveIdx := 0
	if !cond.Bool {
		liveIdx = 1
	}
	dead := term.Targets[1-liveIdx]
	live := term.Targets[liveIdx]
	removePredEdge(dead, blk)
	term.Op = ir.OpJmp
	term.Targets = []*ir.BasicBlock{live}
	term.Operands = nil
	term.Update()
	blk.Succs = term.Targets
	return true
}

func removePredEdge(target, blk *ir.BasicBlock) {
	for i, p := range target.Preds {
		if p == blk {
			target.Preds = append(target.Preds[:i], target.Preds[i+1:]...)
			for _, phi := range target.Phis() {
				phi.Operands = append(phi.Operands[:i], phi.Operands[i+1:]...)
			}
			return
		}
	}
}

// inlineJumpOnlyBlocks handles 6(c): a block with no phis whose sole
// content is an unconditional jmp is removed, and every predecessor's
// terminator is rewritten to target the jmp's destination directly.
func inlineJumpOnlyBlocks(proc *ir.Procedure) bool {
	changed := false
	for _, blk := range proc.Blocks {
		if blk == proc.Entry() || !isJumpOnly(blk) {
			continue
		}
		target := blk.Terminator().Targets[0]
		if target == blk {
			continue // degenerate self-loop, nothing to gain by inlining
		}
		for _, pred := range append([]*ir.BasicBlock(nil), blk.Preds...) {
			retargetTerminator(pred, blk, target)
			replacePredInSuccessor(target, blk, pred)
		}
		blk.Preds = nil
		changed = true
	}
	if changed {
		proc.RemoveUnreachable()
	}
	return changed
}

func isJumpOnly(blk *ir.BasicBlock) bool {
	if len(blk.Phis()) != 0 {
		return false
	}
	term := blk.Terminator()
	return term != nil && term.Op == ir.OpJmp && blk.First() == term
}

func retargetTerminator(pred, from, to *ir.BasicBlock) {
	term := pred.Terminator()
	if term == nil {
		return
	}
	for i, t := range term.Targets {
		if t == from {
			term.Targets[i] = to
		}
	}
	pred.Succs = term.Targets
}

func replacePredInSuccessor(target, from, to *ir.BasicBlock) {
	for i, p := range target.Preds {
		if p == from {
			target.Preds[i] = to
			return
		}
	}
	target.Preds = append(target.Preds, to)
}
