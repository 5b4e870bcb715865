package opt

import "github.com/li-script/lightning-sub000/internal/ir"

// ScheduleGC implements §4.7 pass 2. internal/lift already places a
// gc_tick immediately before every allocating opcode; this pass closes
// the gap that leaves, a loop whose body allocates nothing of its own
// (e.g. a pure numeric accumulator) could otherwise run indefinitely
// between collector checkpoints. Every loop header gets one gc_tick,
// placed at the earliest safe point: right after its phis.
func ScheduleGC(proc *ir.Procedure) bool {
	changed := false
	for _, blk := range proc.Blocks {
		if !isLoopHeader(blk) || hasGCTick(blk) {
			continue
		}
		tick := proc.NewInstruction(ir.OpGCTick)
		insertAfterPhis(blk, tick)
		changed = true
	}
	return changed
}

// isLoopHeader reports whether blk has a back edge: a predecessor it
// strictly dominates.
func isLoopHeader(blk *ir.BasicBlock) bool {
	for _, pred := range blk.Preds {
		if blk.Dom(pred) {
			return true
		}
	}
	return false
}

func hasGCTick(blk *ir.BasicBlock) bool {
	for _, ins := range blk.Instructions() {
		if ins.Op == ir.OpGCTick {
			return true
		}
	}
	return false
}
