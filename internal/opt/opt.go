// Package opt implements §4.7's optimization pipeline: a fixed sequence
// of passes that run once (lift_phi, schedule_gc), a middle group that
// iterates to fixpoint (fold_constant, fold_identical, dce, cfg,
// type_split_cfg, type_inference), and a closing pair that prepares the
// procedure for MIR lowering (prepare_for_mir, finalize_for_mir).
package opt

import (
	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

// maxFixpointIterations bounds the middle pass group so a pass pair that
// (by a bug) keeps reporting mutual changes cannot loop forever; §4.7's
// procedures are small enough that real fixpoints converge in a handful
// of rounds.
const maxFixpointIterations = 64

// Optimize runs the full §4.7 pipeline over proc in place and leaves it
// ready for internal/mir's lowering: topologically sorted, phi operands
// resolved to per-predecessor moves, and every polymorphic opcode either
// specialized by a type guard or lowered to a direct ccall. cfg supplies
// the §12 FastMath decision to fold_constant.
func Optimize(proc *ir.Procedure, cfg vmconfig.Config) error {
	LiftPhi(proc)
	ScheduleGC(proc)

	for i := 0; i < maxFixpointIterations; i++ {
		changed := false
		changed = FoldConstant(proc, cfg.FastMath) || changed
		changed = FoldIdentical(proc) || changed
		changed = DCE(proc) || changed
		changed = SimplifyCFG(proc) || changed
		changed = TypeSplitCFG(proc) || changed
		changed = TypeInference(proc) || changed
		if !changed {
			break
		}
	}

	PrepareForMIR(proc)
	FinalizeForMIR(proc)
	return proc.Verify()
}

// replaceAllUses rewrites every operand referencing old to new across the
// whole procedure. The IR keeps no reverse-use index (§4.5's Use is
// per-operand, not per-def), so passes that eliminate a value scan for
// its readers the same way the lifter's trivial-phi removal does.
func replaceAllUses(proc *ir.Procedure, old, new ir.Value) {
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			for i := range ins.Operands {
				if ins.Operands[i].Value == old {
					ins.Operands[i].Value = new
				}
			}
		}
	}
}

// useCounts tallies, for every instruction in proc, how many operand
// slots across the whole procedure reference it.
func useCounts(proc *ir.Procedure) map[*ir.Instruction]int {
	counts := make(map[*ir.Instruction]int)
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			for _, op := range ins.Operands {
				if v, ok := op.Value.(*ir.Instruction); ok {
					counts[v]++
				}
			}
		}
	}
	return counts
}

// insertAfterPhis appends ins right after block's leading phi run,
// mirroring internal/lift's helper of the same name: several passes
// (schedule_gc, type_split_cfg) need to insert an instruction at a
// block's head without splitting the "phis come first" invariant.
func insertAfterPhis(block *ir.BasicBlock, ins *ir.Instruction) {
	phis := block.Phis()
	if len(phis) == 0 {
		if first := block.First(); first != nil {
			block.InsertBefore(first, ins)
		} else {
			block.Append(ins)
		}
		return
	}
	last := phis[len(phis)-1]
	block.InsertBefore(last.Next, ins)
}
