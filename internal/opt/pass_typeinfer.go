package opt

import "github.com/li-script/lightning-sub000/internal/ir"

// TypeInference implements §4.7 pass 8: every instruction's Result is
// recomputed from its (possibly just-narrowed) operands. Most of the
// actual narrowing happens as a side effect of the earlier passes in the
// fixpoint (assume_cast from type_split_cfg, constant folding); this
// pass exists to propagate those narrowings through anything downstream
// that hasn't been re-visited yet, such as a phi whose operand just
// became concrete.
func TypeInference(proc *ir.Procedure) bool {
	changed := false
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			before := ins.Result
			ins.Update()
			if ins.Result != before {
				changed = true
			}
		}
	}
	return changed
}
