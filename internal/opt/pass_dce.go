package opt

import "github.com/li-script/lightning-sub000/internal/ir"

// DCE implements §4.7 pass 5: erase any pure instruction with a zero use
// count, iterated to fixpoint (erasing one dead instruction can make one
// of its own operands dead in turn).
func DCE(proc *ir.Procedure) bool {
	changed := false
	for {
		counts := useCounts(proc)
		erasedThisRound := false
		for _, blk := range proc.Blocks {
			for _, ins := range blk.Instructions() {
				if !ins.IsPure || ins.Op.IsTerminator() || counts[ins] > 0 {
					continue
				}
				blk.Remove(ins)
				erasedThisRound = true
			}
		}
		if !erasedThisRound {
			break
		}
		changed = true
	}
	return changed
}
