package opt

import "github.com/li-script/lightning-sub000/internal/ir"

// LiftPhi implements §4.7 pass 1. internal/lift already performs Braun's
// trivial-phi elimination as it builds each phi, so on a freshly lifted
// procedure this pass is a no-op; it earns its keep once later passes
// (most notably type_split_cfg's join phis) introduce new phis that may
// themselves turn out trivial.
func LiftPhi(proc *ir.Procedure) bool {
	changed := false
	for {
		found := false
		for _, blk := range proc.Blocks {
			for _, phi := range blk.Phis() {
				same, ok := trivialPhiValue(phi)
				if !ok {
					continue
				}
				replaceAllUses(proc, phi, same)
				blk.Remove(phi)
				found = true
			}
		}
		if !found {
			break
		}
		changed = true
	}
	return changed
}

// trivialPhiValue reports the single non-self operand a phi collapses
// to, if all of its operands are either that value or the phi itself. A
// phi with no distinct operand at all (reachable only through itself)
// collapses to nil.
func trivialPhiValue(phi *ir.Instruction) (ir.Value, bool) {
	var same ir.Value
	for _, op := range phi.Operands {
		if op.Value == ir.Value(phi) || op.Value == same {
			continue
		}
		if same != nil {
			return nil, false
		}
		same = op.Value
	}
	if same == nil {
		same = &ir.ConstNil
	}
	return same, true
}
