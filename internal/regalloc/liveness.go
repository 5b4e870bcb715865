package regalloc

import "github.com/li-script/lightning-sub000/internal/mir"

// computeLiveness implements §4.9 step 2: a backward dataflow fixpoint
// over each block's locally-computed def/ref sets,
//
//	live_in(b)  = (live_out(b) \ def(b)) ∪ ref(b)
//	live_out(b) = ⋃ live_in(s) for s in succs(b)
//
// Def/Ref follow the usual per-block "upward exposed use" rule: a read
// of a register not yet locally defined earlier in the block is
// upward-exposed (goes in ref); any write, regardless of prior reads,
// goes in def.
func computeLiveness(mp *mir.MProcedure) {
	n := mp.NumRegs()
	for _, b := range mp.Blocks {
		b.Def = mir.NewBitset(n)
		b.Ref = mir.NewBitset(n)
		b.LiveIn = mir.NewBitset(n)
		b.LiveOut = mir.NewBitset(n)

		locallyDefined := mir.NewBitset(n)
		for _, ins := range b.Instructions {
			ins.ForEachReg(func(r mir.MReg, isRead bool) {
				uid := int(r.UID())
				if isRead {
					if !locallyDefined.Test(uid) {
						b.Ref.Set(uid)
					}
				} else {
					locallyDefined.Set(uid)
					b.Def.Set(uid)
				}
			})
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range mp.Blocks {
			newOut := mir.NewBitset(n)
			for _, s := range b.Succs {
				newOut.Or(s.LiveIn)
			}
			newIn := newOut.AndNot(b.Def)
			newIn.Or(b.Ref)

			if !bitsetEqual(newIn, b.LiveIn) {
				b.LiveIn = newIn
				changed = true
			}
			if !bitsetEqual(newOut, b.LiveOut) {
				b.LiveOut = newOut
				changed = true
			}
		}
	}
}

func bitsetEqual(a, b mir.Bitset) bool {
	for i := 0; i < a.Len(); i++ {
		if a.Test(i) != b.Test(i) {
			return false
		}
	}
	return true
}
