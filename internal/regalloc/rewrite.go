package regalloc

import "github.com/li-script/lightning-sub000/internal/mir"

// slotMem addresses a spill slot relative to the procedure's own frame,
// reusing the same VRegArgs-relative convention internal/mir's lowerer
// already uses for locals — spill slots simply live past the end of the
// declared locals, in the region StackSlots accounts for.
func slotMem(mp *mir.MProcedure, slot int32) mir.MMem {
	return mir.MMem{Base: mir.Reserved(mir.VRegArgs), Disp: slotBase(mp) + slot*8}
}

// slotBase is deliberately a fixed offset rather than derived from the
// source procedure's declared local count: internal/mir's lowering
// already reserves its own fixed offsets (return slot, exception slot,
// call-argument scratch) off the same base, and spill slots are a
// further backend-private region below those, out of this package's
// remit to lay out precisely. A real backend would compute this from
// the frame layout its prologue emits.
func slotBase(mp *mir.MProcedure) int32 { return 256 }

// rewriteSpills implements §4.9 step 5: every spilled virtual's uses are
// preceded by a fresh-virtual reload and its defs are followed by a
// store, both marked NoSpill so a later round can't re-spill the very
// register that's carrying a spilled value to or from memory.
func rewriteSpills(mp *mir.MProcedure, g *graph, slots map[uint32]int32) {
	for _, b := range mp.Blocks {
		out := make([]*mir.MInsn, 0, len(b.Instructions))
		for _, ins := range b.Instructions {
			for i := range ins.Args {
				if ins.Args[i].Kind != mir.OpReg {
					continue
				}
				r := ins.Args[i].Reg
				slot, ok := slots[r.UID()]
				if !ok {
					continue
				}
				fresh := freshLike(mp, r)
				load := reloadInsn(mp, fresh, slot)
				load.NoSpill = true
				out = append(out, load)
				ins.Args[i] = mir.Reg(fresh)
			}

			out = append(out, ins)

			if !ins.Out.IsNull() {
				if slot, ok := slots[ins.Out.UID()]; ok {
					fresh := freshLike(mp, ins.Out)
					ins.Out = fresh
					store := storeInsn(mp, slot, fresh)
					store.NoSpill = true
					out = append(out, store)
				}
			}
		}
		b.Instructions = out
	}
}

func freshLike(mp *mir.MProcedure, r mir.MReg) mir.MReg {
	if r.IsFP() {
		return mp.NextFP()
	}
	return mp.NextGP()
}

func reloadInsn(mp *mir.MProcedure, dst mir.MReg, slot int32) *mir.MInsn {
	mem := mir.Mem(slotMem(mp, slot))
	if dst.IsFP() {
		return mir.VirtualInsn(mir.VLoadF64, dst, mem)
	}
	return mir.VirtualInsn(mir.VLoadI64, dst, mem)
}

func storeInsn(mp *mir.MProcedure, slot int32, src mir.MReg) *mir.MInsn {
	mem := slotMem(mp, slot)
	if src.IsFP() {
		ins := mir.VirtualInsn(mir.VStoreF64, mir.NullReg, mir.Mem(mem))
		ins.Args[1] = mir.Reg(src)
		return ins
	}
	ins := mir.VirtualInsn(mir.VStoreI64, mir.NullReg, mir.Mem(mem))
	ins.Args[1] = mir.Reg(src)
	return ins
}

// eliminateRedundantMoves implements §4.9 step 6: a movf/movi whose
// source and destination colored to the same physical register carries
// no information once registers are assigned, so it is dropped.
func eliminateRedundantMoves(mp *mir.MProcedure, assign map[uint32]Assignment) {
	physOf := func(r mir.MReg) (mir.MReg, bool) {
		a, ok := assign[r.UID()]
		if !ok || a.Spilled {
			return mir.MReg{}, false
		}
		return a.Phys, true
	}

	for _, b := range mp.Blocks {
		out := b.Instructions[:0]
		for _, ins := range b.Instructions {
			if isMove(ins) && ins.Args[0].Kind == mir.OpReg && !ins.Out.IsNull() {
				srcPhys, srcOK := physOf(ins.Args[0].Reg)
				dstPhys, dstOK := physOf(ins.Out)
				if srcOK && dstOK && srcPhys == dstPhys {
					continue
				}
			}
			out = append(out, ins)
		}
		b.Instructions = out
	}
}
