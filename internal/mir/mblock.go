package mir

// MBlock is a straight-line run of MInsns plus the predecessor/successor
// lists and per-block dataflow bitsets §4.9's liveness pass fills in.
// Hot is a hotness score (loop_depth minus a cold hint), mirroring
// mir.hpp's mblock::hot field and print()'s "[HOT]"/"[COLD]" rendering.
type MBlock struct {
	Parent *MProcedure
	ID     uint32
	Hot    int32

	Instructions []*MInsn

	Preds []*MBlock
	Succs []*MBlock

	// Dataflow bitsets, indexed by MReg.UID(); populated by
	// internal/regalloc's liveness fixpoint (§4.9 step 2) and consumed
	// by its interference builder (step 3).
	LiveIn, LiveOut, Def, Ref Bitset
}

func (b *MBlock) Append(ins *MInsn) {
	b.Instructions = append(b.Instructions, ins)
}

func (b *MBlock) Last() *MInsn {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}
