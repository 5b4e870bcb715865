// Package regalloc implements §4.9's register allocator: interference-
// graph coloring over internal/mir's virtual registers, with two
// separate color classes (general-purpose and floating-point) and a
// spill-rewrite loop that rebuilds the graph until it colors.
//
// Grounded on _examples/original_source/include/jit/regalloc.hpp for
// naming and a few heuristics (register_state's live-interval/spill-cost
// fields, get_anyreg's "free expired, else spill cheapest dead-of-kind"
// fallback, the move callback used for move elimination) — but that
// header implements a single-pass linear-scan allocator, one register at
// a time in program order. §4.9 instead specifies a classical Chaitin-
// style simplify/color/spill-rewrite pipeline over an explicit
// interference graph, which is what this package actually builds; see
// the worklog note below for why the two differ and which one governs.
//
// DESIGN.md open-question note: regalloc.hpp's linear-scan approach was
// not adopted because spec.md's §4.9 bullet list is unambiguous about
// wanting graph coloring with explicit simplify/spill-cost/color steps,
// and graph coloring is closer to what the original's own interference-
// aware "spill the least-hot dead register" heuristic is approximating
// one register at a time anyway. regalloc.hpp's struct and callback
// names are kept for anything that carries over directly (cost-weighted
// spill choice, move elimination, store/load/move as the only points of
// contact with a concrete backend).
package regalloc

import (
	"sort"

	"github.com/li-script/lightning-sub000/internal/mir"
)

// Config supplies the two physical color-class sizes; real values
// belong to a concrete target's calling convention, which this package
// never models (§4.9 and its surrounding non-goals exclude real
// encoding), so callers pick whatever count fits their backend.
type Config struct {
	GPColors int
	FPColors int
}

// DefaultConfig reserves a modest, plausible register file — enough to
// exercise spilling in anything but a trivial procedure, which is the
// whole point of testing this package's spill-rewrite loop.
var DefaultConfig = Config{GPColors: 6, FPColors: 6}

// Assignment is the final disposition of one virtual register: either a
// physical color (Spilled == false) or a stack slot index.
type Assignment struct {
	Phys    mir.MReg
	Spilled bool
	Slot    int32
}

// maxRewriteRounds bounds the spill-rewrite loop the same way
// internal/opt bounds its fixpoint: a real allocator converges in a
// handful of rounds, and a pass that never stabilizes is a bug, not a
// case to loop on forever.
const maxRewriteRounds = 64

// Allocate runs the full §4.9 pipeline over mp in place (spill
// rewriting inserts instructions directly into mp's blocks) and returns
// the final register/slot assignment for every virtual register that
// survived to the end. It also sets mp.StackSlots to the 16-byte-aligned
// spill-area size the invariant in §4.9's closing paragraph requires.
func Allocate(mp *mir.MProcedure, cfg Config) (map[uint32]Assignment, error) {
	spillArguments(mp)

	var assign map[uint32]Assignment
	nextSlot := int32(0)
	for round := 0; round < maxRewriteRounds; round++ {
		computeLiveness(mp)
		g := buildInterference(mp)
		colors, spilled := colorGraph(g, cfg)
		if len(spilled) == 0 {
			assign = make(map[uint32]Assignment, len(colors))
			for uid, c := range colors {
				assign[uid] = Assignment{Phys: c}
			}
			break
		}
		slots := make(map[uint32]int32, len(spilled))
		for _, uid := range spilled {
			slots[uid] = nextSlot
			nextSlot++
		}
		rewriteSpills(mp, g, slots)
	}
	if assign == nil {
		return nil, errNoFixpoint
	}

	eliminateRedundantMoves(mp, assign)

	mp.StackSlots = alignSlots(nextSlot)
	return assign, nil
}

var errNoFixpoint = regallocError("register allocator did not converge within the iteration bound")

type regallocError string

func (e regallocError) Error() string { return string(e) }

func alignSlots(n int32) int32 {
	const align = 2 // 16 bytes / 8-byte slots
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

// spillArguments implements §4.9 step 1: the entry-reserved virtuals
// (VM, args, nargs) are copied into fresh ordinary virtuals at the top
// of the entry block, so the allocator is free to color or spill them
// like any other value instead of treating a fixed-purpose register as
// live across the whole procedure. Every later reference to one of
// these reserved registers (as a memory operand's base, the only way
// internal/mir ever uses them) is rewritten to the fresh virtual.
func spillArguments(mp *mir.MProcedure) {
	entry := mp.Entry()
	if entry == nil {
		return
	}
	used := map[mir.VReg]bool{}
	walkMemBases(mp, func(r mir.MReg) {
		if v, ok := reservedOf(r); ok {
			used[v] = true
		}
	})

	var reserved []mir.VReg
	for v := range used {
		reserved = append(reserved, v)
	}
	sort.Slice(reserved, func(i, j int) bool { return reserved[i] < reserved[j] })

	fresh := make(map[mir.VReg]mir.MReg, len(reserved))
	var prepend []*mir.MInsn
	for _, v := range reserved {
		f := mp.NextGP()
		fresh[v] = f
		prepend = append(prepend, mir.VirtualInsn(mir.VMovI, f, mir.Reg(mir.Reserved(v))))
	}
	entry.Instructions = append(prepend, entry.Instructions...)

	for _, blk := range mp.Blocks {
		for _, ins := range blk.Instructions {
			for i := range ins.Args {
				if ins.Args[i].Kind != mir.OpMem {
					continue
				}
				if v, ok := reservedOf(ins.Args[i].Mem.Base); ok {
					if f, ok2 := fresh[v]; ok2 {
						ins.Args[i].Mem.Base = f
					}
				}
			}
		}
	}
}

func reservedOf(r mir.MReg) (mir.VReg, bool) {
	if !r.IsVirt() || r.ID <= 0 || r.ID >= int32(mir.VRegFirst) {
		return 0, false
	}
	return mir.VReg(r.ID), true
}

func walkMemBases(mp *mir.MProcedure, fn func(mir.MReg)) {
	for _, blk := range mp.Blocks {
		for _, ins := range blk.Instructions {
			for _, a := range ins.Args {
				if a.Kind == mir.OpMem && !a.Mem.Base.IsNull() {
					fn(a.Mem.Base)
				}
			}
		}
	}
}
