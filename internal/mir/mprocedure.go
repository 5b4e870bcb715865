package mir

import (
	"fmt"
	"strings"

	"github.com/li-script/lightning-sub000/internal/ir"
	"github.com/li-script/lightning-sub000/internal/value"
)

// MProcedure is the lowered form of one ir.Procedure: an ordered list of
// blocks, independent GP/FP virtual-register counters (mirroring
// mir.hpp's next_reg_i/next_reg_f sign-split convention), a deduplicated
// constant pool addressed relative to VRegCPool, and the stack-slot
// accumulator internal/regalloc fills in once spilling is resolved.
// Code generation itself (turning MInsn into bytes) is out of scope,
// matching spec.md's explicit CPU-encoding non-goal; Code is kept only
// as a placeholder field a future backend would populate.
type MProcedure struct {
	Source *ir.Procedure

	Blocks []*MBlock

	nextGP    int32
	nextFP    int32
	nextBlock uint32

	ConstPool []value.Value

	// StackSlots is the frame's spill-area size in 8-byte slots,
	// rounded by internal/regalloc to a 16-byte-aligned count (§4.9's
	// closing invariant).
	StackSlots int32

	Code []byte
}

func NewMProcedure(source *ir.Procedure) *MProcedure {
	return &MProcedure{Source: source, nextGP: int32(VRegFirst)}
}

func (p *MProcedure) NewBlock() *MBlock {
	b := &MBlock{Parent: p, ID: p.nextBlock}
	p.nextBlock++
	p.Blocks = append(p.Blocks, b)
	return b
}

// NextGP/NextFP mint a fresh virtual register of the requested class,
// matching mprocedure::next_gp/next_fp.
func (p *MProcedure) NextGP() MReg {
	reg := VirtGP(p.nextGP)
	p.nextGP++
	return reg
}

func (p *MProcedure) NextFP() MReg {
	p.nextFP++
	return VirtFP(p.nextFP)
}

// AddConst interns c into the constant pool and returns a memory operand
// addressing it relative to the constant-pool base register, per
// mprocedure::add_const's dedup-by-value behavior.
func (p *MProcedure) AddConst(c value.Value) MMem {
	for i, existing := range p.ConstPool {
		if existing == c {
			return MMem{Base: Reserved(VRegCPool), Disp: int32(i * 8)}
		}
	}
	idx := len(p.ConstPool)
	p.ConstPool = append(p.ConstPool, c)
	return MMem{Base: Reserved(VRegCPool), Disp: int32(idx * 8)}
}

// AddJump records a control-flow edge both ways; DelJump removes one.
// Both panic on a malformed request (duplicate add, missing del) the
// same way mprocedure::add_jump/del_jump LI_ASSERT, since either
// indicates a lowering bug rather than recoverable input.
func (p *MProcedure) AddJump(from, to *MBlock) {
	for _, s := range from.Succs {
		if s == to {
			panic("mir: duplicate jump edge")
		}
	}
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

func (p *MProcedure) DelJump(from, to *MBlock) {
	from.Succs = removeBlock(from.Succs, to)
	to.Preds = removeBlock(to.Preds, from)
}

func removeBlock(list []*MBlock, target *MBlock) []*MBlock {
	for i, b := range list {
		if b == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	panic("mir: edge not found")
}

// Entry returns the procedure's first block.
func (p *MProcedure) Entry() *MBlock {
	if len(p.Blocks) == 0 {
		return nil
	}
	return p.Blocks[0]
}

// NumRegs returns one past the highest UID any register minted by this
// procedure can have, sizing internal/regalloc's per-register arrays.
func (p *MProcedure) NumRegs() int {
	gp := MReg{ID: p.nextGP, Class: RegVirt}
	fp := MReg{ID: -p.nextFP, Class: RegVirt}
	hi := gp.UID()
	if fpUID := fp.UID(); fpUID > hi {
		hi = fpUID
	}
	return int(hi) + 1
}

// String renders every block in program order, one instruction per
// line, matching mir.hpp's mprocedure::print()/mblock::print() format
// ("-- Block $n [HOT k]"/"[COLD k]" banner, then one indented insn per
// line) closely enough for `cmd/ltool compile` to use as its dump
// format. Hot is only annotated when nonzero, same as the original's
// sign-gated printf calls.
func (p *MProcedure) String() string {
	var b strings.Builder
	for _, blk := range p.Blocks {
		fmt.Fprintf(&b, "-- Block $%d", blk.ID)
		if blk.Hot < 0 {
			fmt.Fprintf(&b, " [COLD %d]", -blk.Hot)
		} else if blk.Hot > 0 {
			fmt.Fprintf(&b, " [HOT %d]", blk.Hot)
		}
		b.WriteByte('\n')
		for _, ins := range blk.Instructions {
			fmt.Fprintf(&b, "\t%s\n", ins.String())
		}
	}
	return b.String()
}
