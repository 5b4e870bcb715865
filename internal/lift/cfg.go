package lift

import (
	"sort"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
)

// cfgInfo is the bytecode-level control-flow graph the builder discovers
// before any SSA construction begins: block boundaries (leaders) and the
// live jump targets resolved to *ir.BasicBlock (§4.6: "for each bytecode
// offset that is a label target, create a block").
type cfgInfo struct {
	blockAt  map[int]*ir.BasicBlock // leader pc -> block
	blockOf  []*ir.BasicBlock       // blockOf[pc] = the block that owns pc
	order    []*ir.BasicBlock       // blocks in ascending-pc (layout) order
	ehTarget map[int]*ir.BasicBlock // SETEH pc -> handler block, for OpSetHandler
}

// target resolves a jump/iter relative offset the same way vm/dispatch.go
// does: f.pc has already been advanced past the instruction itself before
// the offset is applied, so the absolute target is simply idx+rel.
func target(idx int, rel int32) int { return idx + int(rel) }

// discoverLeaders finds every bytecode offset that begins a block: offset
// 0, every live jump/iter target, the instruction following every
// terminator-shaped opcode, and every SETEH handler entry point.
func discoverLeaders(code []bytecode.Insn) ([]int, map[int]int, error) {
	set := map[int]bool{0: true}
	ehSet := map[int]bool{}
	for i, insn := range code {
		switch insn.Op {
		case bytecode.JMP:
			t := target(i, insn.A)
			if t < 0 || t > len(code) {
				return nil, nil, errOperandOutOfRange(i, insn.A)
			}
			set[t] = true
			set[i+1] = true
		case bytecode.JS, bytecode.JNS, bytecode.ITER:
			t := target(i, insn.A)
			if t < 0 || t > len(code) {
				return nil, nil, errOperandOutOfRange(i, insn.A)
			}
			set[t] = true
			set[i+1] = true
		case bytecode.RET:
			set[i+1] = true
		case bytecode.SETEH:
			t := target(i, insn.A)
			if t < 0 || t > len(code) {
				return nil, nil, errOperandOutOfRange(i, insn.A)
			}
			set[t] = true
			ehSet[i] = true
		}
	}
	leaders := make([]int, 0, len(set))
	for pc := range set {
		leaders = append(leaders, pc)
	}
	sort.Ints(leaders)

	ehTargetPC := make(map[int]int, len(ehSet))
	for i := range ehSet {
		ehTargetPC[i] = target(i, code[i].A)
	}
	return leaders, ehTargetPC, nil
}

// buildCFG partitions proto's code into blocks at every discovered leader,
// then wires Preds/Succs from each block's terminating instruction (or a
// synthesized fallthrough/implicit-return edge when the bytecode has none).
func (b *builder) buildCFG() error {
	code := b.proto.Code
	leaders, ehTargetPC, err := discoverLeaders(code)
	if err != nil {
		return err
	}

	info := &cfgInfo{
		blockAt:  make(map[int]*ir.BasicBlock, len(leaders)),
		blockOf:  make([]*ir.BasicBlock, len(code)+1),
		ehTarget: make(map[int]*ir.BasicBlock, len(ehTargetPC)),
	}

	for i, start := range leaders {
		var blk *ir.BasicBlock
		if i == 0 {
			blk = b.proc.Entry()
		} else {
			blk = b.proc.NewBlock()
		}
		end := len(code)
		if i+1 < len(leaders) {
			end = leaders[i+1]
		}
		blk.BCStart = uint32(start)
		blk.BCEnd = uint32(end)
		info.blockAt[start] = blk
		info.order = append(info.order, blk)
		for pc := start; pc < end; pc++ {
			info.blockOf[pc] = blk
		}
	}
	// A prototype that falls off the end of its code (no explicit RET) is
	// addressed one past the last instruction; blockOf's extra slot lets
	// lookups at len(code) resolve to the final block for that case.
	if len(info.order) > 0 {
		info.blockOf[len(code)] = info.order[len(info.order)-1]
	}

	for ehPC, targetPC := range ehTargetPC {
		info.ehTarget[ehPC] = info.blockAt[targetPC]
	}

	for _, blk := range info.order {
		wireTerminator(blk, code, info)
	}
	b.cfg = info
	return nil
}

func wireTerminator(blk *ir.BasicBlock, code []bytecode.Insn, info *cfgInfo) {
	start, end := int(blk.BCStart), int(blk.BCEnd)
	if end > start {
		last := code[end-1]
		switch last.Op {
		case bytecode.JMP:
			succ := info.blockAt[target(end-1, last.A)]
			link(blk, succ)
			return
		case bytecode.JS:
			trueBlk := info.blockAt[target(end-1, last.A)]
			falseBlk := info.blockOf[end]
			link(blk, trueBlk)
			link(blk, falseBlk)
			return
		case bytecode.JNS:
			falseBlk := info.blockAt[target(end-1, last.A)]
			trueBlk := info.blockOf[end]
			link(blk, trueBlk)
			link(blk, falseBlk)
			return
		case bytecode.ITER:
			cont := info.blockOf[end]
			exit := info.blockAt[target(end-1, last.A)]
			link(blk, cont)
			link(blk, exit)
			return
		case bytecode.RET:
			return // procedure terminator: no successor
		}
		// Any SETEH seen in this block adds a conservative edge to its
		// handler block, since exception dispatch can transfer control
		// there from any throwing instruction in scope (an approximation:
		// a real exceptional-edge model would track scope precisely).
		for pc := start; pc < end; pc++ {
			if code[pc].Op == bytecode.SETEH {
				link(blk, info.ehTarget[pc])
			}
		}
	}
	// No explicit control-flow instruction ends this block: it falls
	// through to whatever block begins at end (or, at end of code,
	// implicitly returns nil - handled by the translator, not here).
	if end < len(code) {
		link(blk, info.blockOf[end])
	}
}

func link(from, to *ir.BasicBlock) {
	if to == nil || from == nil {
		return
	}
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}
