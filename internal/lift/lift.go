// Package lift implements §4.6's bytecode-to-SSA lifter: it partitions a
// bytecode.Prototype into basic blocks at every label target, then builds
// an ir.Procedure over them using a tailored Braun-et-al. SSA construction
// (on-demand load_local materialization, phi insertion with trivial-phi
// removal, and sealing so loop back-edges never observe a predecessor's
// local definitions before that predecessor has finished translating).
package lift

import (
	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
)

// builder carries all of the lifter's working state for one prototype.
type builder struct {
	proto *bytecode.Prototype
	proc  *ir.Procedure
	cfg   *cfgInfo

	currentDef     map[*ir.BasicBlock]map[int32]ir.Value
	sealed         map[*ir.BasicBlock]bool
	incompletePhis map[*ir.BasicBlock]map[int32]*ir.Instruction
	filledPreds    map[*ir.BasicBlock]int // count of predecessors that have finished translating
}

func newBuilder(proto *bytecode.Prototype) *builder {
	return &builder{
		proto:          proto,
		proc:           ir.NewProcedure(proto),
		currentDef:     make(map[*ir.BasicBlock]map[int32]ir.Value),
		sealed:         make(map[*ir.BasicBlock]bool),
		incompletePhis: make(map[*ir.BasicBlock]map[int32]*ir.Instruction),
		filledPreds:    make(map[*ir.BasicBlock]int),
	}
}

// Lift builds an SSA procedure from proto (§4.6). The returned procedure
// has already had unreachable blocks dropped and passed Verify.
func Lift(proto *bytecode.Prototype) (*ir.Procedure, error) {
	b := newBuilder(proto)
	if err := b.buildCFG(); err != nil {
		return nil, err
	}
	if err := b.translateAll(); err != nil {
		return nil, err
	}
	b.proc.RemoveUnreachable()
	if err := b.proc.Verify(); err != nil {
		return nil, err
	}
	return b.proc, nil
}

// translateAll walks every block in layout (ascending bytecode address)
// order, translating its instructions, then seals whatever successor
// blocks just received their last outstanding predecessor.
func (b *builder) translateAll() error {
	entry := b.proc.Entry()
	b.seal(entry) // the entry block has no predecessors to wait on

	for _, blk := range b.cfg.order {
		if err := b.translateBlock(blk); err != nil {
			return err
		}
		for _, succ := range blk.Succs {
			b.filledPreds[succ]++
			if !b.sealed[succ] && b.filledPreds[succ] >= len(succ.Preds) {
				b.seal(succ)
			}
		}
	}
	return nil
}

// seal resolves every incomplete phi recorded for block (§4.6/Braun: once
// every predecessor is known to have finished defining its locals, a
// pending phi can safely collect its operands).
func (b *builder) seal(block *ir.BasicBlock) {
	b.sealed[block] = true
	pending := b.incompletePhis[block]
	delete(b.incompletePhis, block)
	for reg, phi := range pending {
		b.finishPhi(block, reg, phi)
	}
}

func (b *builder) writeVariable(block *ir.BasicBlock, reg int32, v ir.Value) {
	defs := b.currentDef[block]
	if defs == nil {
		defs = make(map[int32]ir.Value)
		b.currentDef[block] = defs
	}
	defs[reg] = v
}

func (b *builder) readVariable(block *ir.BasicBlock, reg int32) ir.Value {
	if defs, ok := b.currentDef[block]; ok {
		if v, ok := defs[reg]; ok {
			return v
		}
	}
	return b.readVariableRecursive(block, reg)
}

func (b *builder) readVariableRecursive(block *ir.BasicBlock, reg int32) ir.Value {
	var v ir.Value
	switch {
	case len(block.Preds) == 0:
		// Procedure entry: an as-yet-undefined local is an argument or
		// bookkeeping slot, read directly off the frame (§4.6: "Arguments
		// use negative register indices").
		load := b.proc.NewInstruction(ir.OpLoadLocal)
		load.Local = reg
		block.Append(load)
		v = load
	case len(block.Preds) == 1 && b.sealed[block]:
		v = b.readVariable(block.Preds[0], reg)
	default:
		phi := b.proc.NewInstruction(ir.OpPhi)
		prependPhi(block, phi)
		b.writeVariable(block, reg, phi)
		if !b.sealed[block] {
			pending := b.incompletePhis[block]
			if pending == nil {
				pending = make(map[int32]*ir.Instruction)
				b.incompletePhis[block] = pending
			}
			pending[reg] = phi
			return phi
		}
		return b.finishPhi(block, reg, phi)
	}
	b.writeVariable(block, reg, v)
	return v
}

func prependPhi(block *ir.BasicBlock, phi *ir.Instruction) {
	if first := block.First(); first != nil {
		block.InsertBefore(first, phi)
		return
	}
	block.Append(phi)
}

// finishPhi collects phi's operands from every predecessor of block and
// attempts Braun's trivial-phi removal, returning whichever value (the
// phi itself, or the single value it collapsed to) callers should use.
func (b *builder) finishPhi(block *ir.BasicBlock, reg int32, phi *ir.Instruction) ir.Value {
	for _, pred := range block.Preds {
		phi.AddOperand(b.readVariable(pred, reg))
	}
	phi.Update()
	result := b.tryRemoveTrivialPhi(phi)
	b.writeVariable(block, reg, result)
	return result
}

// tryRemoveTrivialPhi implements §4.6's "attempt to remove the phi if all
// its operands are identical, replacing all uses with the single value."
// A phi is also trivial if it has no distinct non-self operand at all
// (an unreachable block reached only through itself); such a phi
// collapses to a nil constant.
func (b *builder) tryRemoveTrivialPhi(phi *ir.Instruction) ir.Value {
	var same ir.Value
	for _, op := range phi.Operands {
		if op.Value == ir.Value(phi) || op.Value == same {
			continue
		}
		if same != nil {
			return phi // merges at least two distinct values: keep it
		}
		same = op.Value
	}
	if same == nil {
		same = &ir.ConstNil
	}

	users := b.usersOf(phi)
	b.replaceAllUses(phi, same)
	if phi.Block != nil {
		phi.Block.Remove(phi)
	}

	// Removing phi may have made one of its users trivial in turn
	// (§4.6's cascade, mirroring Braun et al.'s recursive simplification).
	for _, u := range users {
		if u != phi && u.Op == ir.OpPhi {
			b.tryRemoveTrivialPhi(u)
		}
	}
	return same
}

// usersOf scans every instruction in the procedure for operands
// referencing v. The lifter keeps no reverse-use index of its own (§4.5's
// Use is per-operand, not per-def), so a full scan is the simplest correct
// approach for the occasional trivial-phi cascade.
func (b *builder) usersOf(v ir.Value) []*ir.Instruction {
	var out []*ir.Instruction
	seen := make(map[*ir.Instruction]bool)
	for _, blk := range b.proc.Blocks {
		for _, ins := range blk.Instructions() {
			for _, op := range ins.Operands {
				if op.Value == v && !seen[ins] {
					seen[ins] = true
					out = append(out, ins)
				}
			}
		}
	}
	return out
}

func (b *builder) replaceAllUses(old, new ir.Value) {
	for _, blk := range b.proc.Blocks {
		for _, ins := range blk.Instructions() {
			for i := range ins.Operands {
				if ins.Operands[i].Value == old {
					ins.Operands[i].Value = new
				}
			}
		}
	}
	for _, defs := range b.currentDef {
		for reg, v := range defs {
			if v == old {
				defs[reg] = new
			}
		}
	}
}
