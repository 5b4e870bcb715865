package ir

import "github.com/li-script/lightning-sub000/internal/bytecode"

// Procedure is the lifted SSA form of one bytecode.Prototype (§4.5): an
// ordered list of basic blocks plus the counters the lifter and
// optimizer use to mint fresh SSA names and block ids.
type Procedure struct {
	Source      *bytecode.Prototype
	Blocks      []*BasicBlock
	Topological bool
	MaxStack    int32

	nextReg   int32
	nextBlock int32
}

// NewProcedure creates an empty procedure over source with one entry
// block already allocated.
func NewProcedure(source *bytecode.Prototype) *Procedure {
	p := &Procedure{Source: source}
	entry := newBlock(p.nextBlockID(), p)
	p.Blocks = append(p.Blocks, entry)
	return p
}

// Entry returns the procedure's entry block.
func (p *Procedure) Entry() *BasicBlock { return p.Blocks[0] }

// NewBlock allocates and registers a fresh, empty block.
func (p *Procedure) NewBlock() *BasicBlock {
	b := newBlock(p.nextBlockID(), p)
	p.Blocks = append(p.Blocks, b)
	return b
}

func (p *Procedure) nextBlockID() int32 {
	id := p.nextBlock
	p.nextBlock++
	return id
}

// NewInstruction allocates ins's SSA name, runs its type/flag update,
// and returns it; it is the caller's job to insert it into a block.
func (p *Procedure) NewInstruction(op Op) *Instruction {
	ins := &Instruction{Op: op, Name: p.nextReg}
	p.nextReg++
	ins.update()
	return ins
}

// RemoveUnreachable drops every block not reachable from the entry by a
// forward walk over Succs, per §4.6 ("Blocks that the lifter emitted but
// which end up unreachable after topological sort are deleted").
func (p *Procedure) RemoveUnreachable() {
	reachable := map[*BasicBlock]bool{p.Entry(): true}
	queue := []*BasicBlock{p.Entry()}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, s := range b.Succs {
			if !reachable[s] {
				reachable[s] = true
				queue = append(queue, s)
			}
		}
	}
	kept := p.Blocks[:0]
	for _, b := range p.Blocks {
		if reachable[b] {
			kept = append(kept, b)
			continue
		}
		for _, s := range b.Succs {
			removePred(s, b)
		}
	}
	p.Blocks = kept
}

func removePred(b, pred *BasicBlock) {
	phis := b.Phis()
	n := len(b.Preds)
	out := b.Preds[:0]
	for i, p := range b.Preds {
		if p != pred {
			for _, phi := range phis {
				if len(phi.Operands) == n {
					phi.Operands[len(out)] = phi.Operands[i]
				}
			}
			out = append(out, p)
		}
	}
	for _, phi := range phis {
		if len(phi.Operands) == n {
			phi.Operands = phi.Operands[:len(out)]
		}
	}
	b.Preds = out
}

// Verify checks the invariants of §4.5: every block ends with exactly
// one terminator, jmp/jcc targets are live blocks of this procedure, and
// phi operand count matches predecessor count. It returns the first
// violation found, or nil.
func (p *Procedure) Verify() error {
	live := make(map[*BasicBlock]bool, len(p.Blocks))
	for _, b := range p.Blocks {
		live[b] = true
	}
	for _, b := range p.Blocks {
		if err := verifyBlock(b, live); err != nil {
			return err
		}
	}
	return nil
}

func verifyBlock(b *BasicBlock, live map[*BasicBlock]bool) error {
	term := b.Terminator()
	if term == nil {
		return errUnterminatedBlock(b)
	}
	for _, t := range term.Targets {
		if !live[t] {
			return errDanglingTarget(b, t)
		}
	}
	for _, ins := range b.Phis() {
		if len(ins.Operands) != len(b.Preds) {
			return errPhiArity(b, ins, len(b.Preds))
		}
	}
	return nil
}
