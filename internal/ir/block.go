package ir

// BasicBlock is a single-entry, single-exit straight-line sequence of
// instructions ending in exactly one terminator (§4.5). Instructions are
// held in a sentinel-terminated doubly-linked list so split_at and
// insertion before/after an arbitrary instruction are O(1).
type BasicBlock struct {
	ID    int32
	Proc  *Procedure
	Cold  bool
	LoopDepth int

	BCStart uint32
	BCEnd   uint32

	Preds []*BasicBlock
	Succs []*BasicBlock

	sentinel Instruction // head.Next is the first real instruction, tail.Prev the last
}

func newBlock(id int32, proc *Procedure) *BasicBlock {
	b := &BasicBlock{ID: id, Proc: proc}
	b.sentinel.Next = &b.sentinel
	b.sentinel.Prev = &b.sentinel
	return b
}

// First returns the block's first real instruction, or nil if empty.
func (b *BasicBlock) First() *Instruction {
	if b.sentinel.Next == &b.sentinel {
		return nil
	}
	return b.sentinel.Next
}

// Last returns the block's last real instruction (normally its
// terminator), or nil if empty.
func (b *BasicBlock) Last() *Instruction {
	if b.sentinel.Prev == &b.sentinel {
		return nil
	}
	return b.sentinel.Prev
}

// Append adds ins as the new last instruction of b.
func (b *BasicBlock) Append(ins *Instruction) {
	ins.Block = b
	last := b.sentinel.Prev
	last.Next = ins
	ins.Prev = last
	ins.Next = &b.sentinel
	b.sentinel.Prev = ins
}

// InsertBefore splices ins into b immediately before mark.
func (b *BasicBlock) InsertBefore(mark, ins *Instruction) {
	ins.Block = b
	prev := mark.Prev
	prev.Next = ins
	ins.Prev = prev
	ins.Next = mark
	mark.Prev = ins
}

// Remove unlinks ins from its block's instruction list.
func (b *BasicBlock) Remove(ins *Instruction) {
	ins.Prev.Next = ins.Next
	ins.Next.Prev = ins.Prev
	ins.Prev, ins.Next = nil, nil
}

// Instructions returns every real instruction in order, for callers
// (mostly the optimizer and tests) that want a slice instead of walking
// the linked list themselves.
func (b *BasicBlock) Instructions() []*Instruction {
	var out []*Instruction
	for ins := b.sentinel.Next; ins != &b.sentinel; ins = ins.Next {
		out = append(out, ins)
	}
	return out
}

// Phis returns the leading run of phi instructions (§4.5: "phis()
// returns leading phi prefix"). SSA construction always places phis
// first; once the optimizer starts moving code this invariant must be
// preserved by whatever pass does the moving.
func (b *BasicBlock) Phis() []*Instruction {
	var out []*Instruction
	for ins := b.sentinel.Next; ins != &b.sentinel && ins.Op == OpPhi; ins = ins.Next {
		out = append(out, ins)
	}
	return out
}

// Terminator returns the block's terminating instruction, or nil if the
// block is (transiently, mid-construction) unterminated.
func (b *BasicBlock) Terminator() *Instruction {
	last := b.Last()
	if last != nil && last.Op.IsTerminator() {
		return last
	}
	return nil
}

// split_at moves every instruction after ins into a newly created block,
// wires a jmp from b to it, and returns the new block (§4.5). ins itself
// (and everything before it) stays in b.
func (b *BasicBlock) SplitAt(ins *Instruction) *BasicBlock {
	tail := newBlock(b.Proc.nextBlockID(), b.Proc)
	tail.BCStart = ins.BCPos
	tail.BCEnd = b.BCEnd

	moved := ins.Next
	for moved != &b.sentinel {
		next := moved.Next
		b.Remove(moved)
		tail.Append(moved)
		moved = next
	}

	b.Proc.Blocks = append(b.Proc.Blocks, tail)
	b.retarget(tail)

	jmp := &Instruction{Op: OpJmp, Result: None, Targets: []*BasicBlock{tail}}
	b.Append(jmp)

	for _, s := range b.Succs {
		replacePred(s, b, tail)
	}
	tail.Succs = b.Succs
	b.Succs = []*BasicBlock{tail}
	tail.Preds = []*BasicBlock{b}
	return tail
}

// retarget fixes up phi operands in b's old successors so the move of
// control flow (b -> succ becomes tail -> succ) doesn't change which
// value a phi sees for that edge; SplitAt's caller is expected to have
// preserved per-predecessor phi operand order, so this is a no-op unless
// a future pass reorders predecessors independently of Preds/Succs.
func (b *BasicBlock) retarget(tail *BasicBlock) {}

func replacePred(succ, old, new *BasicBlock) {
	for i, p := range succ.Preds {
		if p == old {
			succ.Preds[i] = new
			return
		}
	}
}

// Dom reports whether b strictly dominates other: every path from the
// procedure's entry block to other passes through b. Computed by DFS
// over predecessors from other back toward the entry, failing fast if a
// path reaches the entry without passing through b (§4.5 permits cheap
// recomputation or memoization; this is the former).
func (b *BasicBlock) Dom(other *BasicBlock) bool {
	if b == other {
		return false
	}
	entry := b.Proc.Blocks[0]
	visited := make(map[*BasicBlock]bool)
	var walk func(*BasicBlock) bool
	walk = func(cur *BasicBlock) bool {
		if cur == b {
			return true
		}
		if cur == entry {
			return false
		}
		if visited[cur] {
			return true // already proven reachable through b on another path
		}
		visited[cur] = true
		for _, p := range cur.Preds {
			if !walk(p) {
				return false
			}
		}
		return true
	}
	for _, p := range other.Preds {
		if !walk(p) {
			return false
		}
	}
	return len(other.Preds) > 0 || other == b
}
