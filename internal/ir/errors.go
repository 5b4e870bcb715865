package ir

import "golang.org/x/xerrors"

// These are internal Go-level errors for compiler-invariant violations
// (§10.3 of SPEC_FULL.md): a malformed procedure, never a language-level
// value.Value exception. xerrors.Errorf attaches a frame so a failing
// Verify call points at where the invariant actually broke.

func errUnterminatedBlock(b *BasicBlock) error {
	return xerrors.Errorf("ir: block %d has no terminator", b.ID)
}

func errDanglingTarget(b *BasicBlock, target *BasicBlock) error {
	return xerrors.Errorf("ir: block %d branches to block %d, which is not part of this procedure", b.ID, target.ID)
}

func errPhiArity(b *BasicBlock, ins *Instruction, predCount int) error {
	return xerrors.Errorf("ir: block %d phi v%d has %d operands, want %d (predecessor count)", b.ID, ins.Name, len(ins.Operands), predCount)
}
