package lift

import "golang.org/x/xerrors"

// These are internal Go-level errors (§10.3): a malformed bytecode
// prototype discovered while lifting, never a language-level exception.

func errOperandOutOfRange(pc int, reg int32) error {
	return xerrors.Errorf("lift: instruction %d references out-of-range register %d", pc, reg)
}

func errUnknownOpcode(pc int, op string) error {
	return xerrors.Errorf("lift: instruction %d has unrecognized opcode %s", pc, op)
}
