package bytecode

// Reg is a register operand. Non-negative values index the current
// frame's register window; negative values (below the frame's zero slot)
// index the fixed call-frame bookkeeping slots and, beyond those, the
// caller-supplied arguments (§4.4: "a call pushes return-PC, caller base,
// self, and target into a fixed-size frame ... plus arguments beneath").
type Reg = int32

// Frame slot layout. Registers FrameSize and above are the callee's own
// locals; the four slots below zero are bookkeeping, and anything further
// negative indexes an argument (argument i lives at FrameArg0-i).
const (
	FrameRet    Reg = -1 // saved return program counter
	FrameCaller Reg = -2 // caller's frame base
	FrameSelf   Reg = -3 // `self` receiver, if any
	FrameTarget Reg = -4 // the function object being invoked
	FrameArg0   Reg = -5 // first argument; argument i is at FrameArg0-i

	// FrameSize is the number of fixed bookkeeping slots every call
	// frame reserves ahead of its locals (§4.4's "FRAME_SIZE").
	FrameSize = 4
)

// Imm is a 32-bit immediate operand (array/table size, CCAT span length,
// VACHK threshold, CTY type tag, ...).
type Imm = int32

// Rel is a signed, instruction-relative jump offset.
type Rel = int32

// Insn is one bytecode instruction: a typed opcode plus three 32-bit
// operand slots. Operand meaning is opcode-specific; see Op's doc comments.
// The B:C pair doubles as a single 64-bit extended immediate ("xmm"),
// accessed via XMM/SetXMM, for opcodes whose payload doesn't fit 32 bits
// (KIMM's bit-cast double, VACHK's thrown constant index, STRIV/FDUP's
// wide indices).
type Insn struct {
	Op      Op
	A, B, C int32
}

// XMM reinterprets the B:C operand pair as a single 64-bit value.
func (i Insn) XMM() uint64 {
	return uint64(uint32(i.B)) | uint64(uint32(i.C))<<32
}

// SetXMM packs a 64-bit value into the B:C operand pair.
func (i *Insn) SetXMM(v uint64) {
	i.B = int32(uint32(v))
	i.C = int32(uint32(v >> 32))
}

// New builds an instruction with plain 32-bit operands.
func New(op Op, a, b, c int32) Insn { return Insn{Op: op, A: a, B: b, C: c} }

// NewXMM builds an instruction whose B:C pair carries a 64-bit immediate.
func NewXMM(op Op, a int32, xmm uint64) Insn {
	i := Insn{Op: op, A: a}
	i.SetXMM(xmm)
	return i
}
