package bytecode

import "github.com/li-script/lightning-sub000/internal/value"

// LineEntry is one record of a compressed line table: the bytecode
// position a new source line starts at, and the delta from the previous
// entry's line number (§3.7: "a compressed line table (pairs
// (bytecode_position, line_delta))").
type LineEntry struct {
	Position  uint32
	LineDelta int32
}

// Prototype holds everything shared by every closure over the same
// function body (§3.7): bytecode, constants, and static metadata. A
// Function pairs one Prototype with its own upvalue slots.
type Prototype struct {
	Code         []Insn
	Constants    []value.Value
	NumLocals    int
	NumUpvalues  int
	NumArguments int // named args; VACNT/VAGET treat the rest as varargs (all of them when 0); CALL does not check the count
	SourceChunk  string
	SourceLine   int
	Lines        []LineEntry
}

// LineAt resolves a bytecode position to a source line by walking the
// compressed table and accumulating deltas, mirroring how a debugger would
// decode it one entry at a time (there is no random-access index: the
// table is kept small by only recording line changes).
func (p *Prototype) LineAt(pos uint32) int {
	line := p.SourceLine
	for _, e := range p.Lines {
		if e.Position > pos {
			break
		}
		line += int(e.LineDelta)
	}
	return line
}
