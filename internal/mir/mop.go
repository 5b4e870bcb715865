package mir

import "fmt"

// MMem is a memory operand: base (+ optional scaled index) plus a
// signed displacement, per mir.hpp's mmem. VRegCPool as base selects
// rip-relative access into the procedure's constant pool.
type MMem struct {
	Base  MReg
	Index MReg
	Scale int8
	Disp  int32
}

func (m MMem) String() string {
	s := "[" + m.Base.String()
	if m.Scale != 0 {
		s = fmt.Sprintf("[%s+%s*%d", m.Base, m.Index, m.Scale)
	}
	switch {
	case m.Disp > 0:
		s += fmt.Sprintf("+0x%x", m.Disp)
	case m.Disp < 0:
		s += fmt.Sprintf("-0x%x", -m.Disp)
	}
	return s + "]"
}

// OpKind discriminates MOp's four shapes, replacing mir.hpp's
// scale-sentinel union trick (scale <= -3/-2/-1/>=0 for null/const/reg/
// mem) with an explicit tag, which is the idiomatic Go rendition of the
// same "one of four payloads" shape internal/ir.Value's type-switch
// already uses.
type OpKind uint8

const (
	OpNull OpKind = iota
	OpImm
	OpReg
	OpMem
)

// MOp is a machine operand: an immediate, a register, a memory
// reference, or null (no operand in this argument slot).
type MOp struct {
	Kind OpKind
	Imm  int64
	Reg  MReg
	Mem  MMem
}

func Imm(v int64) MOp { return MOp{Kind: OpImm, Imm: v} }
func Reg(r MReg) MOp  { return MOp{Kind: OpReg, Reg: r} }
func Mem(m MMem) MOp  { return MOp{Kind: OpMem, Mem: m} }

func (o MOp) IsNull() bool { return o.Kind == OpNull }

func (o MOp) String() string {
	switch o.Kind {
	case OpReg:
		return o.Reg.String()
	case OpMem:
		return o.Mem.String()
	case OpImm:
		return fmt.Sprintf("0x%x", uint64(o.Imm))
	default:
		return "null"
	}
}
