// Package testprog implements §10.4's golden end-to-end harness: a
// minimal textual assembler for bytecode.Prototype, used by tests that
// read a literal program from a committed txtar archive, drive it through
// the pipeline (vm.Run, or lift+opt), and assert on the result in Go.
// The syntax only covers the opcode surface the committed scenarios
// need; it is not a general-purpose disassembler round-trip.
package testprog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/object"
	"github.com/li-script/lightning-sub000/internal/value"
)

// operandKind classifies one operand slot of an assembly mnemonic.
type operandKind int

const (
	opReg      operandKind = iota // plain register index, "r3"
	opImm                         // bare decimal immediate
	opLabelRel                    // "@name", resolved to a JMP/JS/JNS-style relative offset
	opLabelAbs                    // "@name", resolved to an absolute instruction index (SETEH)
)

// form describes one mnemonic's operand shape, in A/B/C order. Pseudo
// mnemonics (KNUM, KSTR) are handled separately since their encoding
// doesn't fit the plain three-register/immediate mold.
type form struct {
	op       bytecode.Op
	operands []operandKind
}

var forms = map[string]form{
	"NOP":  {bytecode.NOP, nil},
	"MOV":  {bytecode.MOV, []operandKind{opReg, opReg}},
	"LNOT": {bytecode.LNOT, []operandKind{opReg, opReg}},
	"ANEG": {bytecode.ANEG, []operandKind{opReg, opReg}},

	"AADD": {bytecode.AADD, []operandKind{opReg, opReg, opReg}},
	"ASUB": {bytecode.ASUB, []operandKind{opReg, opReg, opReg}},
	"AMUL": {bytecode.AMUL, []operandKind{opReg, opReg, opReg}},
	"ADIV": {bytecode.ADIV, []operandKind{opReg, opReg, opReg}},
	"AMOD": {bytecode.AMOD, []operandKind{opReg, opReg, opReg}},
	"APOW": {bytecode.APOW, []operandKind{opReg, opReg, opReg}},

	"CEQ": {bytecode.CEQ, []operandKind{opReg, opReg, opReg}},
	"CNE": {bytecode.CNE, []operandKind{opReg, opReg, opReg}},
	"CLT": {bytecode.CLT, []operandKind{opReg, opReg, opReg}},
	"CGE": {bytecode.CGE, []operandKind{opReg, opReg, opReg}},
	"CGT": {bytecode.CGT, []operandKind{opReg, opReg, opReg}},
	"CLE": {bytecode.CLE, []operandKind{opReg, opReg, opReg}},

	"CCAT": {bytecode.CCAT, []operandKind{opReg, opImm}},

	"TNEW": {bytecode.TNEW, []operandKind{opReg, opImm}},
	"ANEW": {bytecode.ANEW, []operandKind{opReg, opImm}},

	"TGET":  {bytecode.TGET, []operandKind{opReg, opReg, opReg}},
	"TSET":  {bytecode.TSET, []operandKind{opReg, opReg, opReg}},
	"TGETR": {bytecode.TGETR, []operandKind{opReg, opReg, opReg}},
	"TSETR": {bytecode.TSETR, []operandKind{opReg, opReg, opReg}},

	"TOSTR":  {bytecode.TOSTR, []operandKind{opReg, opReg}},
	"TONUM":  {bytecode.TONUM, []operandKind{opReg, opReg}},
	"TOINT":  {bytecode.TOINT, []operandKind{opReg, opReg}},
	"TOBOOL": {bytecode.TOBOOL, []operandKind{opReg, opReg}},

	"RET": {bytecode.RET, []operandKind{opReg}},
	"JMP": {bytecode.JMP, []operandKind{opLabelRel}},
	"JS":  {bytecode.JS, []operandKind{opLabelRel, opReg}},
	"JNS": {bytecode.JNS, []operandKind{opLabelRel, opReg}},

	"SETEH": {bytecode.SETEH, []operandKind{opLabelAbs}},
}

// Assembler turns assembly source into a bytecode.Prototype, interning
// any KSTR string literals through strings (nil is fine for programs
// that carry no string constants).
type Assembler struct {
	strings *object.Strings
}

// New returns an Assembler that interns KSTR literals through strings.
func New(strings *object.Strings) *Assembler {
	return &Assembler{strings: strings}
}

type rawInsn struct {
	lineno int
	mnem   string
	args   []string
}

// Assemble parses src into a Prototype. Directive lines set Prototype
// fields:
//
//	.locals N   NumLocals
//	.args N     NumArguments
//
// A line ending in ':' with no other content defines a label at the
// index of the next real instruction. Everything after a ';' is a
// comment. Instruction operands are comma-separated; registers are
// written "rN", plain integers are bare decimal literals, and jump/
// handler targets are "@label".
func (a *Assembler) Assemble(src string) (*bytecode.Prototype, error) {
	proto := &bytecode.Prototype{}
	labels := map[string]int{}
	var raws []rawInsn

	for lineno, line := range strings.Split(src, "\n") {
		line = stripComment(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if err := a.directive(proto, line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineno+1, err)
			}
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			name := strings.TrimSuffix(line, ":")
			labels[name] = len(raws)
			continue
		}
		mnem, args, err := splitInsn(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno+1, err)
		}
		raws = append(raws, rawInsn{lineno: lineno + 1, mnem: mnem, args: args})
	}

	proto.Code = make([]bytecode.Insn, len(raws))
	for i, r := range raws {
		insn, err := a.encode(i, r, labels)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineno, err)
		}
		proto.Code[i] = insn
	}
	return proto, nil
}

func (a *Assembler) directive(proto *bytecode.Prototype, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return fmt.Errorf("malformed directive %q", line)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("directive %q: %w", line, err)
	}
	switch fields[0] {
	case ".locals":
		proto.NumLocals = n
	case ".args":
		proto.NumArguments = n
	default:
		return fmt.Errorf("unknown directive %q", fields[0])
	}
	return nil
}

func splitInsn(line string) (mnem string, args []string, err error) {
	fields := strings.SplitN(line, " ", 2)
	mnem = strings.ToUpper(fields[0])
	if len(fields) == 1 {
		return mnem, nil, nil
	}
	for _, part := range strings.Split(fields[1], ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			args = append(args, part)
		}
	}
	return mnem, args, nil
}

func (a *Assembler) encode(idx int, r rawInsn, labels map[string]int) (bytecode.Insn, error) {
	switch r.mnem {
	case "KNUM":
		return a.encodeKnum(r)
	case "KSTR":
		return a.encodeKstr(r)
	}

	f, ok := forms[r.mnem]
	if !ok {
		return bytecode.Insn{}, fmt.Errorf("unknown mnemonic %q", r.mnem)
	}
	if len(r.args) != len(f.operands) {
		return bytecode.Insn{}, fmt.Errorf("%s wants %d operand(s), got %d", r.mnem, len(f.operands), len(r.args))
	}
	var out [3]int32
	for i, kind := range f.operands {
		v, err := resolveOperand(idx, kind, r.args[i], labels)
		if err != nil {
			return bytecode.Insn{}, err
		}
		out[i] = v
	}
	return bytecode.New(f.op, out[0], out[1], out[2]), nil
}

func resolveOperand(idx int, kind operandKind, tok string, labels map[string]int) (int32, error) {
	switch kind {
	case opReg:
		return parseReg(tok)
	case opImm:
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0, fmt.Errorf("expected integer operand, got %q", tok)
		}
		return int32(n), nil
	case opLabelRel, opLabelAbs:
		name := strings.TrimPrefix(tok, "@")
		if name == tok {
			return 0, fmt.Errorf("expected label operand (\"@name\"), got %q", tok)
		}
		target, ok := labels[name]
		if !ok {
			return 0, fmt.Errorf("undefined label %q", name)
		}
		if kind == opLabelAbs {
			return int32(target), nil
		}
		return int32(target - idx), nil
	default:
		return 0, fmt.Errorf("internal: unhandled operand kind")
	}
}

func parseReg(tok string) (int32, error) {
	if !strings.HasPrefix(tok, "r") {
		return 0, fmt.Errorf("expected register operand (\"rN\"), got %q", tok)
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil {
		return 0, fmt.Errorf("malformed register operand %q", tok)
	}
	return int32(n), nil
}

func (a *Assembler) encodeKnum(r rawInsn) (bytecode.Insn, error) {
	if len(r.args) != 2 {
		return bytecode.Insn{}, fmt.Errorf("KNUM wants 2 operands, got %d", len(r.args))
	}
	dst, err := parseReg(r.args[0])
	if err != nil {
		return bytecode.Insn{}, err
	}
	f, err := strconv.ParseFloat(r.args[1], 64)
	if err != nil {
		return bytecode.Insn{}, fmt.Errorf("KNUM: %w", err)
	}
	return bytecode.NewXMM(bytecode.KIMM, dst, value.Number(f).Bits()), nil
}

func (a *Assembler) encodeKstr(r rawInsn) (bytecode.Insn, error) {
	if len(r.args) != 2 {
		return bytecode.Insn{}, fmt.Errorf("KSTR wants 2 operands, got %d", len(r.args))
	}
	if a.strings == nil {
		return bytecode.Insn{}, fmt.Errorf("KSTR used but Assembler has no *object.Strings")
	}
	dst, err := parseReg(r.args[0])
	if err != nil {
		return bytecode.Insn{}, err
	}
	lit, err := strconv.Unquote(r.args[1])
	if err != nil {
		return bytecode.Insn{}, fmt.Errorf("KSTR: %w", err)
	}
	str, ok := a.strings.Intern([]byte(lit))
	if !ok {
		return bytecode.Insn{}, fmt.Errorf("KSTR: failed to intern %q", lit)
	}
	return bytecode.NewXMM(bytecode.KIMM, dst, str.Value().Bits()), nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}
