package mir

import "strings"

// VOp is the target-independent instruction set §4.8 names explicitly:
// moves, typed loads/stores, flag materialization, calls, and control
// flow. Anything target-specific (the arithmetic mnemonic a binop lowers
// to, the bit trick test_type expands into) is a physical op instead —
// an opaque string tag the spec says this package never needs to
// interpret, only carry.
type VOp uint8

const (
	VNull VOp = iota
	VMovF       // fpreg = fpreg/gpreg/const
	VMovI       // gpreg = fpreg/gpreg/const
	VLoadF64    // fpreg = fp64[mem]
	VStoreF64   // fp64[mem] = fpreg
	VLoadI64    // gpreg = i64[mem]
	VStoreI64   // i64[mem] = gpreg
	VSetCC      // reg = flag
	VCall       // out = call target, args...
	VJS         // conditional jump, taken/not-taken targets
	VJNS        // inverse of js
	VJmp
	VRet
	VUnreachable
)

var vopNames = [...]string{
	"null", "movf", "movi", "loadf64", "storef64", "loadi64", "storei64",
	"setcc", "call", "js", "jns", "jmp", "ret", "unreachable",
}

func (v VOp) String() string {
	if int(v) < len(vopNames) {
		return vopNames[v]
	}
	return "?"
}

// maxArgs bounds an instruction's operand count, mirroring mir.hpp's
// fixed arg[4] array; vcall's spilled arguments live on the VM
// evaluation stack rather than as MInsn operands, so four is enough for
// every virtual and physical op this backend emits.
const maxArgs = 4

// MInsn is either a virtual op (one of the VOp constants above) or a
// physical mnemonic opaque to this package (a target backend's string
// tag, e.g. "addsd"); exactly one of the two is meaningful per
// instruction, selected by IsVirtual.
type MInsn struct {
	IsVirtual bool
	VOp       VOp
	Phys      string

	Args [maxArgs]MOp
	Out  MReg

	// Targets holds jmp/js/jns's block targets (one for jmp, two
	// [taken, not-taken] for js/jns), kept out of Args since a block
	// pointer isn't an MOp's shape.
	Targets []*MBlock

	// Callee names a call's target: an rtcall helper name for a ccall,
	// or empty for a vcall, whose callee value is the first operand
	// spilled to the call slots. Args[0] holds the argument count.
	Callee string

	// NoSpill marks an instruction internal/regalloc's spill-rewrite
	// inserted (a reload before a use, a store after a def); such
	// instructions must never themselves be chosen for a further spill,
	// per §4.9 step 5.
	NoSpill bool
}

func VirtualInsn(op VOp, out MReg, args ...MOp) *MInsn {
	ins := &MInsn{IsVirtual: true, VOp: op, Out: out}
	copy(ins.Args[:], args)
	return ins
}

func PhysicalInsn(mnemonic string, out MReg, args ...MOp) *MInsn {
	ins := &MInsn{Phys: mnemonic, Out: out}
	copy(ins.Args[:], args)
	return ins
}

// NumArgs reports how many of Args are populated, mirroring minsn's
// num_args: the first null slot ends the count.
func (ins *MInsn) NumArgs() int {
	for i, a := range ins.Args {
		if a.IsNull() {
			return i
		}
	}
	return maxArgs
}

// ForEachReg visits every register Args/Out references, tagging each
// read (true) or written (the single Out, false); internal/regalloc's
// liveness pass and interference builder both drive off this.
func (ins *MInsn) ForEachReg(fn func(r MReg, isRead bool)) {
	for _, a := range ins.Args {
		if a.IsNull() {
			break
		}
		switch a.Kind {
		case OpReg:
			fn(a.Reg, true)
		case OpMem:
			if !a.Mem.Base.IsNull() {
				fn(a.Mem.Base, true)
			}
			if a.Mem.Scale != 0 {
				fn(a.Mem.Index, true)
			}
		}
	}
	if !ins.Out.IsNull() {
		fn(ins.Out, false)
	}
}

func (ins *MInsn) String() string {
	var b strings.Builder
	if !ins.Out.IsNull() {
		b.WriteString(ins.Out.String())
		b.WriteString(" = ")
	}
	if ins.IsVirtual {
		b.WriteString(ins.VOp.String())
	} else {
		b.WriteString(ins.Phys)
	}
	for _, a := range ins.Args {
		if a.IsNull() {
			break
		}
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	if ins.Callee != "" {
		b.WriteString(" <" + ins.Callee + ">")
	}
	return b.String()
}
