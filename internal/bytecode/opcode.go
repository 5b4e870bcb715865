// Package bytecode defines the register-based instruction format and
// opcode set of §4.4: a fixed 4-byte-opcode + 3-typed-operand encoding,
// with an extended 64-bit immediate overlaid on the B:C operand pair.
package bytecode

// Op identifies one instruction. The ordering matches the original
// LIGHTNING_ENUM_BC macro grouping (misc, unary, binary, helpers,
// constants, upvalues, structure, vararg, table/array, closures, stack,
// coercion, control flow) purely for readability; nothing depends on the
// numeric values beyond them being distinct and stable within a build.
type Op uint8

const (
	UD   Op = iota // undefined
	NOP            // no-op

	LNOT // A = !B
	ANEG // A = -B
	MOV  // A = B

	AADD // A = B + C
	ASUB // A = B - C
	AMUL // A = B * C
	ADIV // A = B / C
	AMOD // A = B % C
	APOW // A = B ^ C
	LAND // A = B && C
	LOR  // A = B || C
	NCS  // A = B == nil ? C : B
	CTY  // A = type(B) == C
	CTYX // A = C is base of B
	CEQ  // A = B == C
	CNE  // A = B != C
	CLT  // A = B < C
	CGE  // A = B >= C
	CGT  // A = B > C
	CLE  // A = B <= C

	CCAT  // A = concat(A..A+B)
	SETEH // exception handler = A (rel)
	SETEX // last exception = A
	GETEX // A = last exception

	KIMM // A = bitcast(xmm)

	UGET // A = uval[B]
	USET // uval[A] = B

	STRIV // A = trivial-init{type=xmm}
	SGET  // A = C[B] (object field get)
	SSET  // C[A] = B (object field set)

	VACNT // A = num varargs
	VACHK // num args < imm ? throw xmm
	VAGET // A = args[B] || nil

	ANEW  // A = array{size=imm}
	TNEW  // A = table{reserved=imm}
	TGET  // A = C[B]
	TSET  // C[A] = B
	TGETR // A = C[B], raw
	TSETR // C[A] = B, raw

	FDUP // A = duplicate(kval[B]), wiring C.. as upvalues

	PUSHR // push(A)
	PUSHI // push(xmm)

	TONUM  // A = tonumber(B)
	TOINT  // A = toint(B)
	TOSTR  // A = tostring(B)
	TOBOOL // A = bool(B)

	TRGET // A = C.trait[B]
	TRSET // C.trait[A] = B

	CALL // A = call(A, B args)
	RET  // return A
	JMP  // jmp rel A
	JS   // jmp A if B
	JNS  // jmp A if !B
	ITER // B,B+1 = C[iter++].kv; jmp A if end

	opCount
)

var names = [...]string{
	"UD", "NOP", "LNOT", "ANEG", "MOV",
	"AADD", "ASUB", "AMUL", "ADIV", "AMOD", "APOW", "LAND", "LOR", "NCS", "CTY", "CTYX",
	"CEQ", "CNE", "CLT", "CGE", "CGT", "CLE",
	"CCAT", "SETEH", "SETEX", "GETEX",
	"KIMM",
	"UGET", "USET",
	"STRIV", "SGET", "SSET",
	"VACNT", "VACHK", "VAGET",
	"ANEW", "TNEW", "TGET", "TSET", "TGETR", "TSETR",
	"FDUP",
	"PUSHR", "PUSHI",
	"TONUM", "TOINT", "TOSTR", "TOBOOL",
	"TRGET", "TRSET",
	"CALL", "RET", "JMP", "JS", "JNS", "ITER",
}

func (o Op) String() string {
	if int(o) < len(names) {
		return names[o]
	}
	return "OP(?)"
}

// IsValid reports whether o is a recognized, non-UD opcode.
func (o Op) IsValid() bool { return o > UD && o < opCount }
