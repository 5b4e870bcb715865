package ir

import "github.com/li-script/lightning-sub000/internal/bytecode"

// Op identifies one IR instruction's operation, from the opcode list of
// §4.5.
type Op uint8

const (
	OpInvalid Op = iota

	OpLoadLocal
	OpStoreLocal

	OpArrayNew
	OpTableNew
	OpFieldGet
	OpFieldSet

	OpUnop
	OpBinop
	OpBoolAnd
	OpBoolOr
	OpBoolXor

	OpGCTick

	OpUvalGet
	OpUvalSet

	OpAssumeCast
	OpCoerceBool
	OpMove
	OpEraseType

	OpTestType
	OpCompare
	OpSelect
	OpPhi

	OpSetException
	OpGetException
	OpSetHandler // installs an exception handler target, mirrors bytecode SETEH

	OpCCall // native runtime-helper call (internal/rtcall)
	OpVCall // virtual call through a function/closure value

	OpJmp
	OpJcc
	OpIterNext // table iteration step; a block terminator with (continue, exit) targets
	OpRet
	OpUnreachable

	opCount
)

var opNames = [...]string{
	"invalid",
	"load_local", "store_local",
	"array_new", "table_new", "field_get", "field_set",
	"unop", "binop", "bool_and", "bool_or", "bool_xor",
	"gc_tick",
	"uval_get", "uval_set",
	"assume_cast", "coerce_bool", "move", "erase_type",
	"test_type", "compare", "select", "phi",
	"set_exception", "get_exception", "set_handler",
	"ccall", "vcall",
	"jmp", "jcc", "iter_next", "ret", "unreachable",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "op(?)"
}

// IsBlockTerminator reports whether o ends a basic block (§4.5: "an
// opcode is a block terminator iff it is jmp or jcc"). iter_next also
// terminates its block, since table iteration branches to either a
// continue or an exit block.
func (o Op) IsBlockTerminator() bool { return o == OpJmp || o == OpJcc || o == OpIterNext }

// IsProcTerminator reports whether o ends a procedure's control flow
// entirely (no successor block follows).
func (o Op) IsProcTerminator() bool { return o == OpRet || o == OpUnreachable }

// IsTerminator reports whether o must be the last instruction of its
// block, either because it branches or because nothing can follow it.
func (o Op) IsTerminator() bool { return o.IsBlockTerminator() || o.IsProcTerminator() }

// AllocOp reports whether o allocates on the GC heap and therefore needs
// a gc_tick immediately before it (§4.6: "GC-allocating opcodes ...
// emit a gc_tick immediately before the allocation").
func AllocOp(op bytecode.Op) bool {
	switch op {
	case bytecode.ANEW, bytecode.TNEW, bytecode.FDUP, bytecode.CCAT:
		return true
	default:
		return false
	}
}
