package ir

import (
	"github.com/li-script/lightning-sub000/internal/rtcall"
	"github.com/li-script/lightning-sub000/internal/value"
)

// Constant carries a tagged union over every representable immediate
// (§4.5). Constants do not belong to a block; they are interned per
// Procedure and referenced by Use like any other value.
type Constant struct {
	Type Type

	I      int64
	F      float64
	Bool   bool
	GC     value.Value   // a heap pointer, for a string/array/table/... literal
	Native string        // rtcall helper name, for ccall targets
	Block  *BasicBlock   // for jmp/jcc targets
	VMOp   interface{}   // a bytecode.Op, for parametrizing binop/compare
	VMType value.Kind    // a VM type tag, for test_type
	IRType Type          // an IR data type, for assume_cast/erase_type
}

// ConstNil and ConstExc are the canonical nil/exception literals; every
// lifted NCS/SETEX/etc. that needs one of these shares these two
// instances rather than allocating fresh Constants.
var (
	ConstNil = Constant{Type: Nil}
	ConstExc = Constant{Type: Exc}
)

// Use is a single SSA read of a Value, distinct from a plain Go pointer
// so that use-count equals the number of SSA readers (§4.5: "Each use is
// distinct from a plain reference so that use-count equals number of SSA
// readers, enabling trivial dead-code elimination").
type Use struct {
	Value Value
	User  *Instruction
}

// Value is anything an instruction's operand can reference: either
// another Instruction's SSA result, or a Constant.
type Value interface {
	valType() Type
	isValue()
}

func (c *Constant) valType() Type { return c.Type }
func (c *Constant) isValue()      {}

// Instruction is one SSA value-producing (or side-effecting) operation
// (§4.5): it lives in a doubly-linked, sentinel-terminated list inside
// its parent block, carries an SSA name, the bytecode position it was
// lifted from, an operand list of Uses, and flags describing how the
// optimizer may treat it.
type Instruction struct {
	Op       Op
	Result   Type
	Block    *BasicBlock
	Prev     *Instruction
	Next     *Instruction
	Name     int32 // SSA number, assigned by the lifter/procedure
	BCPos    uint32

	Operands []Use

	IsPure        bool
	IsConst       bool
	HasSideEffect bool
	IsVolatile    bool

	// Payload fields used by a subset of opcodes; left zero elsewhere.
	Local   int32    // load_local/store_local/uval_get/uval_set register index
	VMOp    uint8    // binop/compare's bytecode.Op, boxed small so Constant stays generic
	Targets []*BasicBlock // jmp has one, jcc has two (true, false)
	Callee  string   // ccall's rtcall helper name

	// Checked marks a field_set whose index was already proven in range
	// by a dominating test_type+length guard (type_split_cfg's success
	// edge). mir lowering reads this to choose rtcall.FieldSetRaw's
	// assumeChecked argument (§12 open question).
	Checked bool
}

func (ins *Instruction) valType() Type { return ins.Result }
func (ins *Instruction) isValue()      {}

// AddOperand appends v as a new use of this instruction. The Use records
// only the reader (User); nothing is recorded on v itself, so finding the
// users of a value means scanning operand lists.
func (ins *Instruction) AddOperand(v Value) {
	ins.Operands = append(ins.Operands, Use{Value: v, User: ins})
}

// Update recomputes Result (and the purity/side-effect/const flags) from
// the current operand list. Callers append operands first (AddOperand)
// and call Update once the operand list is final — NewInstruction runs
// it once on an empty operand list as a convenience default, but any
// opcode whose type depends on operands needs a second call.
func (ins *Instruction) Update() { ins.update() }

// update recomputes Result (and, where meaningful, the purity/constness
// flags) from the current operand types. Each concrete opcode's rule
// lives in a small switch here rather than per-opcode methods, since the
// rules are short and the dispatch is the part worth keeping in one
// place for the optimizer to reason about uniformly.
func (ins *Instruction) update() {
	switch ins.Op {
	case OpLoadLocal, OpUvalGet, OpGetException:
		ins.Result = Any
	case OpStoreLocal, OpUvalSet, OpSetException, OpSetHandler, OpGCTick, OpRet, OpJmp, OpJcc, OpIterNext, OpUnreachable:
		ins.Result = None
	case OpArrayNew:
		ins.Result = Arr
	case OpTableNew:
		ins.Result = Tbl
	case OpFieldGet:
		ins.Result = Any
	case OpFieldSet:
		ins.Result = None
	case OpUnop, OpBinop:
		ins.Result = numericResult(ins)
	case OpBoolAnd, OpBoolOr, OpBoolXor, OpCompare, OpTestType:
		ins.Result = I1
	case OpSelect:
		if len(ins.Operands) == 3 {
			ins.Result = join(ins.Operands[1].Value.valType(), ins.Operands[2].Value.valType())
		} else {
			ins.Result = Any
		}
	case OpPhi:
		t := Unk
		for _, u := range ins.Operands {
			t = join(t, u.Value.valType())
		}
		ins.Result = t
	case OpAssumeCast:
		ins.Result = ins.castTarget()
	case OpCoerceBool:
		ins.Result = I1
	case OpMove:
		if len(ins.Operands) == 1 {
			ins.Result = ins.Operands[0].Value.valType()
		}
	case OpEraseType:
		ins.Result = Any
	case OpCCall:
		ins.Result = ccallResult(ins.Callee)
	case OpVCall:
		ins.Result = Any
	default:
		ins.Result = Any
	}
	ins.recomputeFlags()
}

// castTarget reads assume_cast's target type out of its constant
// operand, if any was attached; instructions built directly (not via a
// helper) may set Result themselves and skip this lookup.
func (ins *Instruction) castTarget() Type {
	for _, u := range ins.Operands {
		if c, ok := u.Value.(*Constant); ok && c.Type == Any {
			return c.IRType
		}
	}
	return Any
}

func numericResult(ins *Instruction) Type {
	t := Unk
	for _, u := range ins.Operands {
		vt := u.Value.valType()
		if !vt.IsNumeric() {
			continue
		}
		t = join(t, vt)
	}
	if t == Unk {
		return F64 // the value model has one numeric representation (§3.1)
	}
	return t
}

// ccallResult gives every ccall an Any result: rtcall.Info records each
// helper's purity, constness and side effects, but no result type.
func ccallResult(name string) Type {
	if _, ok := rtcall.Info[name]; ok {
		return Any
	}
	return Any
}

// recomputeFlags derives is_pure/is_const/has_side_effect from the
// opcode and, for ccall, the runtime helper's advertised NFuncInfo.
func (ins *Instruction) recomputeFlags() {
	switch ins.Op {
	case OpLoadLocal, OpUvalGet, OpGetException, OpMove, OpTestType,
		OpCompare, OpUnop, OpBinop, OpBoolAnd, OpBoolOr, OpBoolXor,
		OpSelect, OpPhi, OpAssumeCast, OpCoerceBool, OpEraseType:
		ins.IsPure = true
	case OpCCall:
		if info, ok := rtcall.Info[ins.Callee]; ok {
			ins.IsPure = info.Pure
			ins.IsConst = info.Const
			ins.HasSideEffect = info.SideEffect
			return
		}
		ins.HasSideEffect = true
	case OpStoreLocal, OpUvalSet, OpSetException, OpSetHandler, OpFieldSet, OpVCall, OpGCTick, OpIterNext:
		ins.HasSideEffect = true
	}
}

// TypeTrySettle narrows ins's result type to t if consistent with what's
// already known, recursing through its inputs via RecTypeCheck (§4.5).
// It returns whether the narrowing succeeded.
func (ins *Instruction) TypeTrySettle(t Type) bool {
	if !ins.RecTypeCheck(t) {
		return false
	}
	narrowed, ok := settle(ins.Result, t)
	if ok {
		ins.Result = narrowed
	}
	return ok
}

// RecTypeCheck reports whether every operand of ins can be narrowed to
// t without contradiction; only a handful of opcodes have a meaningful
// answer (the rest conservatively report false).
func (ins *Instruction) RecTypeCheck(t Type) bool {
	switch ins.Op {
	case OpLoadLocal, OpFieldGet, OpPhi, OpMove, OpSelect, OpCCall, OpGetException:
		for _, u := range ins.Operands {
			if inst, ok := u.Value.(*Instruction); ok {
				if _, ok := settle(inst.Result, t); !ok {
					return false
				}
			}
		}
		_, ok := settle(ins.Result, t)
		return ok
	default:
		return false
	}
}

// Duplicate deep-copies ins's payload (operands, flags, targets) but
// resets block/name/visitor state, per §4.5. Callers re-insert the copy
// into a block and assign it a fresh SSA name.
func (ins *Instruction) Duplicate() *Instruction {
	dup := &Instruction{
		Op:            ins.Op,
		Result:        ins.Result,
		BCPos:         ins.BCPos,
		IsPure:        ins.IsPure,
		IsConst:       ins.IsConst,
		HasSideEffect: ins.HasSideEffect,
		IsVolatile:    ins.IsVolatile,
		Local:         ins.Local,
		VMOp:          ins.VMOp,
		Callee:        ins.Callee,
		Checked:       ins.Checked,
	}
	dup.Operands = append([]Use(nil), ins.Operands...)
	for i := range dup.Operands {
		dup.Operands[i].User = dup
	}
	dup.Targets = append([]*BasicBlock(nil), ins.Targets...)
	return dup
}
