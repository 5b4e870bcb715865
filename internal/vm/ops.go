package vm

import (
	"math"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/langerr"
	"github.com/li-script/lightning-sub000/internal/object"
	"github.com/li-script/lightning-sub000/internal/rtcall"
	"github.com/li-script/lightning-sub000/internal/trait"
	"github.com/li-script/lightning-sub000/internal/value"
)

func asArray(v value.Value) *object.Array { return heap.HeaderOf(v).Object().(*object.Array) }
func asTable(v value.Value) *object.Table { return heap.HeaderOf(v).Object().(*object.Table) }
func asObject(v value.Value) *object.Object {
	return heap.HeaderOf(v).Object().(*object.Object)
}

// execUnaryArith handles ANEG: numeric negation, falling back to the neg
// trait for non-numbers (§4.3).
func (vm *VM) execUnaryArith(f *frame, insn bytecode.Insn, k trait.Kind) (exc bool, goErr error, done bool) {
	b := vm.reg(f, insn.B)
	if b.IsNumber() {
		vm.setReg(f, insn.A, value.Number(-b.AsNumber()))
		return false, nil, false
	}
	if ts := traitsOf(b); ts != nil {
		v, handled, err := ts.DispatchUnary(vm, k, b)
		if err != nil {
			return false, err, false
		}
		if handled {
			vm.setReg(f, insn.A, v)
			return v.IsException(), nil, false
		}
	}
	v := langerr.TypeError(vm, vm.Heap, vm.Strings, "number", b.Kind())
	vm.setReg(f, insn.A, v)
	return true, nil, false
}

func arithTraitKind(op bytecode.Op) trait.Kind {
	switch op {
	case bytecode.ASUB:
		return trait.Sub
	case bytecode.AMUL:
		return trait.Mul
	case bytecode.ADIV:
		return trait.Div
	case bytecode.AMOD:
		return trait.Mod
	case bytecode.APOW:
		return trait.Pow
	default:
		return trait.Add
	}
}

// execBinaryArith handles AADD/ASUB/AMUL/ADIV/AMOD/APOW: direct float
// arithmetic on numbers, falling back to the matching trait (§4.3).
func (vm *VM) execBinaryArith(f *frame, insn bytecode.Insn) (bool, error, bool) {
	b := vm.reg(f, insn.B)
	c := vm.reg(f, insn.C)
	if b.IsNumber() && c.IsNumber() {
		x, y := b.AsNumber(), c.AsNumber()
		var r float64
		switch insn.Op {
		case bytecode.AADD:
			r = x + y
		case bytecode.ASUB:
			r = x - y
		case bytecode.AMUL:
			r = x * y
		case bytecode.ADIV:
			r = x / y
		case bytecode.AMOD:
			r = math.Mod(x, y)
		case bytecode.APOW:
			r = math.Pow(x, y)
		}
		vm.setReg(f, insn.A, value.Number(r))
		return false, nil, false
	}
	if ts := traitsOf(b); ts != nil {
		v, handled, err := ts.DispatchBinary(vm, arithTraitKind(insn.Op), b, c)
		if err != nil {
			return false, err, false
		}
		if handled {
			vm.setReg(f, insn.A, v)
			return v.IsException(), nil, false
		}
	}
	v := langerr.TypeError(vm, vm.Heap, vm.Strings, "number", b.Kind())
	vm.setReg(f, insn.A, v)
	return true, nil, false
}

// execCompare handles CLT/CGE/CGT/CLE: numeric ordering, falling back to
// the lt/le traits (ge/gt are derived by negating le/lt) for non-numbers.
func (vm *VM) execCompare(f *frame, insn bytecode.Insn) (bool, error, bool) {
	b := vm.reg(f, insn.B)
	c := vm.reg(f, insn.C)
	if b.IsNumber() && c.IsNumber() {
		x, y := b.AsNumber(), c.AsNumber()
		var r bool
		switch insn.Op {
		case bytecode.CLT:
			r = x < y
		case bytecode.CGE:
			r = x >= y
		case bytecode.CGT:
			r = x > y
		case bytecode.CLE:
			r = x <= y
		}
		vm.setReg(f, insn.A, value.Bool(r))
		return false, nil, false
	}
	if ts := traitsOf(b); ts != nil {
		switch insn.Op {
		case bytecode.CLT, bytecode.CLE:
			k := trait.Lt
			if insn.Op == bytecode.CLE {
				k = trait.Le
			}
			v, handled, err := ts.DispatchBinary(vm, k, b, c)
			if err != nil {
				return false, err, false
			}
			if handled {
				vm.setReg(f, insn.A, v)
				return v.IsException(), nil, false
			}
		case bytecode.CGT, bytecode.CGE:
			k := trait.Le
			if insn.Op == bytecode.CGE {
				k = trait.Lt
			}
			v, handled, err := ts.DispatchBinary(vm, k, b, c)
			if err != nil {
				return false, err, false
			}
			if handled {
				vm.setReg(f, insn.A, value.Bool(!v.AsBool()))
				return false, nil, false
			}
		}
	}
	v := langerr.TypeError(vm, vm.Heap, vm.Strings, "number", b.Kind())
	vm.setReg(f, insn.A, v)
	return true, nil, false
}

// execConcat handles CCAT: A = concat(A..A+B), the span of B+1 contiguous
// registers starting at A, stringified and joined in place into A.
func (vm *VM) execConcat(f *frame, insn bytecode.Insn) (bool, error, bool) {
	span := int(insn.B) + 1
	vals := make([]value.Value, span)
	for i := 0; i < span; i++ {
		vals[i] = vm.reg(f, insn.A+int32(i))
	}
	v := rtcall.BuiltinJoin(vm, vm.Heap, vm.Strings, vals)
	vm.setReg(f, insn.A, v)
	return v.IsException(), nil, false
}

// execClassIsBase handles CTYX: A = C (a class) is a base of B (an object
// or class), walking B's superclass chain.
func (vm *VM) execClassIsBase(f *frame, insn bytecode.Insn) (bool, error, bool) {
	b := vm.reg(f, insn.B)
	c := vm.reg(f, insn.C)
	if c.Kind() != value.KindClass {
		vm.setReg(f, insn.A, value.Bool(false))
		return false, nil, false
	}
	base := asClass(c)
	var cl *object.Class
	switch b.Kind() {
	case value.KindObject:
		cl = asObject(b).Cl
	case value.KindClass:
		cl = asClass(b)
	default:
		vm.setReg(f, insn.A, value.Bool(false))
		return false, nil, false
	}
	for cur := cl; cur != nil; cur = cur.Super {
		if cur == base {
			vm.setReg(f, insn.A, value.Bool(true))
			return false, nil, false
		}
	}
	vm.setReg(f, insn.A, value.Bool(false))
	return false, nil, false
}

// execFieldGet handles SGET: A = C[B] as a declared object field read
// (B names the field as an interned string), distinct from TGET's
// generic, trait-dispatched array/table indexing.
func (vm *VM) execFieldGet(f *frame, insn bytecode.Insn) (bool, error, bool) {
	container := vm.reg(f, insn.C)
	key := vm.reg(f, insn.B)
	if container.Kind() != value.KindObject || key.Kind() != value.KindString {
		v := langerr.TypeError(vm, vm.Heap, vm.Strings, "object field", container.Kind())
		vm.setReg(f, insn.A, v)
		return true, nil, false
	}
	name := asString(key).String()
	vm.setReg(f, insn.A, asObject(container).Get(name))
	return false, nil, false
}

// execFieldSet handles SSET: C[A] = B, writing a declared object field.
func (vm *VM) execFieldSet(f *frame, insn bytecode.Insn) (bool, error, bool) {
	container := vm.reg(f, insn.C)
	key := vm.reg(f, insn.A)
	val := vm.reg(f, insn.B)
	if container.Kind() != value.KindObject || key.Kind() != value.KindString {
		langerr.TypeError(vm, vm.Heap, vm.Strings, "object field", container.Kind())
		return true, nil, false
	}
	name := asString(key).String()
	if !asObject(container).Set(name, val) {
		langerr.FrozenWrite(vm, vm.Heap, vm.Strings, "object field "+name)
		return true, nil, false
	}
	return false, nil, false
}

func asString(v value.Value) *object.String { return heap.HeaderOf(v).Object().(*object.String) }
func asClass(v value.Value) *object.Class   { return heap.HeaderOf(v).Object().(*object.Class) }

// execIndexGet handles TGET/TGETR: C[B] for arrays and tables, consulting
// the get trait first unless raw.
func (vm *VM) execIndexGet(f *frame, insn bytecode.Insn, raw bool) (bool, error, bool) {
	container := vm.reg(f, insn.C)
	key := vm.reg(f, insn.B)
	if !raw {
		if ts := traitsOf(container); ts != nil {
			v, handled, err := ts.DispatchGet(vm, container, key)
			if err != nil {
				return false, err, false
			}
			if handled {
				vm.setReg(f, insn.A, v)
				return v.IsException(), nil, false
			}
		}
	}
	v := rtcall.FieldGetRaw(vm, vm.Heap, vm.Strings, container, key)
	vm.setReg(f, insn.A, v)
	return v.IsException(), nil, false
}

// execIndexSet handles TSET/TSETR: C[A] = B, consulting the set trait and
// the freeze flag first unless raw.
func (vm *VM) execIndexSet(f *frame, insn bytecode.Insn, raw bool) (bool, error, bool) {
	container := vm.reg(f, insn.C)
	key := vm.reg(f, insn.A)
	val := vm.reg(f, insn.B)
	if !raw {
		if ts := traitsOf(container); ts != nil {
			handled, err := ts.DispatchSet(vm, container, key, val)
			if err != nil {
				return false, err, false
			}
			if handled {
				return false, nil, false
			}
			if err := ts.CheckMutable(); err != nil {
				langerr.FrozenWrite(vm, vm.Heap, vm.Strings, container.Kind().String())
				return true, nil, false
			}
		}
	}
	res := rtcall.FieldSetRaw(vm, vm.Heap, vm.Strings, container, key, val, false)
	return res.IsException(), nil, false
}

// execClosureDup handles FDUP: duplicates the prototype template stored
// as constant B, wiring the contiguous registers starting at C as its
// upvalues (§3.7).
func (vm *VM) execClosureDup(f *frame, insn bytecode.Insn) (bool, error, bool) {
	tmplVal := f.proto.Constants[insn.B]
	tmpl := heap.HeaderOf(tmplVal).Object().(*object.Function)
	dup, ok := tmpl.Duplicate(vm.Heap)
	if !ok {
		v := langerr.OutOfMemory(vm)
		vm.setReg(f, insn.A, v)
		return true, nil, false
	}
	if proto := dup.Prototype(); proto != nil {
		for i := 0; i < proto.NumUpvalues; i++ {
			dup.SetUpvalue(i, vm.reg(f, insn.C+int32(i)))
		}
	}
	vm.setReg(f, insn.A, dup.Value())
	return false, nil, false
}

// execTraitRead handles TRGET: A = C.trait[B], a direct reflective read of
// one trait slot (B is the trait.Kind index) bypassing dispatch.
func (vm *VM) execTraitRead(f *frame, insn bytecode.Insn) (bool, error, bool) {
	container := vm.reg(f, insn.C)
	ts := traitsOf(container)
	if ts == nil {
		v := langerr.TypeError(vm, vm.Heap, vm.Strings, "traited value", container.Kind())
		vm.setReg(f, insn.A, v)
		return true, nil, false
	}
	vm.setReg(f, insn.A, ts.Get(trait.Kind(insn.B)))
	return false, nil, false
}

// execTraitWrite handles TRSET: C.trait[A] = B, installing or clearing one
// trait slot.
func (vm *VM) execTraitWrite(f *frame, insn bytecode.Insn) (bool, error, bool) {
	container := vm.reg(f, insn.C)
	ts := traitsOf(container)
	if ts == nil {
		langerr.TypeError(vm, vm.Heap, vm.Strings, "traited value", container.Kind())
		return true, nil, false
	}
	val := vm.reg(f, insn.B)
	k := trait.Kind(insn.A)
	isFn := val.Kind() == value.KindFunction
	isTable := val.Kind() == value.KindTable
	if err := ts.SetTrait(k, val, isFn, isTable); err != nil {
		langerr.Raise(vm, vm.Heap, vm.Strings, langerr.Mutation, "%s", err.Error())
		return true, nil, false
	}
	return false, nil, false
}

// execCall handles CALL: A = call(A, B args), args taken from the
// contiguous registers A+1..A+B. C is reserved for a future explicit
// self-binding register; this VM revision always calls with self=Nil.
func (vm *VM) execCall(f *frame, insn bytecode.Insn) (bool, error, bool) {
	target := vm.reg(f, insn.A)
	n := int(insn.B)
	args := make([]value.Value, n)
	for i := 0; i < n; i++ {
		args[i] = vm.reg(f, insn.A+1+int32(i))
	}
	if target.Kind() != value.KindFunction {
		if ts := traitsOf(target); ts != nil {
			v, handled, err := ts.DispatchCall(vm, target, args)
			if err != nil {
				return false, err, false
			}
			if handled {
				vm.setReg(f, insn.A, v)
				return v.IsException(), nil, false
			}
		}
		v := langerr.TypeError(vm, vm.Heap, vm.Strings, "function", target.Kind())
		vm.setReg(f, insn.A, v)
		return true, nil, false
	}
	fnObj := heap.HeaderOf(target).Object().(*object.Function)
	if fnObj.IsNative() {
		v, err := fnObj.CallNative(value.Nil, args)
		if err != nil {
			return false, err, false
		}
		vm.setReg(f, insn.A, v)
		return v.IsException(), nil, false
	}
	vm.pushFrame(fnObj, value.Nil, args, insn.A, true)
	return false, nil, false
}

// execIter handles ITER: B,B+1 = C[iter++].kv; jmp A if end. The cursor is
// kept per loop site (keyed by this instruction's position) rather than
// re-derived from the container's contents each step.
func (vm *VM) execIter(f *frame, insn bytecode.Insn) (bool, error, bool) {
	if f.iterCursors == nil {
		f.iterCursors = map[int]int{}
	}
	pc := f.pc - 1
	idx := f.iterCursors[pc]
	container := vm.reg(f, insn.C)

	switch container.Kind() {
	case value.KindArray:
		arr := asArray(container)
		if idx >= arr.Len() {
			delete(f.iterCursors, pc)
			f.pc += int(insn.A) - 1
			return false, nil, false
		}
		vm.setReg(f, insn.B, value.Int(int64(idx)))
		vm.setReg(f, insn.B+1, arr.Get(idx))
		f.iterCursors[pc] = idx + 1
		return false, nil, false
	case value.KindTable:
		t := asTable(container)
		for idx < t.RawCapacity() {
			k, v, used := t.EntryAt(idx)
			idx++
			if used {
				vm.setReg(f, insn.B, k)
				vm.setReg(f, insn.B+1, v)
				f.iterCursors[pc] = idx
				return false, nil, false
			}
		}
		delete(f.iterCursors, pc)
		f.pc += int(insn.A) - 1
		return false, nil, false
	default:
		langerr.TypeError(vm, vm.Heap, vm.Strings, "array or table", container.Kind())
		return true, nil, false
	}
}
