package opt

import (
	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
)

// PrepareForMIR lowers the handful of IR ops internal/mir has no direct
// instruction for: array_new/table_new become ordinary ccalls against
// the allocator, a binop using the trait-dispatching mod/pow bytecode
// ops becomes a direct call to the double-precision helper, and the
// polymorphic field_get/field_set op (§4.6's uniform SGET/TGET/TGETR/
// SSET/TSET/TSETR shape) resolves its leading raw-flag constant into a
// concrete rtcall callee (§4.7's closing step, run once after the main
// fixpoint settles).
func PrepareForMIR(proc *ir.Procedure) bool {
	changed := false
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			switch ins.Op {
			case ir.OpArrayNew:
				lowerToCCall(proc, blk, ins, "array_new")
				changed = true
			case ir.OpTableNew:
				lowerToCCall(proc, blk, ins, "table_new")
				changed = true
			case ir.OpBinop:
				if name, ok := doubleHelperName(bytecode.Op(ins.VMOp)); ok {
					lowerToCCall(proc, blk, ins, name)
					changed = true
				}
			case ir.OpFieldGet:
				lowerFieldGet(proc, blk, ins)
				changed = true
			case ir.OpFieldSet:
				lowerFieldSet(proc, blk, ins)
				changed = true
			}
		}
	}
	return changed
}

func isRaw(ins *ir.Instruction) bool {
	c, ok := ins.Operands[0].Value.(*ir.Constant)
	return ok && c.Bool
}

func lowerFieldGet(proc *ir.Procedure, blk *ir.BasicBlock, ins *ir.Instruction) {
	callee := "trait_get"
	if isRaw(ins) {
		callee = "field_get_raw"
	}
	call := proc.NewInstruction(ir.OpCCall)
	call.Callee = callee
	call.AddOperand(ins.Operands[1].Value) // container
	call.AddOperand(ins.Operands[2].Value) // key
	call.Update()
	blk.InsertBefore(ins, call)
	replaceAllUses(proc, ins, call)
	blk.Remove(ins)
}

// lowerFieldSet carries ins.Checked (the §12 AssumeChecked decision) as
// a trailing bool constant on the raw path, matching
// rtcall.FieldSetRaw's assumeChecked parameter; trait_set never skips
// its bounds/trait check, so the non-raw path drops it.
func lowerFieldSet(proc *ir.Procedure, blk *ir.BasicBlock, ins *ir.Instruction) {
	raw := isRaw(ins)
	callee := "trait_set"
	if raw {
		callee = "field_set_raw"
	}
	call := proc.NewInstruction(ir.OpCCall)
	call.Callee = callee
	call.AddOperand(ins.Operands[1].Value) // container
	call.AddOperand(ins.Operands[2].Value) // key
	call.AddOperand(ins.Operands[3].Value) // val
	if raw {
		call.AddOperand(&ir.Constant{Type: ir.I1, Bool: ins.Checked})
	}
	call.Update()
	blk.InsertBefore(ins, call)
	blk.Remove(ins)
}

func doubleHelperName(op bytecode.Op) (string, bool) {
	switch op {
	case bytecode.AMOD:
		return "f64_mod", true
	case bytecode.APOW:
		return "f64_pow", true
	default:
		return "", false
	}
}

func lowerToCCall(proc *ir.Procedure, blk *ir.BasicBlock, ins *ir.Instruction, callee string) {
	call := proc.NewInstruction(ir.OpCCall)
	call.Callee = callee
	call.Operands = append([]ir.Use(nil), ins.Operands...)
	for i := range call.Operands {
		call.Operands[i].User = call
	}
	call.Update()
	blk.InsertBefore(ins, call)
	replaceAllUses(proc, ins, call)
	blk.Remove(ins)
}

// FinalizeForMIR implements §4.7's closing step: every phi operand is
// materialized as an explicit move (or, where the edge narrows a
// specialized value back into a generic merge, an erase_type) appended
// to the owning predecessor, blocks are reordered into reverse
// postorder, and SSA names are renumbered in that final order. mir's
// translation table walks this shape one instruction at a time and
// never has to special-case a phi.
func FinalizeForMIR(proc *ir.Procedure) bool {
	changed := false
	for _, blk := range proc.Blocks {
		phis := blk.Phis()
		if len(phis) == 0 {
			continue
		}
		for i, pred := range blk.Preds {
			term := pred.Terminator()
			for _, phi := range phis {
				src := phi.Operands[i].Value
				phi.Operands[i].Value = materializeEdgeValue(proc, pred, term, src, phi.Result)
				changed = true
			}
		}
	}
	topoSort(proc)
	renumber(proc)
	return changed
}

func materializeEdgeValue(proc *ir.Procedure, pred *ir.BasicBlock, term *ir.Instruction, src ir.Value, phiType ir.Type) ir.Value {
	srcType := valueType(src)
	var ins *ir.Instruction
	if srcType != ir.Unk && srcType != ir.Any && phiType == ir.Any {
		ins = proc.NewInstruction(ir.OpEraseType)
	} else {
		ins = proc.NewInstruction(ir.OpMove)
	}
	ins.AddOperand(src)
	ins.Update()
	if term != nil {
		pred.InsertBefore(term, ins)
	} else {
		pred.Append(ins)
	}
	return ins
}

// topoSort orders proc.Blocks by reverse postorder over Succs so that
// every block appears before its successors wherever the CFG is
// acyclic, which is what mir's straight-line instruction stream
// assumes for anything but a loop back-edge.
func topoSort(proc *ir.Procedure) {
	visited := make(map[*ir.BasicBlock]bool, len(proc.Blocks))
	order := make([]*ir.BasicBlock, 0, len(proc.Blocks))
	var visit func(*ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		order = append(order, b)
	}
	visit(proc.Entry())
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	for _, b := range proc.Blocks {
		if !visited[b] {
			order = append(order, b)
		}
	}
	proc.Blocks = order
	proc.Topological = true
}

func renumber(proc *ir.Procedure) {
	var n int32
	for _, blk := range proc.Blocks {
		for _, ins := range blk.Instructions() {
			ins.Name = n
			n++
		}
	}
}
