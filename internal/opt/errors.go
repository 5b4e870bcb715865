package opt

import "golang.org/x/xerrors"

// These are internal Go-level errors: a pass left the procedure in a
// shape Verify rejects, never a language-level exception.

func errSplitWithoutCondition(blockID int32) error {
	return xerrors.Errorf("opt: type_split_cfg block %d has a polymorphic op with no operand to guard", blockID)
}
