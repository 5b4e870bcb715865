package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

// fakeRoots is a minimal Roots implementation for exercising Collect
// without depending on internal/object, which sits above internal/heap.
type fakeRoots struct {
	live []value.Value
}

func newFakeRoots() *fakeRoots { return &fakeRoots{} }

func (r *fakeRoots) WalkRoots(visit func(value.Value)) {
	for _, v := range r.live {
		visit(v)
	}
}

func (r *fakeRoots) hold(v value.Value)   { r.live = append(r.live, v) }
func (r *fakeRoots) release()             { r.live = nil }
func (r *fakeRoots) drop(v value.Value) {
	kept := r.live[:0]
	for _, x := range r.live {
		if x.Bits() != v.Bits() {
			kept = append(kept, x)
		}
	}
	r.live = kept
}

// fakeNode is a Traversable/Finalizer test object that can point at one
// child, to exercise worklist-driven mark propagation and finalization.
type fakeNode struct {
	hdr         *Header
	child       value.Value
	finalized   *bool
}

func (n *fakeNode) Traverse(mark func(value.Value)) {
	if !n.child.IsNil() {
		mark(n.child)
	}
}

func (n *fakeNode) Finalize() {
	if n.finalized != nil {
		*n.finalized = true
	}
}

func newFakeNode(t *testing.T, h *Heap, finalized *bool) (*fakeNode, value.Value) {
	t.Helper()
	hdr, ok := h.Alloc(value.KindArray, true, 32)
	require.True(t, ok)
	n := &fakeNode{hdr: hdr, child: value.Nil, finalized: finalized}
	hdr.Bind(n)
	return n, hdr.Value()
}

func TestCollectReclaimsUnreachable(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	roots := newFakeRoots()
	h.SetRoots(roots)

	finalized := false
	_, v := newFakeNode(t, h, &finalized)
	_ = v // not rooted

	h.Collect()
	require.True(t, finalized)
	require.Equal(t, uint32(0), h.tailPage().LiveCount())
}

func TestCollectKeepsReachableGraph(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	roots := newFakeRoots()
	h.SetRoots(roots)

	finalizedChild := false
	child, childVal := newFakeNode(t, h, &finalizedChild)
	_ = child

	finalizedParent := false
	parent, parentVal := newFakeNode(t, h, &finalizedParent)
	parent.child = childVal

	roots.hold(parentVal)

	h.Collect()
	require.False(t, finalizedParent)
	require.False(t, finalizedChild)

	parentHdr := HeaderOf(parentVal)
	require.False(t, parentHdr.IsFree())
	childHdr := HeaderOf(childVal)
	require.False(t, childHdr.IsFree())
}

func TestCollectDropsOnlyUnrootedObjects(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	roots := newFakeRoots()
	h.SetRoots(roots)

	var keepFinal, dropFinal bool
	keep, keepVal := newFakeNode(t, h, &keepFinal)
	_, dropVal := newFakeNode(t, h, &dropFinal)
	_ = keep

	roots.hold(keepVal)

	h.Collect()
	require.False(t, keepFinal)
	require.True(t, dropFinal)
	require.False(t, HeaderOf(keepVal).IsFree())
	require.True(t, HeaderOf(dropVal).IsFree())
}

func TestCollectNoRootsIsNoop(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	_, ok := h.Alloc(value.KindString, false, 8)
	require.True(t, ok)

	h.Collect()
	require.Equal(t, 0, h.Cycles())
}

func TestCollectSuspendedIsNoop(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	roots := newFakeRoots()
	h.SetRoots(roots)
	_, ok := h.Alloc(value.KindString, false, 8)
	require.True(t, ok)

	h.Suspend()
	h.Collect()
	require.Equal(t, 0, h.Cycles())
	h.Resume()
}

func TestEmptyPageIsEvictedAfterCollect(t *testing.T) {
	cfg := testConfig()
	cfg.MinimumPage = 4096
	h := New(cfg, NewArenaAllocator())
	roots := newFakeRoots()
	h.SetRoots(roots)

	finalized := false
	_, v := newFakeNode(t, h, &finalized)
	_ = v

	require.Equal(t, 1, h.PageCount())
	h.Collect()
	require.Equal(t, 0, h.PageCount())
}

func TestPostSweepHookRunsAfterCollect(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	roots := newFakeRoots()
	h.SetRoots(roots)

	calls := 0
	h.OnPostSweep(func() { calls++ })

	h.Collect()
	require.Equal(t, 1, calls)
}

func TestStaticObjectSurvivesWithoutRoot(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	roots := newFakeRoots()
	h.SetRoots(roots)

	finalized := false
	_, v := newFakeNode(t, h, &finalized)
	HeaderOf(v).MarkStatic()

	h.Collect()
	require.False(t, finalized)
	require.False(t, HeaderOf(v).IsFree())
}
