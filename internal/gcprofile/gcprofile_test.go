package gcprofile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

func testHeap() *heap.Heap {
	cfg := vmconfig.Default()
	cfg.MinimumPage = 4096
	return heap.New(cfg, heap.NewArenaAllocator())
}

func TestStatsBucketsByKind(t *testing.T) {
	h := testHeap()
	_, ok := h.Alloc(value.KindString, false, 16)
	require.True(t, ok)
	_, ok = h.Alloc(value.KindString, false, 16)
	require.True(t, ok)
	_, ok = h.Alloc(value.KindArray, true, 32)
	require.True(t, ok)

	stats := Stats(h)
	require.Len(t, stats, 2)

	byKind := map[value.Kind]KindStat{}
	for _, s := range stats {
		byKind[s.Kind] = s
	}
	assert.EqualValues(t, 2, byKind[value.KindString].Objects)
	assert.EqualValues(t, 1, byKind[value.KindArray].Objects)
	assert.Greater(t, byKind[value.KindString].Bytes, int64(0))
}

func TestStatsExcludesFreedHeaders(t *testing.T) {
	h := testHeap()
	hdr, ok := h.Alloc(value.KindTable, true, 16)
	require.True(t, ok)
	hdr.MarkStatic() // keep it reachable for the test's own sanity check
	assert.False(t, hdr.IsFree())

	// A second, unrooted table is freed by a collection; it must not show
	// up in the tally.
	dropped, ok := h.Alloc(value.KindTable, true, 16)
	require.True(t, ok)
	h.SetRoots(noRoots{})
	h.Collect()
	require.True(t, dropped.IsFree())

	stats := Stats(h)
	require.Len(t, stats, 1)
	assert.Equal(t, value.KindTable, stats[0].Kind)
	assert.EqualValues(t, 1, stats[0].Objects)
}

// noRoots is an empty heap.Roots, so Collect frees every non-static object.
type noRoots struct{}

func (noRoots) WalkRoots(func(value.Value)) {}

func TestSnapshotBuildsOneSamplePerKind(t *testing.T) {
	h := testHeap()
	_, ok := h.Alloc(value.KindString, false, 16)
	require.True(t, ok)
	_, ok = h.Alloc(value.KindFunction, true, 48)
	require.True(t, ok)

	prof := Snapshot(h)
	require.Len(t, prof.Sample, 2)
	require.Len(t, prof.SampleType, 2)
	assert.Equal(t, "objects", prof.SampleType[0].Type)
	assert.Equal(t, "space", prof.SampleType[1].Type)

	for _, s := range prof.Sample {
		require.Len(t, s.Value, 2)
		require.Len(t, s.Location, 1)
		require.Len(t, s.Location[0].Line, 1)
		assert.NotEmpty(t, s.Location[0].Line[0].Function.Name)
	}
}
