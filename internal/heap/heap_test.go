package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

func testConfig() vmconfig.Config {
	cfg := vmconfig.Default()
	cfg.MinimumPage = 4096
	return cfg
}

func TestAllocBumpsTailPage(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	hdr, ok := h.Alloc(value.KindString, false, 24)
	require.True(t, ok)
	require.NotNil(t, hdr)
	require.Equal(t, 1, h.PageCount())
	require.True(t, hdr.GetPage().Contains(hdr))
}

func TestAllocGrowsPagesWhenTailFull(t *testing.T) {
	cfg := testConfig()
	cfg.MinimumPage = 4096
	h := New(cfg, NewArenaAllocator())

	for i := 0; i < 4096; i++ {
		_, ok := h.Alloc(value.KindString, false, 256)
		require.True(t, ok)
	}
	require.Greater(t, h.PageCount(), 1)
}

func TestAllocFailsCleanlyOnOOM(t *testing.T) {
	h := New(testConfig(), NewFailingAllocator())
	hdr, ok := h.Alloc(value.KindString, false, 24)
	require.False(t, ok)
	require.Nil(t, hdr)
	require.Equal(t, 0, h.PageCount())
}

func TestPageContainsInvariant(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	hdr, ok := h.Alloc(value.KindArray, true, 64)
	require.True(t, ok)

	page := hdr.GetPage()
	require.True(t, page.Contains(hdr))
	require.GreaterOrEqual(t, page.LiveCount(), uint32(1))

	other := &Header{}
	require.False(t, page.Contains(other))
}

func TestShouldTickDebtAccounting(t *testing.T) {
	cfg := testConfig()
	cfg.MinDebt = 20
	cfg.MaxDebt = 1 << 20
	cfg.Interval = 50
	h := New(cfg, NewArenaAllocator())

	require.False(t, h.ShouldTick())

	// Small, repeated allocations: debt accumulates until MinDebt is
	// crossed, then a countdown of Interval further bytes must elapse
	// before ShouldTick reports true (MaxDebt is unreachable here).
	ticked := false
	for i := 0; i < 64; i++ {
		_, ok := h.Alloc(value.KindString, false, 0)
		require.True(t, ok)
		if h.ShouldTick() {
			ticked = true
			break
		}
	}
	require.True(t, ticked, "ShouldTick never became true once the debt countdown elapsed")
}

func TestShouldTickForcedByMaxDebt(t *testing.T) {
	cfg := testConfig()
	cfg.MinDebt = 1 << 30
	cfg.MaxDebt = 64
	h := New(cfg, NewArenaAllocator())

	_, ok := h.Alloc(value.KindString, false, 128)
	require.True(t, ok)
	require.True(t, h.ShouldTick())
}

func TestSuspendDisablesTick(t *testing.T) {
	cfg := testConfig()
	cfg.MinDebt = 1
	cfg.MaxDebt = 1
	h := New(cfg, NewArenaAllocator())
	_, _ = h.Alloc(value.KindString, false, 8)
	require.True(t, h.ShouldTick())

	h.Suspend()
	require.False(t, h.ShouldTick())
	h.Suspend()
	h.Resume()
	require.False(t, h.ShouldTick())
	h.Resume()
	require.True(t, h.ShouldTick())
}

func TestFreeListReuseAfterSweep(t *testing.T) {
	h := New(testConfig(), NewArenaAllocator())
	roots := newFakeRoots()
	h.SetRoots(roots)

	// Keep one object alive on the page so the other's reclaim leaves the
	// page itself intact, instead of evicting it along with its free-list
	// footprint; that isolates the free-list reuse path.
	keep, ok0 := h.Alloc(value.KindString, false, 16)
	require.True(t, ok0)
	roots.hold(keep.Value())

	hdr, ok := h.Alloc(value.KindString, false, 16)
	require.True(t, ok)
	_ = hdr
	require.Equal(t, 0, h.FreeListLen(16))

	h.Collect()
	require.Equal(t, 1, h.Cycles())
	require.Greater(t, h.FreeListLen(16), 0)

	before := h.PageCount()
	hdr2, ok := h.Alloc(value.KindString, false, 16)
	require.True(t, ok)
	require.Equal(t, before, h.PageCount(), "reused free list entry, no new page")
	require.Equal(t, 0, h.FreeListLen(16))
	require.True(t, hdr2.GetPage().Contains(hdr2))
}
