package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

// heapTestRoots is a minimal heap.Roots implementation local to the
// object package's tests, mirroring internal/heap's own test helper.
type heapTestRoots struct{ live []value.Value }

func newHeapTestRoots() *heapTestRoots { return &heapTestRoots{} }

func (r *heapTestRoots) WalkRoots(visit func(value.Value)) {
	for _, v := range r.live {
		visit(v)
	}
}

func (r *heapTestRoots) hold(v value.Value) { r.live = append(r.live, v) }

func newTestHeap() *heap.Heap {
	cfg := vmconfig.Default()
	cfg.MinimumPage = 4096
	return heap.New(cfg, heap.NewArenaAllocator())
}

func TestStringsInternSamePointer(t *testing.T) {
	h := newTestHeap()
	ss := NewStrings(h, vmconfig.Default())

	a, ok := ss.Intern([]byte("hello"))
	require.True(t, ok)
	b, ok := ss.Intern([]byte("hello"))
	require.True(t, ok)
	require.True(t, a == b, "equal strings must intern to the same pointer")

	c, ok := ss.Intern([]byte("world"))
	require.True(t, ok)
	require.False(t, a == c)
}

func TestStringsGrowsAndStillFinds(t *testing.T) {
	h := newTestHeap()
	ss := NewStrings(h, vmconfig.Default())

	seen := map[string]*String{}
	for i := 0; i < 500; i++ {
		s := string(rune('a'+i%26)) + string(rune('A'+(i*7)%26)) + string(rune('0'+i%10))
		str, ok := ss.Intern([]byte(s))
		require.True(t, ok)
		if prev, dup := seen[s]; dup {
			require.True(t, prev == str)
		} else {
			seen[s] = str
		}
	}
	for s, str := range seen {
		again, ok := ss.Intern([]byte(s))
		require.True(t, ok)
		require.True(t, str == again)
	}
}

func TestStringsEmptyIsStatic(t *testing.T) {
	h := newTestHeap()
	ss := NewStrings(h, vmconfig.Default())
	roots := newHeapTestRoots()
	h.SetRoots(roots)

	empty, ok := ss.Empty()
	require.True(t, ok)
	require.Equal(t, 0, empty.Len())

	h.Collect()
	empty2, ok := ss.Empty()
	require.True(t, ok)
	require.True(t, empty == empty2, "static empty string survives collection without a root")
}

func TestArrayGetSetBounds(t *testing.T) {
	h := newTestHeap()
	a, ok := NewArray(h, 0)
	require.True(t, ok)

	require.True(t, a.Get(0).IsNil())
	require.False(t, a.Set(0, value.Int(1)))

	a.Push(value.Int(10))
	a.Push(value.Int(20))
	require.Equal(t, 2, a.Len())
	require.Equal(t, float64(10), a.Get(0).AsNumber())
	require.True(t, a.Set(1, value.Int(99)))
	require.Equal(t, float64(99), a.Get(1).AsNumber())
	require.True(t, a.Get(5).IsNil())
}

func TestArrayGrowthPolicy(t *testing.T) {
	h := newTestHeap()
	a, ok := NewArray(h, 0)
	require.True(t, ok)
	require.Equal(t, 0, a.Cap())

	a.Reserve(4)
	require.GreaterOrEqual(t, a.Cap(), 4)
	cap1 := a.Cap()

	a.Reserve(cap1 + 1)
	require.GreaterOrEqual(t, a.Cap(), cap1+cap1/2)
}

func TestArrayDuplicateIsIndependent(t *testing.T) {
	h := newTestHeap()
	a, ok := NewArray(h, 0)
	require.True(t, ok)
	a.Push(value.Int(1))
	a.Push(value.Int(2))

	dup, ok := a.Duplicate(h)
	require.True(t, ok)
	dup.Set(0, value.Int(999))
	require.Equal(t, float64(1), a.Get(0).AsNumber())
	require.Equal(t, float64(999), dup.Get(0).AsNumber())
}

func TestTableGetSetRemove(t *testing.T) {
	h := newTestHeap()
	tbl, ok := NewTable(h, 0)
	require.True(t, ok)

	key := value.Int(1)
	require.True(t, tbl.Get(key).IsNil())

	tbl.Set(key, value.Int(100))
	require.Equal(t, float64(100), tbl.Get(key).AsNumber())
	require.Equal(t, 1, tbl.Len())

	tbl.Set(key, value.Nil)
	require.True(t, tbl.Get(key).IsNil())
	require.Equal(t, 0, tbl.Len())
}

func TestTableRehashOnOverflow(t *testing.T) {
	h := newTestHeap()
	tbl, ok := NewTable(h, 0)
	require.True(t, ok)

	const n = 200
	for i := 0; i < n; i++ {
		tbl.Set(value.Int(int64(i)), value.Int(int64(i*2)))
	}
	require.Equal(t, n, tbl.Len())
	for i := 0; i < n; i++ {
		require.Equal(t, float64(i*2), tbl.Get(value.Int(int64(i))).AsNumber())
	}
}

func TestFunctionDuplicateSharesPrototype(t *testing.T) {
	h := newTestHeap()
	proto := &bytecode.Prototype{NumUpvalues: 1}
	f, ok := NewClosure(h, proto)
	require.True(t, ok)
	f.SetUpvalue(0, value.Int(7))

	dup, ok := f.Duplicate(h)
	require.True(t, ok)
	require.Equal(t, float64(7), dup.Upvalue(0).AsNumber())
	require.True(t, f.Prototype() == dup.Prototype())

	dup.SetUpvalue(0, value.Int(8))
	require.Equal(t, float64(7), f.Upvalue(0).AsNumber())
}

func TestClassFieldsAndTypeSet(t *testing.T) {
	h := newTestHeap()
	ss := NewStrings(h, vmconfig.Default())
	name, ok := ss.Intern([]byte("Point"))
	require.True(t, ok)

	cl, ok := NewClass(h, name, nil)
	require.True(t, ok)
	cl.AddField("x", FieldInfo{Type: value.KindNumber})
	cl.AddField("y", FieldInfo{Type: value.KindNumber})

	ts := NewTypeSet()
	id := ts.Register(cl)
	require.Less(t, id, int32(0))
	got, ok := ts.Lookup(id)
	require.True(t, ok)
	require.True(t, got == cl)

	obj, ok := NewObject(h, cl)
	require.True(t, ok)
	require.True(t, obj.Get("x").IsNil())
	require.True(t, obj.Set("x", value.Int(5)))
	require.Equal(t, float64(5), obj.Get("x").AsNumber())
	require.False(t, obj.Set("z", value.Int(1)))
}

func TestClassFinalizeDropsFromTypeSet(t *testing.T) {
	h := newTestHeap()
	ss := NewStrings(h, vmconfig.Default())
	roots := newHeapTestRoots()
	h.SetRoots(roots)

	name, ok := ss.Intern([]byte("Ghost"))
	require.True(t, ok)
	roots.hold(name.Value())

	cl, ok := NewClass(h, name, nil)
	require.True(t, ok)
	ts := NewTypeSet()
	id := ts.Register(cl)
	require.Equal(t, 1, ts.Len())

	h.Collect()
	_, found := ts.Lookup(id)
	require.False(t, found)
	require.Equal(t, 0, ts.Len())
}
