package object

import (
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/trait"
	"github.com/li-script/lightning-sub000/internal/value"
)

const (
	smallTableLength = 4
	tableOverflow    = 3
)

type tableEntry struct {
	key   value.Value
	used  bool
	value value.Value
}

// Table is an open-addressed hash map from Value to Value with a fixed
// linear-probe overflow run, growing by doubling on a full run (§3.6).
// Traits attached via t.Traits may override get/set (§3.9, §4.3).
type Table struct {
	hdr         *heap.Header
	Traits      trait.Set
	entries     []tableEntry // length is always a power of two, >= smallTableLength
	activeCount int
}

// NewTable allocates an empty table sized for at least reserve entries.
func NewTable(h *heap.Heap, reserve int) (*Table, bool) {
	hdr, ok := h.Alloc(value.KindTable, true, 0)
	if !ok {
		return nil, false
	}
	n := smallTableLength
	for n < reserve {
		n <<= 1
	}
	t := &Table{hdr: hdr, entries: make([]tableEntry, n)}
	hdr.Bind(t)
	return t, true
}

func (t *Table) Value() value.Value { return t.hdr.Value() }
func (t *Table) Len() int           { return t.activeCount }
func (t *Table) mask() uint64       { return uint64(len(t.entries)) - 1 }

// Traverse marks every live key/value pair and any attached trait values,
// per §4.1 ("tables mark their keys and values and any attached traits").
func (t *Table) Traverse(mark func(value.Value)) {
	for _, e := range t.entries {
		if e.used {
			mark(e.key)
			mark(e.value)
		}
	}
	t.Traits.Traverse(mark)
}

func eqKey(a, b value.Value) bool { return a.Equals(b) }

// RawCapacity exposes the entry slot count for sequential iteration
// (ITER, §4.4: "B,B+1 = C[iter++].kv"), which walks raw slots rather than
// re-deriving a cursor from hashing.
func (t *Table) RawCapacity() int { return len(t.entries) }

// EntryAt returns the key/value stored at raw slot i and whether that slot
// is currently occupied, for the ITER opcode's sequential walk.
func (t *Table) EntryAt(i int) (key, val value.Value, used bool) {
	e := t.entries[i]
	return e.key, e.value, e.used
}

// Get returns Nil on a miss (§4.2); it does not consult traits — callers
// wanting trait-aware access use internal/trait's dispatch helpers with
// this table's Traits.
func (t *Table) Get(key value.Value) value.Value {
	hash := key.Hash()
	start := hash & t.mask()
	for i := uint64(0); i < tableOverflow; i++ {
		idx := (start + i) & t.mask()
		e := &t.entries[idx]
		if e.used && eqKey(e.key, key) {
			return e.value
		}
	}
	return value.Nil
}

// Set assigns key -> val, removing the key when val is Nil (§4.2). It
// rehashes (doubling capacity) whenever no slot in the key's overflow
// window is free.
func (t *Table) Set(key, val value.Value) {
	if val.IsNil() {
		t.remove(key)
		return
	}
	for {
		if t.trySet(key, val) {
			return
		}
		t.grow()
	}
}

func (t *Table) trySet(key, val value.Value) bool {
	hash := key.Hash()
	start := hash & t.mask()
	freeIdx := -1
	for i := uint64(0); i < tableOverflow; i++ {
		idx := (start + i) & t.mask()
		e := &t.entries[idx]
		if e.used {
			if eqKey(e.key, key) {
				e.value = val
				return true
			}
			continue
		}
		if freeIdx < 0 {
			freeIdx = int(idx)
		}
	}
	if freeIdx < 0 {
		return false
	}
	t.entries[freeIdx] = tableEntry{key: key, used: true, value: val}
	t.activeCount++
	return true
}

func (t *Table) remove(key value.Value) {
	hash := key.Hash()
	start := hash & t.mask()
	for i := uint64(0); i < tableOverflow; i++ {
		idx := (start + i) & t.mask()
		e := &t.entries[idx]
		if e.used && eqKey(e.key, key) {
			*e = tableEntry{}
			t.activeCount--
			return
		}
	}
}

// grow doubles capacity and reinserts every live entry, widening further
// if even the doubled table can't place them all without another full
// window. Order is not preserved across resize (§4.2).
func (t *Table) grow() {
	old := t.entries
	size := len(old) * 2
	for {
		t.entries = make([]tableEntry, size)
		t.activeCount = 0
		if t.reinsertAll(old) {
			return
		}
		size <<= 1
	}
}

// reinsertAll places every used entry of old into the current t.entries,
// reporting false (and leaving t in a dirty state the caller discards) if
// any entry's overflow window was already full.
func (t *Table) reinsertAll(old []tableEntry) bool {
	for _, e := range old {
		if e.used && !t.trySet(e.key, e.value) {
			return false
		}
	}
	return true
}
