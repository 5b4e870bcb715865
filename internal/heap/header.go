// Package heap implements the object heap described in §3.2-§3.3 and the
// mark-and-sweep collector of §4.1: paged arenas grouping GC headers,
// segregated free lists keyed by chunk-size class, and a single-bit
// generation stamp used to drive the mark phase.
//
// Every GC-managed Go struct embeds a Header as its first field. Because
// Go guarantees a struct's first field sits at offset zero, any GC pointer
// boxed into a value.Value can be reinterpreted as *Header via
// unsafe.Pointer to recover size, stage, and kind without unboxing the
// concrete type — the same trick the original header.get_page() plays
// with raw pointer arithmetic, expressed with a typed back-pointer instead
// of recomputing an address from a page-relative offset (see DESIGN.md).
package heap

import (
	"unsafe"

	"github.com/li-script/lightning-sub000/internal/value"
)

// chunkBytes is the fixed allocation unit described in §3.2 ("Chunk:
// 8-byte heap allocation unit").
const chunkBytes = 8

// Header is the 16-logical-byte (four words) prefix embedded in every
// heap object. It plays the exact role of gc::header in the original
// source, with a direct page back-pointer standing in for the raw
// page_offset arithmetic.
type Header struct {
	owner       *Page
	obj         Traversable // the concrete object, for mark dispatch
	sizeQwords  uint32
	kind        value.Kind
	stage       uint8
	free        bool
	traversable bool
	static      bool
}

// Traversable is implemented by every heap-allocated object kind that
// holds further GC references (tables, arrays, functions, classes,
// objects). Leaf kinds such as strings need not implement it.
type Traversable interface {
	Traverse(mark func(value.Value))
}

// Finalizer is implemented by kinds that run cleanup on collection:
// classes, objects, and (when present) JIT'd functions, per §4.1's sweep
// phase ("its destructor, if any, runs").
type Finalizer interface {
	Finalize()
}

// Bind attaches the concrete object to its header so the collector can
// dispatch Traverse/Finalize without unboxing the Value's static type.
func (h *Header) Bind(obj Traversable) { h.obj = obj }

// Object returns the concrete object bound to this header, for callers that
// need to recover a typed object (e.g. *object.String) from a boxed Value
// via a type assertion: heap.HeaderOf(v).Object().(*object.String).
func (h *Header) Object() Traversable { return h.obj }

// Value boxes this header as a GC Value of its kind.
func (h *Header) Value() value.Value {
	return value.FromGC(h.kind, unsafe.Pointer(h))
}

// HeaderOf recovers the Header embedded in a boxed GC value. Panics if v
// is not a GC-kind value; callers should check v.IsGC() first.
func HeaderOf(v value.Value) *Header {
	return (*Header)(v.AsPointer())
}

// Init wires a freshly allocated header into its owning page.
func (h *Header) Init(p *Page, qlen uint32, k value.Kind, traversable bool) {
	h.owner = p
	h.sizeQwords = qlen
	h.kind = k
	h.traversable = traversable
	h.free = false
	h.stage = p.heap.stage
}

// Kind returns the GC tag recoverable without unboxing the concrete type.
func (h *Header) Kind() value.Kind { return h.kind }

// ObjectBytes returns the payload size, header excluded.
func (h *Header) ObjectBytes() int { return int(h.sizeQwords)*chunkBytes - headerSizeBytes }

// TotalBytes returns the payload size including the header.
func (h *Header) TotalBytes() int { return int(h.sizeQwords) * chunkBytes }

// GetPage recovers the owning page in O(1), satisfying
// "header.page_offset always recovers the owning page" (§3.3).
func (h *Header) GetPage() *Page { return h.owner }

// IsFree reports whether the header currently sits on a free list.
func (h *Header) IsFree() bool { return h.free }

// IsStatic reports whether the object is exempt from collection.
func (h *Header) IsStatic() bool { return h.static }

// MarkStatic exempts the object from GC for its lifetime (used for the VM's
// interned empty string and other permanent singletons).
func (h *Header) MarkStatic() { h.static = true }

// Traversable reports whether gc_traverse needs to visit this object's
// children during mark.
func (h *Header) Traversable() bool { return h.traversable }

// headerSizeBytes mirrors the "headers are always 16 bytes" invariant at
// the accounting level (actual Go struct size differs; qword accounting
// uses this fixed constant so size-class math matches the spec exactly).
const headerSizeBytes = 16
