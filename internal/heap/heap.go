package heap

import (
	"github.com/li-script/lightning-sub000/internal/rtlog"
	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

// Heap owns every page, the segregated free lists, and the debt-based GC
// scheduler of §4.1.
type Heap struct {
	cfg vmconfig.Config

	allocator PageAllocator
	head      *Page // ring sentinel; head.prev is the current bump tail

	freeLists [][]*Header // indexed by size class, see sizeclass.go

	stage    uint8 // current generation stamp, flips each collect()
	debt     int64
	counting bool // true once MinDebt crossed, counting down to 0
	countdown int64
	suspended int

	roots Roots

	postSweep []func()

	cycles int
}

// OnPostSweep registers a hook run after every sweep, used by the string
// set and type set (§4.1: "The string set is swept by dropping interned
// strings whose stage is stale"; "the type set is maintained by
// destructors") to drop entries that became stale without themselves
// being GC roots.
func (h *Heap) OnPostSweep(hook func()) { h.postSweep = append(h.postSweep, hook) }

// Roots supplies the GC's root set (§4.1 "Mark phase — from roots"). The
// VM, module/REPL tables, and the object/trait/string subsystems each
// implement and register the slice of roots relevant to them.
type Roots interface {
	// WalkRoots invokes visit for every root Value reachable from this
	// root source.
	WalkRoots(visit func(value.Value))
}

// New creates a heap using the given allocator and configuration.
func New(cfg vmconfig.Config, allocator PageAllocator) *Heap {
	h := &Heap{cfg: cfg, allocator: allocator}
	h.head = &Page{heap: h}
	h.head.prev, h.head.next = h.head, h.head
	h.freeLists = make([][]*Header, len(sizeClasses))
	return h
}

// SetRoots installs the root walker used by Collect.
func (h *Heap) SetRoots(r Roots) { h.roots = r }

// Suspend disables collection for the duration of a critical section;
// Resume re-enables it. Suspend/Resume nest.
func (h *Heap) Suspend() { h.suspended++ }
func (h *Heap) Resume() {
	if h.suspended > 0 {
		h.suspended--
	}
}

// tailPage returns the page currently being bump-allocated into.
func (h *Heap) tailPage() *Page { return h.head.prev }

func qwordsFor(extraBytes int) uint32 {
	total := headerSizeBytes + extraBytes
	return uint32((total + chunkBytes - 1) / chunkBytes)
}

// Alloc reserves space for extraBytes of payload beyond the header,
// returning the initialized Header. It implements §4.1's allocator: scan
// the matching free list first, then bump the tail page, then request a
// new page from the PageAllocator. A nil Header with ok=false signals
// out-of-memory; the heap is left uncorrupted.
func (h *Heap) Alloc(k value.Kind, traversable bool, extraBytes int) (hdr *Header, ok bool) {
	qlen := qwordsFor(extraBytes)
	log := rtlog.For("heap")

	if cls, small := classFor(qlen); small {
		if list := h.freeLists[cls]; len(list) > 0 {
			hdr = list[len(list)-1]
			h.freeLists[cls] = list[:len(list)-1]
			hdr.free = false
			hdr.sizeQwords = qlen
			hdr.kind = k
			hdr.traversable = traversable
			hdr.stage = h.stage
			hdr.owner.aliveObjects++
			hdr.owner.objects = append(hdr.owner.objects, hdr)
			h.chargeDebt(qlen)
			return hdr, true
		}
	}

	if hdr, got := h.tailPage().bumpAlloc(qlen); got {
		hdr.Init(h.tailPage(), qlen, k, traversable)
		h.chargeDebt(qlen)
		return hdr, true
	}

	need := int64(qlen) * chunkBytes
	pageBytes := h.cfg.MinimumPage
	if need > pageBytes {
		pageBytes = need
	}
	raw, got := h.allocator.Acquire(int(pageBytes), false)
	if !got {
		log.Error().Int64("bytes", pageBytes).Msg("page acquisition failed: out of memory")
		return nil, false
	}
	p := &Page{heap: h, raw: raw, chunkCount: uint32(len(raw.Bytes) / chunkBytes)}
	p.insertAfter(h.head.prev)

	hdr, got2 := p.bumpAlloc(qlen)
	if !got2 {
		// Should be unreachable: we sized the page to fit qlen.
		h.allocator.Release(raw)
		return nil, false
	}
	hdr.Init(p, qlen, k, traversable)
	h.chargeDebt(qlen)
	return hdr, true
}

func (h *Heap) chargeDebt(qlen uint32) {
	n := int64(qlen) * chunkBytes
	h.debt += n
	if !h.counting && h.debt >= h.cfg.MinDebt {
		h.counting = true
		h.countdown = h.cfg.Interval
	}
	if h.counting {
		h.countdown -= n
	}
}

// ShouldTick reports whether the next gc_tick suspension point should
// trigger a collection, per the debt-accounting rules of §4.1: crossing
// MinDebt starts a countdown of Interval further allocated bytes, and MaxDebt forces
// an immediate collection regardless of the countdown.
func (h *Heap) ShouldTick() bool {
	if h.suspended > 0 {
		return false
	}
	return h.debt >= h.cfg.MaxDebt || (h.counting && h.countdown <= 0)
}

// Pages exposes the page ring for diagnostics/tests.
func (h *Heap) Pages(visit func(*Page) bool) {
	p := h.head.next
	for p != h.head {
		next := p.next
		if visit(p) {
			return
		}
		p = next
	}
}

// PageCount returns the number of live pages.
func (h *Heap) PageCount() int {
	n := 0
	h.Pages(func(*Page) bool { n++; return false })
	return n
}

// Cycles returns the number of completed collections.
func (h *Heap) Cycles() int { return h.cycles }

// FreeListLen reports the number of entries on the free list matching a
// given payload size, for tests asserting "free-list non-empty" reuse.
func (h *Heap) FreeListLen(extraBytes int) int {
	qlen := qwordsFor(extraBytes)
	cls, ok := classFor(qlen)
	if !ok {
		return 0
	}
	return len(h.freeLists[cls])
}
