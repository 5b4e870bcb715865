package heap

// Page is a logical GC arena (§3.3): a bounded run of chunks that groups
// a set of live+free Header-bearing objects, linked into a ring with its
// siblings. Pages are bookkeeping structures — the objects they group are
// ordinary Go heap allocations reached through Header back-pointers, not a
// literal byte arena, per the "typed indices where practical" guidance for
// re-architecting manual/raw-pointer heaps into Go (see DESIGN.md).
type Page struct {
	heap *Heap
	raw  RawPage // backing memory from the PageAllocator, for eviction

	prev, next *Page

	chunkCount    uint32 // capacity, in 8-byte chunks
	nextFreeChunk uint32 // bump cursor into the unused tail
	totalObjects  uint32
	aliveObjects  uint32
	isExec        bool
	objects       []*Header // live headers currently tracked on this page, for sweep
}

// Capacity reports the page's size in chunks.
func (p *Page) Capacity() uint32 { return p.chunkCount }

// Remaining reports the number of unused chunks in the page's bump tail.
func (p *Page) Remaining() uint32 { return p.chunkCount - p.nextFreeChunk }

// IsExec reports whether this page was allocated executable.
func (p *Page) IsExec() bool { return p.isExec }

// LiveCount and TotalCount satisfy the "Page's live-count is >= count of
// non-free headers observed" testable property (§3.3).
func (p *Page) LiveCount() uint32  { return p.aliveObjects }
func (p *Page) TotalCount() uint32 { return p.totalObjects }

// Objects visits every header currently tracked on this page (both live
// and, between a sweep's unlink and its free-list reinsertion, about to
// be freed headers still sitting in the slice) until visit returns true
// or the headers are exhausted. internal/gcprofile is the main
// consumer: a heap snapshot walks every page's objects to build its
// per-kind sample set.
func (p *Page) Objects(visit func(*Header) bool) {
	for _, h := range p.objects {
		if visit(h) {
			return
		}
	}
}

// Contains reports whether h currently belongs to this page, exercising
// the "o.get_page().contains(o)" universal invariant from §8.
func (p *Page) Contains(h *Header) bool {
	if h.owner != p {
		return false
	}
	for _, o := range p.objects {
		if o == h {
			return true
		}
	}
	return false
}

// bumpAlloc reserves qlen chunks from the page's unused tail, or reports
// false if the page does not have room.
func (p *Page) bumpAlloc(qlen uint32) (*Header, bool) {
	if p.Remaining() < qlen {
		return nil, false
	}
	h := &Header{}
	p.nextFreeChunk += qlen
	p.totalObjects++
	p.aliveObjects++
	p.objects = append(p.objects, h)
	return h, true
}

// unlink removes the page from its ring.
func (p *Page) unlink() {
	p.prev.next = p.next
	p.next.prev = p.prev
	p.prev, p.next = nil, nil
}

// insertAfter splices p into the ring immediately after at.
func (p *Page) insertAfter(at *Page) {
	p.next = at.next
	p.prev = at
	at.next.prev = p
	at.next = p
}
