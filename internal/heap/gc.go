package heap

import (
	"github.com/li-script/lightning-sub000/internal/rtlog"
	"github.com/li-script/lightning-sub000/internal/value"
)

// Collect runs one full mark-and-sweep cycle (§4.1). It is a no-op while
// the heap is suspended or has no registered roots.
func (h *Heap) Collect() {
	if h.suspended > 0 || h.roots == nil {
		return
	}
	log := rtlog.For("gc")
	before := h.liveObjects()
	newStage := h.stage ^ 1

	var worklist []value.Value
	mark := func(v value.Value) {
		if !v.IsGC() {
			return
		}
		hdr := HeaderOf(v)
		if hdr == nil || hdr.free || hdr.stage == newStage {
			return
		}
		hdr.stage = newStage
		worklist = append(worklist, v)
	}

	h.roots.WalkRoots(mark)
	for len(worklist) > 0 {
		v := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		hdr := HeaderOf(v)
		if hdr.traversable && hdr.obj != nil {
			hdr.obj.Traverse(mark)
		}
	}

	h.stage = newStage
	h.sweep(newStage)
	for _, hook := range h.postSweep {
		hook()
	}
	h.cycles++
	h.debt = 0
	h.counting = false

	after := h.liveObjects()
	log.Info().Int("cycle", h.cycles).Uint32("before", before).Uint32("after", after).Msg("gc collect")
}

// liveObjects sums aliveObjects across every page, for the collector's
// before/after logging.
func (h *Heap) liveObjects() uint32 {
	var n uint32
	h.Pages(func(p *Page) bool {
		n += p.aliveObjects
		return false
	})
	return n
}

// sweep walks every page, reclaiming any header whose stage fell behind
// the current generation (§4.1 sweep phase).
func (h *Heap) sweep(currentStage uint8) {
	var dead []*Page
	h.Pages(func(p *Page) bool {
		kept := p.objects[:0]
		for _, hdr := range p.objects {
			if hdr.free {
				continue
			}
			if hdr.static || hdr.stage == currentStage {
				kept = append(kept, hdr)
				continue
			}
			if fin, ok := hdr.obj.(Finalizer); ok {
				fin.Finalize()
			}
			hdr.free = true
			hdr.obj = nil
			p.aliveObjects--
			if cls, small := classFor(hdr.sizeQwords); small {
				h.freeLists[cls] = append(h.freeLists[cls], hdr)
			}
		}
		p.objects = kept
		if p.aliveObjects == 0 && p.totalObjects > 0 {
			dead = append(dead, p)
		}
		return false
	})

	for _, p := range dead {
		h.evictPage(p)
	}
}

// evictPage unlinks an empty page, drops any free-list entries that
// belonged to it, and releases its backing memory.
func (h *Heap) evictPage(p *Page) {
	p.unlink()
	for cls := range h.freeLists {
		list := h.freeLists[cls][:0]
		for _, hdr := range h.freeLists[cls] {
			if hdr.owner != p {
				list = append(list, hdr)
			}
		}
		h.freeLists[cls] = list
	}
	h.allocator.Release(p.raw)
}
