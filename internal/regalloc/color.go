package regalloc

import (
	"sort"

	"github.com/li-script/lightning-sub000/internal/mir"
)

// infiniteCost marks a node §4.9 says must never be chosen as a spill
// candidate (one already produced by a previous round's spill rewrite).
const infiniteCost = int(^uint(0) >> 1)

func coloCountFor(c class, cfg Config) int {
	if c == classFP {
		return cfg.FPColors
	}
	return cfg.GPColors
}

// colorGraph implements §4.9 step 4: repeatedly simplify (remove a node
// with fewer neighbors than its class's color count, pushing it on a
// stack to color later) and, when nothing simplifies, pick the node
// with the smallest spill priority and push it anyway (an "optimistic"
// push, the standard Chaitin-Briggs refinement: it may still find a
// color once its neighbors are known, and only becomes a real spill if
// coloring fails). The stack is then popped in reverse, each node
// colored to the lowest free color respecting coalescing hints, or left
// uncolored (reported as spilled) if every color in its class is used
// by an already-colored neighbor.
func colorGraph(g *graph, cfg Config) (map[uint32]mir.MReg, []uint32) {
	remaining := make(map[uint32]bool, len(g.adj))
	degree := make(map[uint32]int, len(g.adj))
	for uid, neighbors := range g.adj {
		remaining[uid] = true
		degree[uid] = len(neighbors)
	}

	var stack []uint32
	for len(remaining) > 0 {
		uid, ok := pickSimplifiable(g, remaining, degree, cfg)
		if !ok {
			uid = pickSpillCandidate(g, remaining)
		}
		stack = append(stack, uid)
		delete(remaining, uid)
		for n := range g.adj[uid] {
			if remaining[n] {
				degree[n]--
			}
		}
	}

	colorOf := make(map[uint32]int32, len(stack))
	colored := map[uint32]bool{}
	var spilled []uint32

	for i := len(stack) - 1; i >= 0; i-- {
		uid := stack[i]
		k := coloCountFor(g.class[uid], cfg)
		used := make([]bool, k)
		for n := range g.adj[uid] {
			if colored[n] {
				if c := colorOf[n]; int(c) < k {
					used[int(c)] = true
				}
			}
		}

		color := int32(-1)
		for hint := range g.coalesce[uid] {
			if colored[hint] {
				if c := colorOf[hint]; int(c) < k && !used[int(c)] {
					color = c
					break
				}
			}
		}
		if color < 0 {
			for c := 0; c < k; c++ {
				if !used[c] {
					color = int32(c)
					break
				}
			}
		}

		if color < 0 {
			spilled = append(spilled, uid)
			continue
		}
		colorOf[uid] = color
		colored[uid] = true
	}

	sort.Slice(spilled, func(i, j int) bool { return spilled[i] < spilled[j] })

	result := make(map[uint32]mir.MReg, len(colored))
	for uid, c := range colorOf {
		if !colored[uid] {
			continue
		}
		result[uid] = physicalFor(g.class[uid], c)
	}
	return result, spilled
}

func physicalFor(c class, color int32) mir.MReg {
	if c == classFP {
		return mir.Phys(-(color + 1))
	}
	return mir.Phys(color + 1)
}

func pickSimplifiable(g *graph, remaining map[uint32]bool, degree map[uint32]int, cfg Config) (uint32, bool) {
	var candidates []uint32
	for uid := range remaining {
		if degree[uid] < coloCountFor(g.class[uid], cfg) {
			candidates = append(candidates, uid)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return candidates[0], true
}

// pickSpillCandidate chooses the node with the smallest spill priority
// among what's left, per §4.9 step 4: a register's priority is its
// accumulated hot-block-weighted use count, and a register produced by
// a previous spill-rewrite round (NoSpill) is never a candidate.
func pickSpillCandidate(g *graph, remaining map[uint32]bool) uint32 {
	best := uint32(0)
	bestCost := infiniteCost
	haveBest := false
	var uids []uint32
	for uid := range remaining {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	for _, uid := range uids {
		cost := g.cost[uid]
		if g.noSpill[uid] {
			cost = infiniteCost
		}
		if !haveBest || cost < bestCost {
			best, bestCost, haveBest = uid, cost, true
		}
	}
	return best
}
