package regalloc

import "github.com/li-script/lightning-sub000/internal/mir"

// class distinguishes the two disjoint color palettes §4.9 requires:
// general-purpose registers and floating-point registers never
// interfere with each other and are colored independently.
type class uint8

const (
	classGP class = iota
	classFP
)

func classOf(r mir.MReg) class {
	if r.IsFP() {
		return classFP
	}
	return classGP
}

// graph is the interference graph §4.9 step 3 builds: an undirected
// adjacency set per register, plus the bookkeeping simplify/color needs
// (spill cost, coalescing hints, and the concrete MReg each uid names).
type graph struct {
	adj      map[uint32]map[uint32]bool
	class    map[uint32]class
	reg      map[uint32]mir.MReg
	cost     map[uint32]int
	noSpill  map[uint32]bool
	coalesce map[uint32]map[uint32]bool
}

func newGraph() *graph {
	return &graph{
		adj:      map[uint32]map[uint32]bool{},
		class:    map[uint32]class{},
		reg:      map[uint32]mir.MReg{},
		cost:     map[uint32]int{},
		noSpill:  map[uint32]bool{},
		coalesce: map[uint32]map[uint32]bool{},
	}
}

func (g *graph) ensure(r mir.MReg) uint32 {
	uid := r.UID()
	if _, ok := g.adj[uid]; !ok {
		g.adj[uid] = map[uint32]bool{}
		g.class[uid] = classOf(r)
		g.reg[uid] = r
		g.coalesce[uid] = map[uint32]bool{}
	}
	return uid
}

func (g *graph) addEdge(a, b uint32) {
	if a == b {
		return
	}
	g.adj[a][b] = true
	g.adj[b][a] = true
}

func (g *graph) addCoalesce(a, b uint32) {
	g.coalesce[a][b] = true
	g.coalesce[b][a] = true
}

// buildInterference implements §4.9 step 3: walking each block's
// instructions in reverse with the live set seeded from LiveOut, every
// register written gets an edge to every register simultaneously live
// of its own class, and a move between two registers of the same class
// records a coalescing hint instead of (necessarily) an edge.
func buildInterference(mp *mir.MProcedure) *graph {
	g := newGraph()

	for _, b := range mp.Blocks {
		live := b.LiveOut.Clone()

		for i := len(b.Instructions) - 1; i >= 0; i-- {
			ins := b.Instructions[i]

			if isMove(ins) && ins.Args[0].Kind == mir.OpReg && !ins.Out.IsNull() {
				src := g.ensure(ins.Args[0].Reg)
				dst := g.ensure(ins.Out)
				if g.class[src] == g.class[dst] {
					g.addCoalesce(src, dst)
				}
			}

			if !ins.Out.IsNull() {
				out := g.ensure(ins.Out)
				g.cost[out] += spillWeight(b)
				if ins.NoSpill {
					g.noSpill[out] = true
				}
				for n := 0; n < live.Len(); n++ {
					if !live.Test(n) {
						continue
					}
					if uidClass(g, n) != g.class[out] {
						continue
					}
					if uint32(n) == out {
						continue
					}
					g.addEdge(out, uint32(n))
				}
				live.Clear(int(out))
			}

			ins.ForEachReg(func(r mir.MReg, isRead bool) {
				if !isRead {
					return
				}
				uid := g.ensure(r)
				g.cost[uid] += spillWeight(b)
				live.Set(int(uid))
			})
		}
	}

	return g
}

// uidClass is a defensive lookup for a uid that may not have been
// registered yet when the live-set scan reaches it (a register live out
// of the block but never otherwise touched here); ensure is idempotent
// so this only matters for the class comparison above.
func uidClass(g *graph, uid int) class {
	if c, ok := g.class[uint32(uid)]; ok {
		return c
	}
	return classGP
}

func isMove(ins *mir.MInsn) bool {
	return ins.IsVirtual && (ins.VOp == mir.VMovF || ins.VOp == mir.VMovI)
}

// spillWeight gives instructions inside a hotter block (§4.9's "hot-
// block uses" weighting) more pull against being spilled; MBlock.Hot is
// already a small loop-depth-derived score, so a linear scale is enough
// without needing an exponential like a real loop-nest weighting would.
func spillWeight(b *mir.MBlock) int {
	w := 1 + int(b.Hot)
	if w < 1 {
		w = 1
	}
	return w
}
