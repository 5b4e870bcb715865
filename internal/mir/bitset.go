package mir

// Bitset is a fixed-universe bit vector sized to a procedure's register
// count, used for the def/ref/live-in/live-out sets §4.9's liveness
// fixpoint computes per block. Grounded on mir.hpp's util::bitset usage
// in mblock's df_live/df_def/df_ref fields; implemented here as a plain
// []uint64 word slice rather than pulling in a bitset library, since no
// example repo in the pack depends on one and a fixed-size word vector
// is a handful of lines.
type Bitset struct {
	words []uint64
	n     int
}

func NewBitset(n int) Bitset {
	return Bitset{words: make([]uint64, (n+63)/64), n: n}
}

func (b *Bitset) Set(i int)   { b.words[i/64] |= 1 << uint(i%64) }
func (b *Bitset) Clear(i int) { b.words[i/64] &^= 1 << uint(i%64) }
func (b Bitset) Test(i int) bool {
	if i >= b.n {
		return false
	}
	return b.words[i/64]&(1<<uint(i%64)) != 0
}

// Or sets b |= other and reports whether b changed, which is what the
// live_out = ⋃ live_in(succ) fixpoint needs to detect convergence.
func (b *Bitset) Or(other Bitset) bool {
	changed := false
	for i := range b.words {
		merged := b.words[i] | other.words[i]
		if merged != b.words[i] {
			b.words[i] = merged
			changed = true
		}
	}
	return changed
}

// AndNot computes b & ^other into a fresh Bitset, used for
// live_in = (live_out \ def) ∪ ref.
func (b Bitset) AndNot(other Bitset) Bitset {
	out := NewBitset(b.n)
	for i := range b.words {
		out.words[i] = b.words[i] &^ other.words[i]
	}
	return out
}

func (b *Bitset) CopyFrom(other Bitset) {
	copy(b.words, other.words)
}

func (b Bitset) Clone() Bitset {
	out := NewBitset(b.n)
	copy(out.words, b.words)
	return out
}

func (b Bitset) Len() int { return b.n }
