// Package object implements the heap-resident value kinds of §3.4-§3.9:
// interned strings, growable arrays, open-addressed tables, functions
// (native and virtual prototypes), and classes/objects. Every concrete type
// holds the *heap.Header returned by heap.Alloc and binds itself to it via
// Header.Bind, so the collector can dispatch Traverse/Finalize without
// knowing the concrete Go type, and callers can recover it from a boxed
// Value via heap.HeaderOf(v).Object().(*T).
package object

import (
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

// String is an immutable, interned UTF-8 byte sequence (§3.4). Two equal
// strings are always the same pointer once interned through a Strings set.
//
// String does not embed heap.Header: the Header returned by heap.Alloc is
// the object's GC identity (what gets boxed into a value.Value), and String
// hangs off it via Header.Bind/Object, per internal/heap's header-as-handle
// design (see internal/heap/header.go).
type String struct {
	hdr  *heap.Header
	data []byte
	hash uint32
}

func (s *String) Bytes() []byte  { return s.data }
func (s *String) String() string { return string(s.data) }
func (s *String) Len() int       { return len(s.data) }
func (s *String) Hash() uint32   { return s.hash }

// Traverse is a no-op: strings hold no GC references.
func (s *String) Traverse(func(value.Value)) {}

// Value boxes the string as a KindString Value.
func (s *String) Value() value.Value { return s.hdr.Value() }

// sparseHash mirrors the original string hasher (src/vm/string.cpp): a
// length-seeded mix of 4-byte samples taken from the prefix, suffix, and
// middle of the string, falling back to single bytes for short inputs. The
// original uses SSE4.2 CRC32 intrinsics; this is the same sampling scheme
// over a portable bit-at-a-time CRC-32C (crc32UpdateByte below).
func sparseHash(v []byte) uint32 {
	n := uint32(len(v))
	crc := uint32(0xc561e88e) - n
	if n >= 4 {
		crc = crc32Update(crc, load32(v, 0))
		crc = crc32Update(crc, load32(v, int(n)-4))
		crc = crc32Update(crc, load32(v, int(n>>1)-2))
		crc = crc32Update(crc, load32(v, int(n>>2)-1))
	} else if n > 0 {
		crc = crc32UpdateByte(crc, v[0])
		crc = crc32UpdateByte(crc, v[n-1])
		crc = crc32UpdateByte(crc, v[n>>1])
	}
	return crc + n
}

func load32(v []byte, off int) uint32 {
	if off < 0 {
		off = 0
	}
	return uint32(v[off]) | uint32(v[off+1])<<8 | uint32(v[off+2])<<16 | uint32(v[off+3])<<24
}

// crc32Update and crc32UpdateByte fold one 32-bit/8-bit sample into crc
// using the standard CRC-32C (Castagnoli) polynomial, the same polynomial
// the original's _mm_crc32 intrinsics implement in hardware.
func crc32Update(crc, v uint32) uint32 {
	for i := 0; i < 4; i++ {
		crc = crc32UpdateByte(crc, byte(v>>(8*uint(i))))
	}
	return crc
}

func crc32UpdateByte(crc uint32, b byte) uint32 {
	crc ^= uint32(b)
	for i := 0; i < 8; i++ {
		if crc&1 != 0 {
			crc = (crc >> 1) ^ 0x82f63b78
		} else {
			crc >>= 1
		}
	}
	return crc
}

// Strings is the process-wide interning set of §3.4 / §4.2: a sparse-hash
// keyed, power-of-two bucket table with a fixed linear-probe overflow run.
// It is not itself a GC root (§4.1: "the string set is swept by dropping
// interned strings whose stage is stale") — entries only survive a
// collection if something else still reaches them.
type Strings struct {
	h        *heap.Heap
	overflow int
	buckets  []*String // length is always a power of two
}

// NewStrings creates an interning set sized from cfg.StringOverflow and
// registers its post-sweep hook with h so stale entries are dropped after
// every collection without the set itself acting as a root.
func NewStrings(h *heap.Heap, cfg vmconfig.Config) *Strings {
	s := &Strings{h: h, overflow: cfg.StringOverflow, buckets: make([]*String, 64)}
	h.OnPostSweep(s.sweep)
	return s
}

func (s *Strings) mask() uint32 { return uint32(len(s.buckets)) - 1 }

// Empty returns the interned empty string, marked static so it survives
// collection without needing to be walked as a root (§4.1 lists "the
// interned empty string" among the roots; marking it static achieves the
// same effect more directly).
func (s *Strings) Empty() (*String, bool) {
	str, ok := s.Intern(nil)
	if ok {
		str.hdr.MarkStatic()
	}
	return str, ok
}

// Intern returns the canonical *String for bytes, allocating and inserting
// a new one on first use. ok is false only on heap exhaustion.
func (s *Strings) Intern(bytes []byte) (result *String, ok bool) {
	hash := sparseHash(bytes)
	for {
		start := hash & s.mask()
		for i := 0; i < s.overflow; i++ {
			idx := (start + uint32(i)) & s.mask()
			e := s.buckets[idx]
			if e == nil {
				continue
			}
			if e.hash == hash && string(e.data) == string(bytes) {
				return e, true
			}
		}
		str, oom := s.insert(hash, bytes)
		if oom {
			return nil, false
		}
		if str != nil {
			return str, true
		}
		s.grow()
	}
}

// insert places a freshly allocated string into the first free overflow
// slot for hash. A nil str with oom=false means the overflow run is full
// and the caller should grow and retry; oom=true means the heap itself is
// exhausted.
func (s *Strings) insert(hash uint32, bytes []byte) (str *String, oom bool) {
	start := hash & s.mask()
	for i := 0; i < s.overflow; i++ {
		idx := (start + uint32(i)) & s.mask()
		if s.buckets[idx] == nil {
			hdr, ok := s.h.Alloc(value.KindString, false, 0)
			if !ok {
				return nil, true
			}
			str := &String{hdr: hdr, data: append([]byte(nil), bytes...), hash: hash}
			hdr.Bind(str)
			s.buckets[idx] = str
			return str, false
		}
	}
	return nil, false
}

// grow doubles the bucket count and rehashes every live entry, matching
// §4.2's "the set grows by doubling and re-inserting".
func (s *Strings) grow() {
	old := s.buckets
	s.buckets = make([]*String, len(old)*2)
	for _, e := range old {
		if e == nil {
			continue
		}
		s.forceInsert(e)
	}
}

// forceInsert re-places an already-allocated string during a grow; it never
// fails because the set was just doubled.
func (s *Strings) forceInsert(e *String) {
	start := e.hash & s.mask()
	for i := 0; i < s.overflow; i++ {
		idx := (start + uint32(i)) & s.mask()
		if s.buckets[idx] == nil {
			s.buckets[idx] = e
			return
		}
	}
	// Overflow run exhausted mid-grow: widen again before retrying.
	s.grow()
	s.forceInsert(e)
}

// sweep drops any interned entry whose header was reclaimed by the last
// collection, per §4.1's string-set sweep rule.
func (s *Strings) sweep() {
	for i, e := range s.buckets {
		if e != nil && e.hdr.IsFree() {
			s.buckets[i] = nil
		}
	}
}
