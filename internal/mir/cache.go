package mir

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
)

// Fingerprint hashes a prototype's bytecode and constant pool into a
// blake2b-256 digest, per §11.6's supplemental lowering-cache feature:
// two prototypes with identical code and constants (the common case
// when a deopt bails a specialized closure back to the interpreter and
// the same function is later re-specialized the same way) fingerprint
// identically, so Cache.Lower can skip re-lowering an already optimized
// procedure.
//
// Constants are folded in by their raw NaN-boxed bits (value.Value.Bits);
// for a GC-boxed constant (an interned string, say) that's the object's
// pointer bits, stable for the lifetime of one process but not portable
// across a restart — exactly the scope this cache needs, since it never
// outlives the VM instance that populated it.
func Fingerprint(proto *bytecode.Prototype) [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("mir: blake2b-256 must always be available: " + err.Error())
	}
	var insnBuf [13]byte
	for _, insn := range proto.Code {
		insnBuf[0] = byte(insn.Op)
		binary.LittleEndian.PutUint32(insnBuf[1:5], uint32(insn.A))
		binary.LittleEndian.PutUint32(insnBuf[5:9], uint32(insn.B))
		binary.LittleEndian.PutUint32(insnBuf[9:13], uint32(insn.C))
		h.Write(insnBuf[:])
	}
	var constBuf [8]byte
	for _, c := range proto.Constants {
		binary.LittleEndian.PutUint64(constBuf[:], c.Bits())
		h.Write(constBuf[:])
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Cache memoizes Lower by a prototype's Fingerprint. Safe for concurrent
// use, since nothing in §5's concurrency model rules out two VM
// instances sharing a lowering cache for the same compiled module.
type Cache struct {
	mu      sync.Mutex
	entries map[[32]byte]*MProcedure
}

func NewCache() *Cache {
	return &Cache{entries: make(map[[32]byte]*MProcedure)}
}

// Lower returns mp's cached lowering if proc.Source's fingerprint has
// been seen before, or lowers proc and remembers the result otherwise.
func (c *Cache) Lower(proc *ir.Procedure) *MProcedure {
	key := Fingerprint(proc.Source)

	c.mu.Lock()
	if mp, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return mp
	}
	c.mu.Unlock()

	mp := Lower(proc)

	c.mu.Lock()
	c.entries[key] = mp
	c.mu.Unlock()
	return mp
}

// Len reports how many distinct prototypes this cache currently holds a
// lowering for, mainly useful for tests and gcstat-style introspection.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
