package heap

// sizeClasses enumerates the chunk counts (in 8-byte chunks, header
// included) that the segregated free lists are keyed by, patterned after
// the geometric size-class tables used by tcmalloc-derived allocators
// (cloudfly-readgo's runtime/msize.go is the pack's worked example of this
// idiom, there expressed in bytes rather than chunks).
var sizeClasses = []uint32{1, 2, 3, 4, 6, 8, 12, 16, 24, 32, 48, 64, 96, 128, 192, 256}

// classFor returns the smallest size class able to hold qlen chunks, and
// ok=false if qlen exceeds every class (a "large object", allocated
// directly from the page bump allocator and never placed on a free list).
func classFor(qlen uint32) (idx int, ok bool) {
	for i, c := range sizeClasses {
		if c >= qlen {
			return i, true
		}
	}
	return 0, false
}
